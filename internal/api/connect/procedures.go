// Package connect provides the Connect RPC control surface.
package connect

import (
	"net/http"

	"connectrpc.com/connect"
)

// ControlServiceName is the fully-qualified name of the control service.
const ControlServiceName = "tubebox.v1.ControlService"

// Procedure paths of the control service.
const (
	ProcedureAddTrack         = "/" + ControlServiceName + "/AddTrack"
	ProcedureAddPriorityTrack = "/" + ControlServiceName + "/AddPriorityTrack"
	ProcedureListQueues       = "/" + ControlServiceName + "/ListQueues"
	ProcedureGetStatus        = "/" + ControlServiceName + "/GetStatus"
	ProcedurePause            = "/" + ControlServiceName + "/Pause"
	ProcedureResume           = "/" + ControlServiceName + "/Resume"
	ProcedureSkip             = "/" + ControlServiceName + "/Skip"
	ProcedureSearch           = "/" + ControlServiceName + "/Search"
	ProcedureWatch            = "/" + ControlServiceName + "/Watch"
)

// NewControlServiceHandler builds an HTTP handler that serves every control
// procedure. When adminToken is set, the transport procedures (Pause, Resume,
// Skip) require it in the X-Admin-Token header. opts apply to every procedure.
func NewControlServiceHandler(svc *ControlService, adminToken string, opts ...connect.HandlerOption) (string, http.Handler) {
	transportOpts := opts
	if adminToken != "" {
		transportOpts = append(append([]connect.HandlerOption{}, opts...),
			connect.WithInterceptors(NewAdminAuthInterceptor(adminToken)))
	}

	mux := http.NewServeMux()
	mux.Handle(ProcedureAddTrack, connect.NewUnaryHandler(ProcedureAddTrack, svc.AddTrack, opts...))
	mux.Handle(ProcedureAddPriorityTrack, connect.NewUnaryHandler(ProcedureAddPriorityTrack, svc.AddPriorityTrack, opts...))
	mux.Handle(ProcedureListQueues, connect.NewUnaryHandler(ProcedureListQueues, svc.ListQueues, opts...))
	mux.Handle(ProcedureGetStatus, connect.NewUnaryHandler(ProcedureGetStatus, svc.GetStatus, opts...))
	mux.Handle(ProcedurePause, connect.NewUnaryHandler(ProcedurePause, svc.Pause, transportOpts...))
	mux.Handle(ProcedureResume, connect.NewUnaryHandler(ProcedureResume, svc.Resume, transportOpts...))
	mux.Handle(ProcedureSkip, connect.NewUnaryHandler(ProcedureSkip, svc.Skip, transportOpts...))
	mux.Handle(ProcedureSearch, connect.NewUnaryHandler(ProcedureSearch, svc.Search, opts...))
	mux.Handle(ProcedureWatch, connect.NewServerStreamHandler(ProcedureWatch, svc.Watch, opts...))

	return "/" + ControlServiceName + "/", mux
}
