package connect

import (
	"context"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tubebox/internal/app/jukebox"
	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/domain/track"
)

// Controller is the jukebox as seen by the RPC layer.
type Controller interface {
	AddTrack(ctx context.Context, id, title string) ([]track.Track, error)
	AddPriorityTrack(ctx context.Context, id, title string) ([]track.Track, error)
	ListQueues() jukebox.Queues
	Status() playback.Status
	Pause() (string, error)
	Resume() (string, error)
	Skip() (string, error)
	Search(ctx context.Context, query string) []search.Result
	Watch(ctx context.Context, stream notification.Stream) error
}

// ControlService implements the control RPCs.
type ControlService struct {
	jukebox Controller
}

// NewControlService creates a new ControlService.
func NewControlService(jukebox Controller) *ControlService {
	return &ControlService{jukebox: jukebox}
}

// AddTrack appends a track to the normal queue.
func (s *ControlService) AddTrack(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, title, ok := trackPayload(req.Msg)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("track is required"))
	}
	queue, err := s.jukebox.AddTrack(ctx, id, title)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"status": jukebox.StatusAdded, "queue": trackList(queue)})
}

// AddPriorityTrack appends a track to the priority queue.
func (s *ControlService) AddPriorityTrack(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, title, ok := trackPayload(req.Msg)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("track is required"))
	}
	priority, err := s.jukebox.AddPriorityTrack(ctx, id, title)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"status": jukebox.StatusAdded, "priority_queue": trackList(priority)})
}

// ListQueues returns both queues.
func (s *ControlService) ListQueues(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	queues := s.jukebox.ListQueues()
	return respond(map[string]any{
		"queue":    trackList(queues.Queue),
		"priority": trackList(queues.Priority),
	})
}

// GetStatus returns the playback status.
func (s *ControlService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return respond(statusValue(s.jukebox.Status()))
}

// Pause pauses playback.
func (s *ControlService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return command(s.jukebox.Pause)
}

// Resume resumes playback.
func (s *ControlService) Resume(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return command(s.jukebox.Resume)
}

// Skip skips the current track.
func (s *ControlService) Skip(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return command(s.jukebox.Skip)
}

// Search queries the provider chain. The body is {query: "..."}.
func (s *ControlService) Search(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	query := req.Msg.GetFields()["query"].GetStringValue()
	results := s.jukebox.Search(ctx, query)
	return respond(map[string]any{"results": resultList(results)})
}

// Watch streams notifications until the client disconnects.
func (s *ControlService) Watch(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	if err := s.jukebox.Watch(ctx, adapter); err != nil {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcast and the initial send may race, so sends are serialized.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := toStruct(notificationValue(n))
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(msg)
}

func command(cmd func() (string, error)) (*connect.Response[structpb.Struct], error) {
	status, err := cmd()
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{"status": status})
}

func respond(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := toStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func toConnectError(err error) error {
	if errors.Is(err, jukebox.ErrInvalidRequest) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	zlog.Error().Err(err).Msg("control: request failed")
	return connect.NewError(connect.CodeInternal, err)
}
