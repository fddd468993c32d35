package connect

import (
	"context"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the control service.
type Client struct {
	addTrack         *connect.Client[structpb.Struct, structpb.Struct]
	addPriorityTrack *connect.Client[structpb.Struct, structpb.Struct]
	listQueues       *connect.Client[emptypb.Empty, structpb.Struct]
	getStatus        *connect.Client[emptypb.Empty, structpb.Struct]
	pause            *connect.Client[emptypb.Empty, structpb.Struct]
	resume           *connect.Client[emptypb.Empty, structpb.Struct]
	skip             *connect.Client[emptypb.Empty, structpb.Struct]
	search           *connect.Client[structpb.Struct, structpb.Struct]
	watch            *connect.Client[emptypb.Empty, structpb.Struct]

	adminToken string
}

// NewClient creates a control client for baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL, adminToken string, opts ...connect.ClientOption) *Client {
	return &Client{
		addTrack:         connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedureAddTrack, opts...),
		addPriorityTrack: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedureAddPriorityTrack, opts...),
		listQueues:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureListQueues, opts...),
		getStatus:        connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureGetStatus, opts...),
		pause:            connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedurePause, opts...),
		resume:           connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureResume, opts...),
		skip:             connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureSkip, opts...),
		search:           connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedureSearch, opts...),
		watch:            connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureWatch, opts...),
		adminToken:       adminToken,
	}
}

// AddTrack enqueues a track. priority selects the priority queue.
func (c *Client) AddTrack(ctx context.Context, id, title string, priority bool) (map[string]any, error) {
	body, err := structpb.NewStruct(map[string]any{
		"track": map[string]any{"id": id, "title": title},
	})
	if err != nil {
		return nil, err
	}
	call := c.addTrack
	if priority {
		call = c.addPriorityTrack
	}
	res, err := call.CallUnary(ctx, connect.NewRequest(body))
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}

// ListQueues returns both queues.
func (c *Client) ListQueues(ctx context.Context) (map[string]any, error) {
	return c.empty(ctx, c.listQueues, false)
}

// Status returns the playback status.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.empty(ctx, c.getStatus, false)
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) (map[string]any, error) {
	return c.empty(ctx, c.pause, true)
}

// Resume resumes playback.
func (c *Client) Resume(ctx context.Context) (map[string]any, error) {
	return c.empty(ctx, c.resume, true)
}

// Skip skips the current track.
func (c *Client) Skip(ctx context.Context) (map[string]any, error) {
	return c.empty(ctx, c.skip, true)
}

// Search queries the server's provider chain.
func (c *Client) Search(ctx context.Context, query string) (map[string]any, error) {
	body, err := structpb.NewStruct(map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	res, err := c.search.CallUnary(ctx, connect.NewRequest(body))
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}

// Watch calls fn for every notification until ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(map[string]any)) error {
	stream, err := c.watch.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		fn(stream.Msg().AsMap())
	}
	return stream.Err()
}

func (c *Client) empty(ctx context.Context, call *connect.Client[emptypb.Empty, structpb.Struct], admin bool) (map[string]any, error) {
	req := connect.NewRequest(&emptypb.Empty{})
	if admin && c.adminToken != "" {
		req.Header().Set(AdminTokenHeader, c.adminToken)
	}
	res, err := call.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}
