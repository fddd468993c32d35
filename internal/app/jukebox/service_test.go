package jukebox

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/app/cache"
	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/queue"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/domain/track"
)

const testTick = 10 * time.Millisecond

type fakeFetcher struct {
	mu      sync.Mutex
	failFor map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string, base string) (string, string, error) {
	f.mu.Lock()
	fail := f.failFor[id]
	f.mu.Unlock()
	if fail {
		return "", "", errors.New("video unavailable")
	}
	path := base + ".mp3"
	return path, "Remote " + id, os.WriteFile(path, []byte("audio"), 0o644)
}

// endlessDevice plays until stopped.
type endlessDevice struct {
	mu     sync.Mutex
	active bool
}

func (d *endlessDevice) Load(string) (time.Duration, error) { return time.Minute, nil }
func (d *endlessDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
	return nil
}
func (d *endlessDevice) Pause()  {}
func (d *endlessDevice) Resume() {}
func (d *endlessDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
}
func (d *endlessDevice) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

type fakeSearcher struct {
	results  []search.Result
	expanded map[string]track.Track
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) []search.Result {
	return f.results
}

func (f *fakeSearcher) Expand(ctx context.Context, input string) (track.Track, bool, error) {
	if f.err != nil {
		return track.Track{}, true, f.err
	}
	t, ok := f.expanded[input]
	return t, ok, nil
}

type chanStream struct {
	ch chan *notification.Notification
}

func (s *chanStream) Send(n *notification.Notification) error {
	s.ch <- n
	return nil
}

type fixture struct {
	svc     *Service
	store   *queue.Store
	fetcher *fakeFetcher
}

func newFixture(t *testing.T, searcher Searcher) *fixture {
	t.Helper()
	fetcher := &fakeFetcher{failFor: map[string]bool{}}
	c, err := cache.New(cache.Config{Dir: t.TempDir()}, fetcher)
	require.NoError(t, err)

	store := queue.NewStore()
	engine := playback.NewEngine(playback.Config{TickInterval: testTick}, c, &endlessDevice{})
	svc := New(Config{
		PollInterval:     testTick,
		PrefetchInterval: testTick,
	}, store, engine, c, searcher, nil)
	t.Cleanup(func() {
		svc.Stop()
		engine.Close()
	})
	return &fixture{svc: svc, store: store, fetcher: fetcher}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Start(context.Background()))
}

func waitForCurrent(t *testing.T, svc *Service, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		status := svc.Status()
		return status.Current != nil && status.Current.ID == id
	}, 2*time.Second, time.Millisecond)
}

func TestService_AddTrackRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		id   string
	}{
		{name: "empty id", id: ""},
		{name: "blank id", id: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddTrack(context.Background(), tt.id, "title")
			assert.True(t, errors.Is(err, ErrInvalidRequest))

			_, err = f.svc.AddPriorityTrack(context.Background(), tt.id, "title")
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}

	queues := f.svc.ListQueues()
	assert.Empty(t, queues.Queue)
	assert.Empty(t, queues.Priority)
}

func TestService_AddTrackReturnsSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	normal, err := f.svc.AddTrack(ctx, "https://youtu.be/dQw4w9WgXcQ", "Rick")
	require.NoError(t, err)
	assert.Equal(t, []track.Track{{ID: "dQw4w9WgXcQ", Title: "Rick"}}, normal)

	normal, err = f.svc.AddTrack(ctx, "abc", "")
	require.NoError(t, err)
	assert.Len(t, normal, 2)

	priority, err := f.svc.AddPriorityTrack(ctx, "vip", "VIP")
	require.NoError(t, err)
	assert.Equal(t, []track.Track{{ID: "vip", Title: "VIP"}}, priority)

	queues := f.svc.ListQueues()
	assert.Len(t, queues.Queue, 2)
	assert.Len(t, queues.Priority, 1)
}

func TestService_AddTrackExpandsLinks(t *testing.T) {
	searcher := &fakeSearcher{expanded: map[string]track.Track{
		"spotify:track:1": {ID: "ytsearch1:Cher - Believe", Title: "Cher - Believe"},
	}}
	f := newFixture(t, searcher)

	normal, err := f.svc.AddTrack(context.Background(), "spotify:track:1", "")
	require.NoError(t, err)
	assert.Equal(t, "ytsearch1:Cher - Believe", normal[0].ID)
	assert.Equal(t, "Cher - Believe", normal[0].Title)

	normal, err = f.svc.AddTrack(context.Background(), "spotify:track:1", "My Title")
	require.NoError(t, err)
	assert.Equal(t, "My Title", normal[1].Title)

	searcher.err = errors.New("404")
	_, err = f.svc.AddTrack(context.Background(), "spotify:track:2", "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestService_TransportWhileIdle(t *testing.T) {
	f := newFixture(t, nil)

	for _, cmd := range []func() (string, error){f.svc.Pause, f.svc.Resume, f.svc.Skip} {
		status, err := cmd()
		require.NoError(t, err)
		assert.Equal(t, StatusNoSongPlaying, status)
	}

	status := f.svc.Status()
	assert.Nil(t, status.Current)
	assert.Equal(t, 0, status.Position)
	assert.Equal(t, 0.0, status.Duration)
	assert.False(t, status.Paused)
}

func TestService_PlaysAndControlsTracks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddTrack(ctx, "first", "")
	require.NoError(t, err)
	_, err = f.svc.AddTrack(ctx, "second", "Second")
	require.NoError(t, err)
	f.start(t)

	waitForCurrent(t, f.svc, "first")
	assert.Equal(t, "Remote first", f.svc.Status().Current.Title)

	status, err := f.svc.Pause()
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, status)
	assert.True(t, f.svc.Status().Paused)

	status, err = f.svc.Pause()
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, status)

	status, err = f.svc.Resume()
	require.NoError(t, err)
	assert.Equal(t, StatusResumed, status)

	status, err = f.svc.Skip()
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, status)

	waitForCurrent(t, f.svc, "second")
	assert.Equal(t, "Second", f.svc.Status().Current.Title)
	assert.Empty(t, f.svc.ListQueues().Queue)
}

func TestService_SkipsUnavailableTrack(t *testing.T) {
	f := newFixture(t, nil)
	f.fetcher.failFor["abc"] = true

	_, err := f.svc.AddTrack(context.Background(), "abc", "")
	require.NoError(t, err)
	_, err = f.svc.AddTrack(context.Background(), "def", "")
	require.NoError(t, err)
	f.start(t)

	waitForCurrent(t, f.svc, "def")
	assert.Empty(t, f.svc.ListQueues().Queue)
}

func TestService_Search(t *testing.T) {
	f := newFixture(t, nil)
	assert.Empty(t, f.svc.Search(context.Background(), "anything"))

	searcher := &fakeSearcher{results: []search.Result{{Track: track.Track{ID: "v1"}, Source: "YouTube"}}}
	f = newFixture(t, searcher)
	assert.Len(t, f.svc.Search(context.Background(), "song"), 1)

	results := f.svc.Search(context.Background(), " ")
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestService_WatchStreamsNotifications(t *testing.T) {
	f := newFixture(t, nil)
	f.fetcher.failFor["broken"] = true
	f.start(t)

	stream := &chanStream{ch: make(chan *notification.Notification, 64)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Watch(ctx, stream) }()

	first := <-stream.ch
	assert.Equal(t, notification.TypeInitialState, first.Type)
	assert.Nil(t, first.Status.Current)

	_, err := f.svc.AddTrack(context.Background(), "broken", "")
	require.NoError(t, err)

	seen := map[notification.Type]*notification.Notification{}
	require.Eventually(t, func() bool {
		for {
			select {
			case n := <-stream.ch:
				seen[n.Type] = n
			default:
				_, queued := seen[notification.TypeQueueUpdated]
				_, failed := seen[notification.TypeTrackFailed]
				return queued && failed
			}
		}
	}, 2*time.Second, time.Millisecond)

	failed := seen[notification.TypeTrackFailed]
	require.NotNil(t, failed.Track)
	assert.Equal(t, "broken", failed.Track.ID)
	assert.NotEmpty(t, failed.Error)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, f.svc.Notifier().SubscriberCount())
}

func TestService_StartTwice(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	assert.Error(t, f.svc.Start(context.Background()))
}

func TestService_WatchEndsOnStop(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	stream := &chanStream{ch: make(chan *notification.Notification, 64)}
	done := make(chan error, 1)
	go func() { done <- f.svc.Watch(context.Background(), stream) }()

	<-stream.ch
	f.svc.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after stop")
	}
}

func TestService_QueueUpdatesArriveInOrder(t *testing.T) {
	f := newFixture(t, nil)

	stream := &chanStream{ch: make(chan *notification.Notification, 64)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.svc.Watch(ctx, stream) }()

	initial := <-stream.ch
	require.Equal(t, notification.TypeInitialState, initial.Type)

	const total = 10
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AddTrack(context.Background(), string(rune('a'+i)), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	last := initial.Sequence
	for i := 1; i <= total; i++ {
		select {
		case n := <-stream.ch:
			require.Equal(t, notification.TypeQueueUpdated, n.Type)
			assert.Greater(t, n.Sequence, last)
			assert.Len(t, n.Queue, i)
			last = n.Sequence
		case <-time.After(2 * time.Second):
			t.Fatalf("missing queue update %d", i)
		}
	}
}
