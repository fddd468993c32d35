package playback

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/cache"
	"github.com/osa030/tubebox/internal/domain/track"
)

// Errors
var (
	ErrNoActiveTrack  = errors.New("no track playing")
	ErrBusy           = errors.New("playback slot is occupied")
	ErrPlaybackFailed = errors.New("playback failed")
	ErrClosed         = errors.New("engine closed")
)

// DefaultTickInterval is the position granularity.
const DefaultTickInterval = time.Second

// Resolver turns a track identifier into a local asset.
type Resolver interface {
	Resolve(ctx context.Context, id string) (cache.Entry, error)
}

// Invalidator is implemented by resolvers that can drop an asset which
// turned out to be unplayable.
type Invalidator interface {
	Invalidate(id string)
}

// Device is an audio output that plays one asset at a time.
type Device interface {
	// Load prepares the asset at path and returns its measured length.
	Load(path string) (time.Duration, error)
	Start() error
	Pause()
	Resume()
	// Stop halts output and releases the loaded asset.
	Stop()
	// Active reports whether the loaded asset is still producing audio.
	Active() bool
}

// Config holds engine configuration.
type Config struct {
	TickInterval time.Duration // Wall time per position second
}

// Status is a snapshot of the playback slot.
type Status struct {
	Current  *track.Track
	Position int     // Seconds played
	Duration float64 // Asset length in seconds
	Paused   bool
	State    State
}

type endReason int

const (
	reasonCompleted endReason = iota
	reasonSkipped
	reasonStopped
)

// Engine owns the single playback slot.
type Engine struct {
	mu sync.RWMutex

	// Slot state
	current  *track.Track
	state    State
	position int
	duration float64
	loading  bool   // Play is resolving/loading; the slot is reserved
	loadID   string // Track being resolved while loading

	// Skip signal for the active session
	skipRequested bool
	skipCh        chan struct{}

	resolver Resolver
	device   Device
	config   Config

	eventCh chan Event
	closed  bool
}

// NewEngine creates a new playback engine.
func NewEngine(config Config, resolver Resolver, device Device) *Engine {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	return &Engine{
		state:    StateIdle,
		resolver: resolver,
		device:   device,
		config:   config,
		eventCh:  make(chan Event, 64),
	}
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Play resolves t, plays it and blocks until the session ends.
// A resolve failure leaves the engine idle and returns an error marked
// with cache.ErrAssetUnavailable.
func (e *Engine) Play(ctx context.Context, t track.Track) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.current != nil || e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	e.loading = true
	e.loadID = t.ID
	e.mu.Unlock()

	skipCh, err := e.start(ctx, t)

	e.mu.Lock()
	e.loading = false
	e.loadID = ""
	e.mu.Unlock()

	if err != nil {
		e.fail(t, err)
		return err
	}

	reason := e.run(ctx, skipCh)
	e.finish(reason)

	if reason == reasonStopped {
		return ctx.Err()
	}
	return nil
}

// start resolves and loads the asset and fills the slot.
func (e *Engine) start(ctx context.Context, t track.Track) (chan struct{}, error) {
	entry, err := e.resolver.Resolve(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	// Payload titles win; the resolved title only fills a missing one.
	if t.Title == "" {
		t = t.WithTitle(entry.Title)
	}

	if _, err := os.Stat(entry.Path); err != nil {
		e.invalidate(t.ID)
		return nil, errors.Mark(errors.Wrapf(err, "asset missing: %s", entry.Path), ErrPlaybackFailed)
	}

	length, err := e.device.Load(entry.Path)
	if err != nil {
		e.device.Stop()
		e.invalidate(t.ID)
		return nil, errors.Mark(errors.Wrapf(err, "failed to load asset: %s", entry.Path), ErrPlaybackFailed)
	}

	skipCh := make(chan struct{}, 1)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.device.Start(); err != nil {
		e.device.Stop()
		return nil, errors.Mark(errors.Wrap(err, "failed to start device"), ErrPlaybackFailed)
	}

	e.current = &t
	e.state = StatePlaying
	e.position = 0
	e.duration = length.Seconds()
	e.skipRequested = false
	e.skipCh = skipCh

	zlog.Info().Msgf("playback: started: id=%s title=%q duration=%.1fs", t.ID, t.Title, e.duration)
	e.sendEventLocked(Event{
		Type:   EventTrackStarted,
		Track:  e.copyCurrentLocked(),
		Status: e.statusLocked(),
	})

	return skipCh, nil
}

// invalidate drops an unplayable asset so the next attempt fetches it again.
func (e *Engine) invalidate(id string) {
	if inv, ok := e.resolver.(Invalidator); ok {
		inv.Invalidate(id)
	}
}

// run waits for the session to end. Each tick advances the position;
// skip and cancellation interrupt the wait immediately.
func (e *Engine) run(ctx context.Context, skipCh <-chan struct{}) endReason {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return reasonStopped
		case <-skipCh:
			return reasonSkipped
		case <-ticker.C:
			if reason, done := e.tick(); done {
				return reason
			}
		}
	}
}

// tick advances the position by one second unless paused.
// A pending skip always wins over the position update.
func (e *Engine) tick() (endReason, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.skipRequested {
		return reasonSkipped, true
	}
	if e.state == StatePaused {
		return 0, false
	}
	if !e.device.Active() {
		return reasonCompleted, true
	}

	limit := int(math.Ceil(e.duration))
	if limit == 0 || e.position < limit {
		e.position++
	}

	e.sendEventLocked(Event{
		Type:   EventProgress,
		Track:  e.copyCurrentLocked(),
		Status: e.statusLocked(),
	})
	return 0, false
}

// finish releases the device and returns the slot to idle.
func (e *Engine) finish(reason endReason) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.device.Stop()

	ended := e.copyCurrentLocked()
	position := e.position

	e.current = nil
	e.state = StateIdle
	e.position = 0
	e.duration = 0
	e.skipRequested = false
	e.skipCh = nil

	eventType := EventTrackEnded
	switch reason {
	case reasonSkipped:
		eventType = EventTrackSkipped
	case reasonStopped:
		eventType = EventTrackStopped
	}

	if ended != nil {
		zlog.Info().Msgf("playback: %s: id=%s position=%ds", eventType, ended.ID, position)
	}
	e.sendEventLocked(Event{
		Type:   eventType,
		Track:  ended,
		Status: e.statusLocked(),
	})
}

// fail reports a track that never entered the slot.
func (e *Engine) fail(t track.Track, err error) {
	zlog.Warn().Msgf("playback: failed to start: id=%s error=%v", t.ID, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendEventLocked(Event{
		Type:   EventTrackFailed,
		Track:  &t,
		Status: e.statusLocked(),
		Err:    err,
	})
}

// Pause pauses the current track. Pausing a paused track is a no-op.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoActiveTrack
	}
	if e.state == StatePaused {
		return nil
	}

	e.device.Pause()
	e.state = StatePaused

	e.sendEventLocked(Event{
		Type:   EventStateChanged,
		Track:  e.copyCurrentLocked(),
		Status: e.statusLocked(),
	})
	return nil
}

// Resume resumes the current track. Resuming a playing track is a no-op.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoActiveTrack
	}
	if e.state == StatePlaying {
		return nil
	}

	e.device.Resume()
	e.state = StatePlaying

	e.sendEventLocked(Event{
		Type:   EventStateChanged,
		Track:  e.copyCurrentLocked(),
		Status: e.statusLocked(),
	})
	return nil
}

// Skip requests that the current session end now.
// The session observes the request asynchronously.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoActiveTrack
	}
	if e.skipRequested {
		return nil
	}

	e.skipRequested = true
	select {
	case e.skipCh <- struct{}{}:
	default:
	}
	zlog.Debug().Msgf("playback: skip requested: id=%s", e.current.ID)
	return nil
}

// Status returns a snapshot of the playback slot.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statusLocked()
}

// IsIdle reports whether the slot is free.
func (e *Engine) IsIdle() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current == nil && !e.loading
}

// Holds reports whether id is playing or being loaded.
func (e *Engine) Holds(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loading && e.loadID == id {
		return true
	}
	return e.current != nil && e.current.ID == id
}

// Close closes the event channel. Sessions must have ended.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.eventCh)
}

func (e *Engine) statusLocked() Status {
	if e.current == nil {
		return Status{State: StateIdle}
	}
	return Status{
		Current:  e.copyCurrentLocked(),
		Position: e.position,
		Duration: e.duration,
		Paused:   e.state == StatePaused,
		State:    e.state,
	}
}

func (e *Engine) copyCurrentLocked() *track.Track {
	if e.current == nil {
		return nil
	}
	t := *e.current
	return &t
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
		// Channel full, drop event
	}
}
