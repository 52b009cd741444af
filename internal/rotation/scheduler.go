package rotation

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/groups"
)

// defaultEmptyBackoff is how long a rotation waits before rechecking a group
// whose scenes are all hidden.
const defaultEmptyBackoff = time.Second

// GroupSource provides the group definitions a rotation reads on every pass.
// *groups.Store satisfies it.
type GroupSource interface {
	Exists(name string) bool
	Visible(name string) (groups.View, error)
}

// Switcher issues scene switches on behalf of a rotation.
type Switcher interface {
	RotateTo(ctx context.Context, group, scene string) error
}

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TransitionKind classifies a rotation transition.
type TransitionKind string

// Transition kinds.
const (
	TransitionStarted  TransitionKind = "started"
	TransitionStopped  TransitionKind = "stopped"
	TransitionSwitched TransitionKind = "switched"
	// TransitionVanished means the group was deleted under a running rotation.
	TransitionVanished TransitionKind = "vanished"
)

// Transition is delivered to OnTransition listeners.
type Transition struct {
	Kind  TransitionKind `json:"kind"`
	Group string         `json:"group"`
	Scene string         `json:"scene,omitempty"`
	At    time.Time      `json:"at"`
}

// Status describes one active rotation.
type Status struct {
	Group        string    `json:"group"`
	StartedAt    time.Time `json:"started_at"`
	CurrentScene string    `json:"current_scene,omitempty"`
	Passes       int       `json:"passes"`
}

// Config holds scheduler settings.
type Config struct {
	// EmptyBackoff is the recheck delay for a group with no visible scenes.
	// Default: 1 second.
	EmptyBackoff time.Duration
}

// Scheduler runs one cancellable rotation per active group.
//
// The active set is the only thing that decides whether a rotation may keep
// switching: every cycle checks its membership before each switch. Stop
// removes the group and cancels its context, which also interrupts the wait
// between scenes.
//
// A pass reads the group's visible scenes and interval once, so edits take
// effect at the next pass boundary.
//
// All public methods are thread-safe.
type Scheduler struct {
	source       GroupSource
	switcher     Switcher
	emptyBackoff time.Duration

	mu     sync.Mutex
	active map[string]*run
	closed bool

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger Logger

	listenersMu sync.RWMutex
	listeners   []func(Transition)
}

type run struct {
	cancel    context.CancelFunc
	startedAt time.Time

	// Guarded by Scheduler.mu.
	current string
	passes  int
}

// NewScheduler creates a scheduler. Wire group deletions with
//
//	store.OnChange(scheduler.HandleGroupChange)
func NewScheduler(source GroupSource, switcher Switcher, cfg Config) *Scheduler {
	if cfg.EmptyBackoff <= 0 {
		cfg.EmptyBackoff = defaultEmptyBackoff
	}
	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:       source,
		switcher:     switcher,
		emptyBackoff: cfg.EmptyBackoff,
		active:       make(map[string]*run),
		root:         root,
		cancel:       cancel,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// OnTransition registers a listener for started, stopped, switched and
// vanished transitions. Switched transitions are delivered from the
// rotation's goroutine.
func (s *Scheduler) OnTransition(fn func(Transition)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Start begins rotating group. Starting an active group is a no-op.
func (s *Scheduler) Start(group string) error {
	if !s.source.Exists(group) {
		return fmt.Errorf("%w: %q", groups.ErrGroupNotFound, group)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.active[group]; ok {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(s.root)
	r := &run{cancel: cancel, startedAt: time.Now()}
	s.active[group] = r
	s.wg.Add(1)
	s.mu.Unlock()

	go s.cycle(ctx, group, r)

	s.logger.Info("rotation started", "group", group)
	s.notify(Transition{Kind: TransitionStarted, Group: group, At: r.startedAt})
	return nil
}

// Stop ends a group's rotation and reports whether it was active. Stopping
// an inactive group is a no-op.
func (s *Scheduler) Stop(group string) bool {
	s.mu.Lock()
	r, ok := s.active[group]
	if ok {
		delete(s.active, group)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	r.cancel()

	s.logger.Info("rotation stopped", "group", group)
	s.notify(Transition{Kind: TransitionStopped, Group: group, At: time.Now()})
	return true
}

// StopAll stops every active rotation and returns the groups stopped.
func (s *Scheduler) StopAll() []string {
	names := s.Active()
	stopped := make([]string, 0, len(names))
	for _, name := range names {
		if s.Stop(name) {
			stopped = append(stopped, name)
		}
	}
	return stopped
}

// HandleGroupChange keeps the active set in line with the store: deleted
// groups stop, renamed groups keep rotating under their new name.
func (s *Scheduler) HandleGroupChange(ch groups.Change) {
	switch ch.Kind {
	case groups.ChangeDeleted:
		s.Stop(ch.Name)
	case groups.ChangeRenamed:
		if s.Stop(ch.OldName) {
			if err := s.Start(ch.Name); err != nil {
				s.logger.Warn("could not resume renamed rotation", "group", ch.Name, "error", err)
			}
		}
	}
}

// IsActive reports whether group is rotating.
func (s *Scheduler) IsActive(group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[group]
	return ok
}

// Active returns the rotating groups, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.active))
	for name := range s.active {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

// Status returns a snapshot of every active rotation, sorted by group.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	out := make([]Status, 0, len(s.active))
	for name, r := range s.active {
		out = append(out, Status{
			Group:        name,
			StartedAt:    r.startedAt,
			CurrentScene: r.current,
			Passes:       r.passes,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// Close stops all rotations and waits for their goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.active = make(map[string]*run)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// cycle is the body of one rotation.
func (s *Scheduler) cycle(ctx context.Context, group string, r *run) {
	defer s.wg.Done()

	for {
		view, err := s.source.Visible(group)
		if err != nil {
			if s.deregister(group, r) {
				s.logger.Info("rotation group no longer exists, stopping", "group", group)
				s.notify(Transition{Kind: TransitionVanished, Group: group, At: time.Now()})
			}
			return
		}

		if len(view.Scenes) == 0 {
			s.logger.Debug("no visible scenes, backing off", "group", group, "backoff", s.emptyBackoff.String())
			if !wait(ctx, s.emptyBackoff) {
				return
			}
			continue
		}

		for _, scene := range view.Scenes {
			if !s.owns(group, r) {
				return
			}

			if err := s.switcher.RotateTo(ctx, group, scene); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("rotation switch failed", "group", group, "scene", scene, "error", err)
			} else {
				s.mu.Lock()
				r.current = scene
				s.mu.Unlock()
				s.notify(Transition{Kind: TransitionSwitched, Group: group, Scene: scene, At: time.Now()})
			}

			if !wait(ctx, view.Interval) {
				return
			}
		}

		s.mu.Lock()
		r.passes++
		s.mu.Unlock()
	}
}

// owns reports whether r is still the registered rotation for group.
func (s *Scheduler) owns(group string, r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[group] == r
}

// deregister removes r if it is still registered for group.
func (s *Scheduler) deregister(group string, r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[group] != r {
		return false
	}
	delete(s.active, group)
	r.cancel()
	return true
}

func (s *Scheduler) notify(t Transition) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("rotation listener panic", "panic", rec)
				}
			}()
			fn(t)
		}()
	}
}

// wait sleeps for d unless ctx ends first; it reports whether the full
// duration elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
