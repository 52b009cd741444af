package switcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/groups"
	"github.com/nerrad567/scene-rotator/internal/history"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// historyTimeout bounds a single history write.
const historyTimeout = 5 * time.Second

// HistoryRecorder stores switch history. *history.SQLiteRepository
// satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, entry *history.Entry) error
}

// Logger defines the logging interface used by the Service.
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

// Deps holds the collaborators a Service is built from.
type Deps struct {
	OBS   obs.Connector // required
	Store *groups.Store // required, already loaded

	Directory *obs.Directory  // optional, a fresh one is created when nil
	History   HistoryRecorder // optional
	Logger    Logger          // optional
}

// Config holds service settings.
type Config struct {
	// AutoStart lists groups to start rotating once the first scene list
	// arrives. Unknown names are logged and skipped.
	AutoStart []string

	// EmptyBackoff is passed to the rotation scheduler.
	EmptyBackoff time.Duration
}

// Service orchestrates the OBS connection, the scene directory, the group
// store and the rotation scheduler.
//
// All public methods are thread-safe.
type Service struct {
	conn      obs.Connector
	directory *obs.Directory
	store     *groups.Store
	scheduler *rotation.Scheduler
	history   HistoryRecorder
	logger    Logger

	autoStart     []string
	autoStartOnce sync.Once

	// issued holds switches sent to OBS whose confirmation event has not
	// arrived yet, oldest first.
	issuedMu sync.Mutex
	issued   []issuedSwitch

	broadcastersMu sync.RWMutex
	broadcasters   []Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
}

// confirmWindow is how long an issued switch waits for its confirmation
// event. A matching event after that counts as a change made in OBS.
const confirmWindow = 10 * time.Second

type issuedSwitch struct {
	scene string
	at    time.Time
}

// Ensure Service can drive the scheduler.
var _ rotation.Switcher = (*Service)(nil)

// New creates a service and registers it with the connector, the store and
// its scheduler. Register listeners on deps.OBS before starting it so the
// first scene list is not missed.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.OBS == nil {
		return nil, fmt.Errorf("obs connector is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("group store is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	directory := deps.Directory
	if directory == nil {
		directory = obs.NewDirectory()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		conn:      deps.OBS,
		directory: directory,
		store:     deps.Store,
		history:   deps.History,
		logger:    logger,
		autoStart: slices.Clone(cfg.AutoStart),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.scheduler = rotation.NewScheduler(s.store, s, rotation.Config{EmptyBackoff: cfg.EmptyBackoff})
	s.scheduler.SetLogger(logger)
	s.scheduler.OnTransition(s.handleTransition)

	s.store.OnChange(s.scheduler.HandleGroupChange)
	s.store.OnChange(s.handleGroupChange)

	s.conn.OnSceneList(s.handleSceneList)
	s.conn.OnEvent(obs.EventCurrentProgramSceneChanged, s.handleProgramSceneChanged)
	s.conn.OnStateChange(s.handleStateChange)

	return s, nil
}

// AddBroadcaster registers b for every subsequent notification.
func (s *Service) AddBroadcaster(b Broadcaster) {
	s.broadcastersMu.Lock()
	s.broadcasters = append(s.broadcasters, b)
	s.broadcastersMu.Unlock()
}

// Directory returns the scene directory the service maintains.
func (s *Service) Directory() *obs.Directory {
	return s.directory
}

// Store returns the group store.
func (s *Service) Store() *groups.Store {
	return s.store
}

// ConnectionState returns the OBS session state.
func (s *Service) ConnectionState() obs.State {
	return s.conn.State()
}

// OBSStats returns the connector's counters.
func (s *Service) OBSStats() obs.Stats {
	return s.conn.Stats()
}

// CurrentScene returns the program scene as last switched or reported.
func (s *Service) CurrentScene() (string, bool) {
	return s.directory.Current()
}

// SwitchScene puts name on program on behalf of an operator. It returns once
// the request is on the wire; confirmation arrives as an event.
func (s *Service) SwitchScene(ctx context.Context, name string) error {
	return s.switchTo(ctx, name, history.SourceOperator, "")
}

// RotateTo is called by the scheduler for each scene in a rotation pass.
func (s *Service) RotateTo(ctx context.Context, group, scene string) error {
	return s.switchTo(ctx, scene, history.SourceRotation, group)
}

func (s *Service) switchTo(ctx context.Context, scene, source, group string) error {
	if scene == "" {
		return ErrSceneRequired
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	// Marked before sending: the confirmation can beat SwitchScene's return.
	s.markIssued(scene)
	if err := s.conn.SwitchScene(ctx, scene); err != nil {
		s.confirmIssued(scene)
		return fmt.Errorf("switching to %q: %w", scene, err)
	}

	s.directory.SetCurrent(scene)
	s.logger.Debug("scene switch issued", "scene", scene, "source", source, "group", group)

	s.record(scene, source, group)
	s.broadcast(EventSceneChanged, SceneChanged{
		Scene:  scene,
		Source: source,
		Group:  group,
		At:     time.Now().UTC(),
	})
	return nil
}

// RefreshScenes asks OBS for a fresh listing. The directory and the store
// are updated from it asynchronously, as with any other listing.
func (s *Service) RefreshScenes(ctx context.Context) ([]string, error) {
	scenes, err := s.conn.RequestSceneList(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing scene list: %w", err)
	}
	return scenes, nil
}

// StartRotation starts rotating group. Starting an active group is a no-op.
func (s *Service) StartRotation(group string) error {
	if group == "" {
		return ErrGroupRequired
	}
	if err := s.scheduler.Start(group); err != nil {
		if errors.Is(err, rotation.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// StopRotation stops group's rotation and reports whether it was active.
func (s *Service) StopRotation(group string) bool {
	return s.scheduler.Stop(group)
}

// StopAllRotations stops every rotation and returns the groups stopped.
func (s *Service) StopAllRotations() []string {
	return s.scheduler.StopAll()
}

// IsRotating reports whether group is rotating.
func (s *Service) IsRotating(group string) bool {
	return s.scheduler.IsActive(group)
}

// Rotations describes every active rotation.
func (s *Service) Rotations() []rotation.Status {
	return s.scheduler.Status()
}

// Close stops all rotations and waits for them to exit. It does not close
// the OBS connector.
func (s *Service) Close() {
	s.cancel()
	s.scheduler.Close()
}

// ─── OBS listeners ──────────────────────────────────────────────────

func (s *Service) handleSceneList(list obs.SceneList) {
	s.directory.Replace(list.Scenes)
	if list.Current != "" {
		s.directory.SetCurrent(list.Current)
	}

	report := s.store.Reconcile(s.ctx, s.directory)
	if report.Changed() {
		s.logger.Info("groups reconciled against scene list",
			"newly_hidden", report.NewlyHidden,
			"pruned_groups", report.PrunedGroups,
			"pruned_entries", report.PrunedEntries,
		)
	}

	s.broadcast(EventScenesUpdated, s.directory.Snapshot())
	s.autoStartOnce.Do(s.startConfigured)
}

func (s *Service) handleProgramSceneChanged(e obs.Event) {
	name, err := e.SceneName()
	if err != nil {
		s.logger.Warn("ignoring program scene event", "error", err)
		return
	}

	if s.confirmIssued(name) {
		// Our own switch, already recorded. A late confirmation must not
		// pull current back from a newer switch.
		return
	}

	prev, _ := s.directory.Current()
	s.directory.SetCurrent(name)
	if prev == name {
		return
	}

	s.record(name, history.SourceExternal, "")
	s.broadcast(EventSceneChanged, SceneChanged{
		Scene:  name,
		Source: history.SourceExternal,
		At:     time.Now().UTC(),
	})
}

func (s *Service) markIssued(scene string) {
	s.issuedMu.Lock()
	s.issued = append(s.issued, issuedSwitch{scene: scene, at: time.Now()})
	s.issuedMu.Unlock()
}

// confirmIssued consumes the oldest unexpired issued switch to scene and
// reports whether there was one. Expired entries are dropped.
func (s *Service) confirmIssued(scene string) bool {
	s.issuedMu.Lock()
	defer s.issuedMu.Unlock()

	cutoff := time.Now().Add(-confirmWindow)
	s.issued = slices.DeleteFunc(s.issued, func(is issuedSwitch) bool {
		return is.at.Before(cutoff)
	})
	i := slices.IndexFunc(s.issued, func(is issuedSwitch) bool { return is.scene == scene })
	if i < 0 {
		return false
	}
	s.issued = slices.Delete(s.issued, i, i+1)
	return true
}

func (s *Service) handleStateChange(state obs.State) {
	ready := state == obs.StateReady
	if !ready {
		s.directory.Invalidate()
		// Confirmations never arrive across a reconnect.
		s.issuedMu.Lock()
		s.issued = nil
		s.issuedMu.Unlock()
	}
	s.logger.Info("obs connection state changed", "state", state.String())
	s.broadcast(EventOBSConnection, ConnectionChanged{
		State: state.String(),
		Ready: ready,
		At:    time.Now().UTC(),
	})
}

func (s *Service) startConfigured() {
	for _, name := range s.autoStart {
		if err := s.StartRotation(name); err != nil {
			s.logger.Warn("auto-start rotation failed", "group", name, "error", err)
		}
	}
}

// ─── Store and scheduler listeners ──────────────────────────────────

func (s *Service) handleGroupChange(ch groups.Change) {
	s.broadcast(EventGroupsUpdated, GroupsChanged{
		Kind:    string(ch.Kind),
		Name:    ch.Name,
		OldName: ch.OldName,
	})
}

func (s *Service) handleTransition(t rotation.Transition) {
	var eventType string
	switch t.Kind {
	case rotation.TransitionStarted:
		eventType = EventRotationStarted
	case rotation.TransitionStopped, rotation.TransitionVanished:
		eventType = EventRotationStopped
	default:
		return
	}

	s.broadcast(eventType, RotationChanged{
		Group:  t.Group,
		Reason: string(t.Kind),
		Active: s.scheduler.Active(),
		At:     t.At.UTC(),
	})
}

// ─── Fan-out ────────────────────────────────────────────────────────

func (s *Service) record(scene, source, group string) {
	if s.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), historyTimeout)
	defer cancel()

	entry := &history.Entry{Scene: scene, Source: source, Group: group}
	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Error("recording switch history", "scene", scene, "error", err)
	}
}

func (s *Service) broadcast(eventType string, payload any) {
	s.broadcastersMu.RLock()
	broadcasters := slices.Clone(s.broadcasters)
	s.broadcastersMu.RUnlock()

	for _, b := range broadcasters {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("broadcaster panic", "event", eventType, "panic", r)
				}
			}()
			b.Broadcast(eventType, payload)
		}()
	}
}
