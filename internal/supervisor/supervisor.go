package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrysochos/society/internal/exec"
	"github.com/chrysochos/society/internal/fabric"
	"github.com/chrysochos/society/internal/graph"
	"github.com/chrysochos/society/internal/mailbox"
	"github.com/chrysochos/society/internal/state"
	"github.com/chrysochos/society/internal/worker"
	"github.com/chrysochos/society/pkg/models"
)

// State is the supervisor lifecycle state for a purpose.
type State string

const (
	StateAnalyzing  State = "analyzing"
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateMonitoring State = "monitoring"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateStopped    State = "stopped"
)

// Terminal returns true if the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

// supervisorID is the well-known agent ID the supervisor registers under.
const supervisorID = models.AddressSupervisor

// Config wires a Supervisor. Fabric, Purpose, Planner, and Workers are
// required; everything else has a usable zero value.
type Config struct {
	// Purpose is the goal to pursue.
	Purpose *models.Purpose
	// Fabric carries all agent-to-agent messaging.
	Fabric *fabric.Fabric
	// Planner is the capability used for team analysis and task planning.
	Planner exec.WorkerExecutor
	// Workers is the capability each spawned worker executes tasks with.
	Workers exec.WorkerExecutor
	// DB persists purpose, task, and escalation state. Nil disables
	// persistence.
	DB *state.DB
	// Logger receives debug lines. Nil disables debug logging.
	Logger *DebugLogger
	// TaskTimeout bounds each task dispatch. Zero uses the fabric default.
	TaskTimeout time.Duration
	// StuckThreshold is how long a dispatched task may run before its
	// worker is nudged with a guidance message. Zero means 5 minutes.
	StuckThreshold time.Duration
	// MaxTaskRetries is how many times a failed task is re-dispatched
	// before it is accepted as failed. Zero means no retries.
	MaxTaskRetries int
	// Escalation configures the human escalation path.
	Escalation EscalationConfig
	// EventBuffer sizes the event channel. Zero means 100.
	EventBuffer int
}

// Summary is the outcome of a supervised purpose.
type Summary struct {
	PurposeID string
	State     State
	Progress  int
	Completed int
	Total     int
	Nodes     []*models.TaskNode
}

// Supervisor drives one purpose through analyzing, planning, executing,
// and monitoring to a terminal state. One supervisor per purpose.
type Supervisor struct {
	cfg        Config
	logger     *DebugLogger
	planner    *planner
	escalation *EscalationHandler
	emitter    *EventEmitter
	graph      *graph.TaskGraph

	sender *fabric.Sender
	mb     *mailbox.Mailbox

	mu       sync.Mutex
	state    State
	progress int
	team     []models.AgentIdentity
	stop     context.CancelFunc
	stopped  bool

	workerWG sync.WaitGroup
}

// New creates a Supervisor for the configured purpose.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Purpose == nil || cfg.Purpose.ID == "" {
		return nil, fmt.Errorf("supervisor: purpose is required")
	}
	if cfg.Fabric == nil {
		return nil, fmt.Errorf("supervisor: fabric is required")
	}
	if cfg.Planner == nil {
		return nil, fmt.Errorf("supervisor: planner capability is required")
	}
	if cfg.Workers == nil {
		return nil, fmt.Errorf("supervisor: worker capability is required")
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = 5 * time.Minute
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &Supervisor{
		cfg:        cfg,
		logger:     logger,
		planner:    newPlanner(cfg.Planner, logger),
		escalation: NewEscalationHandler(cfg.Escalation, logger),
		emitter:    NewEventEmitter(cfg.EventBuffer),
		graph:      graph.New(),
		state:      StateAnalyzing,
	}, nil
}

// Events returns the supervisor's event stream.
func (s *Supervisor) Events() <-chan Event {
	return s.emitter.Events()
}

// Escalations returns the handler accepting human responses.
func (s *Supervisor) Escalations() *EscalationHandler {
	return s.escalation
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the purpose progress percentage. It never decreases.
func (s *Supervisor) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Team returns the assembled worker identities.
func (s *Supervisor) Team() []models.AgentIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AgentIdentity, len(s.team))
	copy(out, s.team)
	return out
}

// Stop requests a graceful stop. In-flight tasks are abandoned, workers
// receive the shutdown broadcast, and the purpose ends in the stopped state.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.stop
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run drives the purpose to a terminal state and returns its summary.
// The event channel is closed before Run returns.
func (s *Supervisor) Run(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.stop = cancel
	s.mu.Unlock()

	defer s.emitter.Close()

	runErr := s.run(ctx)

	s.mu.Lock()
	final := s.state
	s.mu.Unlock()
	if !final.Terminal() {
		switch {
		case s.wasStopped() || ctx.Err() != nil:
			final = StateStopped
		case runErr != nil:
			final = StateFailed
		default:
			final = StateCompleted
		}
		s.setState(final)
	}

	s.persistPurpose()
	s.emit(Event{Type: EventPurposeDone, State: final, Error: runErr})

	completed, total := s.graph.Counts()
	return Summary{
		PurposeID: s.cfg.Purpose.ID,
		State:     final,
		Progress:  s.Progress(),
		Completed: completed,
		Total:     total,
		Nodes:     s.graph.Nodes(),
	}, runErr
}

func (s *Supervisor) run(ctx context.Context) error {
	mb, err := s.cfg.Fabric.Register(models.AgentIdentity{
		ID:          supervisorID,
		Role:        models.RoleSupervisor,
		Description: "supervisor for purpose " + s.cfg.Purpose.ID,
	})
	if err != nil {
		return fmt.Errorf("register supervisor: %w", err)
	}
	s.mb = mb

	sender, err := s.cfg.Fabric.Bind(supervisorID)
	if err != nil {
		return fmt.Errorf("bind supervisor: %w", err)
	}
	s.sender = sender

	// Drain our own mailbox in the background so worker notifications and
	// peer questions are recorded instead of piling up. The broadcast below
	// excludes the sender, so the inbox loop needs its own cancel.
	inboxCtx, stopInbox := context.WithCancel(ctx)
	inboxDone := make(chan struct{})
	go s.consumeInbox(inboxCtx, inboxDone)

	// Workers get the shutdown broadcast whichever way the run ends.
	defer func() {
		if err := s.sender.Broadcast(models.TypeShutdown, "purpose "+s.cfg.Purpose.ID+" ended"); err != nil {
			s.logger.Log("[supervisor] shutdown broadcast failed: %v", err)
		}
		s.workerWG.Wait()
		stopInbox()
		<-inboxDone
	}()

	s.persistPurpose()

	// Analyzing: decide the team.
	s.logger.Log("[supervisor] analyzing purpose %s: %s", s.cfg.Purpose.ID, s.cfg.Purpose.Description)
	team := s.planner.analyzeTeam(ctx, s.cfg.Purpose)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	s.team = team
	s.mu.Unlock()
	s.setProgress(10)
	s.emit(Event{Type: EventTeamAssembled, Message: fmt.Sprintf("%d workers", len(team))})

	if err := s.spawnWorkers(ctx, team); err != nil {
		return err
	}

	// Planning: break the purpose into the dependency graph.
	s.setState(StatePlanning)
	nodes := s.planner.planTasks(ctx, s.cfg.Purpose, team)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := s.graph.Build(nodes); err != nil {
		return fmt.Errorf("build task graph: %w", err)
	}
	s.persistNodes()
	// A standing plan is half the journey; task completions fill the rest.
	s.setProgress(50)
	s.emit(Event{Type: EventPlanReady, Message: fmt.Sprintf("%d tasks", len(nodes))})

	// Executing: dispatch the graph wave by wave.
	s.setState(StateExecuting)
	s.refreshProgress()
	if err := s.runWaves(ctx); err != nil {
		if ctx.Err() == nil {
			s.setState(StateFailed)
		}
		return err
	}

	// Monitoring: all nodes terminal; settle the outcome.
	s.setState(StateMonitoring)
	s.persistNodes()

	completed, total := s.graph.Counts()
	if completed == total {
		s.setState(StateCompleted)
		return nil
	}
	s.setState(StateFailed)
	return fmt.Errorf("purpose %s: %d of %d tasks failed", s.cfg.Purpose.ID, total-completed, total)
}

// spawnWorkers registers each team member on the fabric and starts its
// mailbox loop.
func (s *Supervisor) spawnWorkers(ctx context.Context, team []models.AgentIdentity) error {
	for _, identity := range team {
		mb, err := s.cfg.Fabric.Register(identity)
		if err != nil {
			return fmt.Errorf("register worker %s: %w", identity.ID, err)
		}
		sender, err := s.cfg.Fabric.Bind(identity.ID)
		if err != nil {
			return fmt.Errorf("bind worker %s: %w", identity.ID, err)
		}
		w := worker.New(identity, mb, sender, s.cfg.Workers)
		w.SetLogf(s.logger.Log)

		// Catch-up pass: anything persisted for this agent before it came
		// online lands in its mailbox now.
		if n, err := s.cfg.Fabric.Redeliver(identity.ID); err != nil {
			s.logger.Log("[supervisor] redeliver to %s: %v", identity.ID, err)
		} else if n > 0 {
			s.logger.Log("[supervisor] redelivered %d messages to %s", n, identity.ID)
		}

		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			if err := w.Run(ctx); err != nil {
				s.logger.Log("[supervisor] worker %s exited: %v", w.ID(), err)
			}
		}()
	}
	return nil
}

// consumeInbox logs everything arriving at the supervisor's own mailbox.
func (s *Supervisor) consumeInbox(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mb.OnShutdown(cancel)

	for {
		msg, err := s.mb.Next(ctx)
		if err != nil {
			return
		}
		s.logger.Log("[supervisor] inbox %s from %s: %s", msg.Type, msg.From, msg.Content)
	}
}

func (s *Supervisor) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	if s.state == next || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.logger.Log("[supervisor] state -> %s", next)
	s.persistPurpose()
	s.emit(Event{Type: EventStateChanged, State: next})
}

// setProgress raises the progress percentage. Lower values are ignored:
// progress is monotone for the life of the purpose.
func (s *Supervisor) setProgress(p int) {
	if p > 100 {
		p = 100
	}
	s.mu.Lock()
	if p <= s.progress {
		s.mu.Unlock()
		return
	}
	s.progress = p
	s.mu.Unlock()

	s.persistPurpose()
	s.emit(Event{Type: EventProgress, Progress: p})
}

// refreshProgress recomputes execution progress from the graph:
// 50 percent for having a running plan, the rest proportional to
// completed tasks.
func (s *Supervisor) refreshProgress() {
	completed, total := s.graph.Counts()
	if total == 0 {
		return
	}
	s.setProgress(50 + (50*completed)/total)
}

func (s *Supervisor) emit(ev Event) {
	ev.PurposeID = s.cfg.Purpose.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.emitter.Emit(ev)
}
