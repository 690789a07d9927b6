package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleKey identifies one polling schedule.
type ScheduleKey struct {
	WorkspaceID int64
	Role        string
}

func (k ScheduleKey) String() string {
	return fmt.Sprintf("%d/%s", k.WorkspaceID, k.Role)
}

// scheduleSlot is the registry's record of one key. The guarded job is built
// once per key and the slot outlives Remove, so a reinstall while a cycle is
// still running skips until that cycle returns.
type scheduleSlot struct {
	id     cron.EntryID
	active bool
	mu     sync.Mutex
	run    func()
	guard  cron.Job
}

func (s *scheduleSlot) current() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// ScheduleRegistry owns every live polling timer, keyed by (workspace, role).
// There is at most one cron entry per key.
type ScheduleRegistry struct {
	cron   *cron.Cron
	logger cron.Logger

	mu    sync.Mutex
	slots map[ScheduleKey]*scheduleSlot
}

// NewScheduleRegistry creates a registry backed by its own cron runner. Jobs
// recover from panics and skip a fire while the previous one for the same key
// is still running.
func NewScheduleRegistry(logger *zap.Logger) *ScheduleRegistry {
	cl := cronLogger{log: logger.Named("cron").Sugar()}
	return &ScheduleRegistry{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		logger: cl,
		slots:  make(map[ScheduleKey]*scheduleSlot),
	}
}

// Install schedules job under key using a standard five-field cron
// expression, replacing any entry already installed for key.
func (r *ScheduleRegistry) Install(key ScheduleKey, expr string, job func()) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %v", ErrValidation, expr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[key]
	if ok {
		if slot.active {
			r.cron.Remove(slot.id)
		}
	} else {
		slot = &scheduleSlot{}
		slot.guard = cron.NewChain(cron.SkipIfStillRunning(r.logger)).Then(cron.FuncJob(func() {
			if run := slot.current(); run != nil {
				run()
			}
		}))
		r.slots[key] = slot
	}

	slot.mu.Lock()
	slot.run = job
	slot.mu.Unlock()
	slot.id = r.cron.Schedule(schedule, slot.guard)
	slot.active = true

	return nil
}

// Remove cancels future fires for key. A cycle already running is not
// interrupted. It reports whether an entry existed.
func (r *ScheduleRegistry) Remove(key ScheduleKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[key]
	if !ok || !slot.active {
		return false
	}
	r.cron.Remove(slot.id)
	slot.active = false
	slot.mu.Lock()
	slot.run = nil
	slot.mu.Unlock()
	return true
}

// Active reports whether key has an installed entry.
func (r *ScheduleRegistry) Active(key ScheduleKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[key]
	return ok && slot.active
}

// Len returns the number of installed keys.
func (r *ScheduleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, slot := range r.slots {
		if slot.active {
			n++
		}
	}
	return n
}

// Start starts the cron runner in its own goroutine.
func (r *ScheduleRegistry) Start() {
	r.cron.Start()
}

// Stop stops the runner. The returned context is done once running jobs
// have completed.
func (r *ScheduleRegistry) Stop() context.Context {
	return r.cron.Stop()
}

// cronLogger adapts zap onto cron.Logger. cron's Info messages fire on every
// wake, so they are logged at debug level.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
