package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCycleTimeout bounds a single poll cycle.
const DefaultCycleTimeout = 10 * time.Minute

// CaseTrackingCharger charges the workspace owner for one background case poll.
type CaseTrackingCharger interface {
	ChargeCaseTracking(ctx context.Context, workspaceID int64) (model.DebitResult, error)
}

// ChangeNotifier delivers a change report for one case.
type ChangeNotifier interface {
	NotifyCaseChange(ctx context.Context, fc model.FollowedCase, changes model.ChangeSet, recipients []string) error
}

// ConfigureRequest sets the polling schedule of a (workspace, role) pair.
type ConfigureRequest struct {
	WorkspaceID int64
	Role        string
	Days        int
	Hours       int
	Minutes     int
	Recipients  []string
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	CycleID   string
	Total     int
	Processed int
	Changed   int
	Skipped   int
	Errors    int
}

// PollService keeps followed cases of each scheduled workspace up to date.
// On every fire it fetches each case, diffs it against the stored snapshot,
// stores the new snapshot, charges one research credit and notifies
// recipients of any change.
type PollService struct {
	configs      driven.PollConfigStore
	cases        driven.CaseStore
	provider     driven.CaseDataProvider
	charger      CaseTrackingCharger
	notifier     ChangeNotifier
	registry     *ScheduleRegistry
	skip         map[string]bool
	cycleTimeout time.Duration
	logger       *zap.Logger

	// runCtx parents every scheduled cycle; Start cancels it on shutdown.
	runCtx   context.Context
	stopRuns context.CancelFunc
}

// PollOption configures optional PollService behaviour.
type PollOption func(*PollService)

// WithSkipFields replaces the top-level fields ignored by change detection.
func WithSkipFields(fields ...string) PollOption {
	return func(s *PollService) {
		s.skip = make(map[string]bool, len(fields))
		for _, f := range fields {
			s.skip[f] = true
		}
	}
}

// WithCycleTimeout bounds each scheduled cycle.
func WithCycleTimeout(d time.Duration) PollOption {
	return func(s *PollService) {
		s.cycleTimeout = d
	}
}

// NewPollService creates a PollService that installs its timers in registry.
func NewPollService(
	configs driven.PollConfigStore,
	cases driven.CaseStore,
	provider driven.CaseDataProvider,
	charger CaseTrackingCharger,
	notifier ChangeNotifier,
	registry *ScheduleRegistry,
	logger *zap.Logger,
	opts ...PollOption,
) *PollService {
	s := &PollService{
		configs:      configs,
		cases:        cases,
		provider:     provider,
		charger:      charger,
		notifier:     notifier,
		registry:     registry,
		skip:         DefaultSkipFields,
		cycleTimeout: DefaultCycleTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runCtx, s.stopRuns = context.WithCancel(context.Background())
	return s
}

// Configure validates and stores the schedule, then replaces any timer
// installed for the same key.
func (s *PollService) Configure(ctx context.Context, req ConfigureRequest) (model.PollConfig, Recurrence, error) {
	if req.WorkspaceID <= 0 {
		return model.PollConfig{}, Recurrence{}, fmt.Errorf("%w: workspace is required", ErrValidation)
	}
	role := normalizeRole(req.Role)

	rec, err := DeriveRecurrence(req.Days, req.Hours, req.Minutes)
	if err != nil {
		return model.PollConfig{}, Recurrence{}, err
	}

	recipients, err := cleanRecipients(req.Recipients)
	if err != nil {
		return model.PollConfig{}, Recurrence{}, err
	}

	saved, err := s.configs.Upsert(ctx, model.PollConfig{
		WorkspaceID: req.WorkspaceID,
		Role:        role,
		Days:        req.Days,
		Hours:       req.Hours,
		Minutes:     req.Minutes,
		Recipients:  recipients,
	})
	if err != nil {
		return model.PollConfig{}, Recurrence{}, err
	}

	if err := s.install(saved, rec); err != nil {
		return model.PollConfig{}, Recurrence{}, err
	}

	s.logger.Info("poll schedule configured",
		zap.Int64("workspace_id", saved.WorkspaceID),
		zap.String("role", saved.Role),
		zap.String("schedule", rec.Expr),
		zap.Int("recipients", len(saved.Recipients)),
	)
	return saved, rec, nil
}

// GetConfig returns the stored schedule of the key.
func (s *PollService) GetConfig(ctx context.Context, workspaceID int64, role string) (model.PollConfig, Recurrence, error) {
	role = normalizeRole(role)

	cfg, err := s.configs.Get(ctx, workspaceID, role)
	if err != nil {
		return model.PollConfig{}, Recurrence{}, err
	}
	if cfg == nil {
		return model.PollConfig{}, Recurrence{}, fmt.Errorf("poll config %d/%s: %w", workspaceID, role, driven.ErrPollConfigNotFound)
	}

	rec, err := DeriveRecurrence(cfg.Days, cfg.Hours, cfg.Minutes)
	if err != nil {
		return model.PollConfig{}, Recurrence{}, fmt.Errorf("stored poll config %d/%s: %w", workspaceID, role, err)
	}
	return *cfg, rec, nil
}

// Scheduled reports whether a timer is installed for the key.
func (s *PollService) Scheduled(workspaceID int64, role string) bool {
	return s.registry.Active(ScheduleKey{WorkspaceID: workspaceID, Role: normalizeRole(role)})
}

// Stop cancels future cycles for the key and deletes its stored schedule. A
// cycle already running finishes normally.
func (s *PollService) Stop(ctx context.Context, workspaceID int64, role string) error {
	key := ScheduleKey{WorkspaceID: workspaceID, Role: normalizeRole(role)}
	removed := s.registry.Remove(key)

	err := s.configs.Delete(ctx, key.WorkspaceID, key.Role)
	if err != nil && !(removed && errors.Is(err, driven.ErrPollConfigNotFound)) {
		return err
	}

	s.logger.Info("poll schedule stopped", zap.Int64("workspace_id", key.WorkspaceID), zap.String("role", key.Role))
	return nil
}

// Restore re-arms a timer for every stored schedule and returns how many
// were installed. Schedules that no longer validate are logged and skipped.
func (s *PollService) Restore(ctx context.Context) (int, error) {
	configs, err := s.configs.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list poll configs: %w", err)
	}

	restored := 0
	for _, cfg := range configs {
		rec, err := DeriveRecurrence(cfg.Days, cfg.Hours, cfg.Minutes)
		if err == nil {
			err = s.install(cfg, rec)
		}
		if err != nil {
			s.logger.Error("skipping stored poll schedule",
				zap.Int64("workspace_id", cfg.WorkspaceID),
				zap.String("role", cfg.Role),
				zap.Error(err),
			)
			continue
		}
		restored++
	}

	s.logger.Info("poll schedules restored", zap.Int("restored", restored), zap.Int("stored", len(configs)))
	return restored, nil
}

// Start runs the schedule registry until ctx is canceled. It then cancels
// running cycles and waits for them to return.
func (s *PollService) Start(ctx context.Context) {
	s.registry.Start()
	s.logger.Info("poll scheduler started", zap.Int("schedules", s.registry.Len()))

	<-ctx.Done()

	s.stopRuns()
	<-s.registry.Stop().Done()
	s.logger.Info("poll service stopped")
}

func (s *PollService) install(cfg model.PollConfig, rec Recurrence) error {
	key := ScheduleKey{WorkspaceID: cfg.WorkspaceID, Role: cfg.Role}
	fallback := append([]string(nil), cfg.Recipients...)

	return s.registry.Install(key, rec.Expr, func() {
		ctx, cancel := context.WithTimeout(s.runCtx, s.cycleTimeout)
		defer cancel()
		s.RunCycle(ctx, key, fallback)
	})
}

// RunCycle polls every case followed by the key's workspace once. Failures
// are contained per case and a panic is contained per cycle; both are
// counted in the returned report.
func (s *PollService) RunCycle(ctx context.Context, key ScheduleKey, fallbackRecipients []string) (report CycleReport) {
	start := time.Now()
	report.CycleID = uuid.NewString()
	log := s.logger.With(
		zap.String("cycle_id", report.CycleID),
		zap.Int64("workspace_id", key.WorkspaceID),
		zap.String("role", key.Role),
	)

	defer func() {
		if r := recover(); r != nil {
			report.Errors++
			log.Error("poll cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		log.Info("poll cycle complete",
			zap.Int("cases", report.Total),
			zap.Int("processed", report.Processed),
			zap.Int("changed", report.Changed),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors),
			zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		)
	}()

	recipients := s.currentRecipients(ctx, log, key, fallbackRecipients)

	cases, err := s.cases.ListByWorkspace(ctx, key.WorkspaceID, "")
	if err != nil {
		log.Error("list followed cases failed", zap.Error(err))
		report.Errors++
		return report
	}
	report.Total = len(cases)

	for _, fc := range cases {
		if ctx.Err() != nil {
			log.Warn("poll cycle interrupted", zap.Error(ctx.Err()))
			report.Errors++
			return report
		}

		changed, err := s.pollCase(ctx, log, fc, recipients)
		switch {
		case errors.Is(err, model.ErrMissingIdentifier):
			report.Skipped++
		case err != nil:
			log.Error("case poll failed", zap.Int64("case_id", fc.ID), zap.String("court", fc.Court), zap.Error(err))
			report.Errors++
		default:
			report.Processed++
			if changed {
				report.Changed++
			}
		}
	}

	return report
}

// currentRecipients re-reads the stored recipient list, falling back to the
// list captured when the timer was installed.
func (s *PollService) currentRecipients(ctx context.Context, log *zap.Logger, key ScheduleKey, fallback []string) []string {
	cfg, err := s.configs.Get(ctx, key.WorkspaceID, key.Role)
	switch {
	case err != nil:
		log.Warn("re-reading recipients failed, using installed list", zap.Error(err))
		return fallback
	case cfg == nil || len(cfg.Recipients) == 0:
		return fallback
	default:
		return cfg.Recipients
	}
}

// pollCase fetches one case, stores its snapshot, charges for the fetch and
// notifies on change. It reports whether a change was detected.
func (s *PollService) pollCase(ctx context.Context, log *zap.Logger, fc model.FollowedCase, recipients []string) (bool, error) {
	id := fc.Identifier()
	if err := id.Validate(); err != nil {
		log.Warn("skipping case without identifier",
			zap.Int64("case_id", fc.ID),
			zap.String("court", fc.Court),
			zap.String("field", id.Kind.IdentifierField()),
		)
		return false, err
	}

	current, err := s.provider.FetchCase(ctx, id)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", id.Key(), err)
	}

	var previous model.Value
	if fc.Snapshot != nil {
		previous, err = model.ParseValue(fc.Snapshot)
		if err != nil {
			log.Warn("stored snapshot is corrupt, treating as absent", zap.Int64("case_id", fc.ID), zap.Error(err))
			previous = nil
			if err := s.cases.ClearSnapshot(ctx, fc.ID); err != nil {
				log.Error("clearing corrupt snapshot failed", zap.Int64("case_id", fc.ID), zap.Error(err))
			}
		}
	}

	changes := DetectChanges(previous, current, s.skip)

	if err := s.cases.UpdateSnapshot(ctx, fc.ID, []byte(model.Canonical(current))); err != nil {
		return false, fmt.Errorf("store snapshot: %w", err)
	}

	if _, err := s.charger.ChargeCaseTracking(ctx, fc.WorkspaceID); err != nil {
		log.Warn("case tracking charge failed", zap.Int64("case_id", fc.ID), zap.Error(err))
	}

	if len(changes) == 0 {
		return false, nil
	}

	if err := s.notifier.NotifyCaseChange(ctx, fc, changes, recipients); err != nil {
		log.Error("change notification failed", zap.Int64("case_id", fc.ID), zap.Error(err))
	}
	return true, nil
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return model.DefaultPollRole
	}
	return role
}

func cleanRecipients(recipients []string) ([]string, error) {
	cleaned := make([]string, 0, len(recipients))
	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		if !ValidEmail(r) {
			return nil, fmt.Errorf("%w: invalid recipient %q", ErrValidation, r)
		}
		seen[r] = true
		cleaned = append(cleaned, r)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	return cleaned, nil
}
