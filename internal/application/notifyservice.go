package application

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
	"go.uber.org/zap"
)

const defaultAlertQueueSize = 64

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether addr has the shape of an e-mail address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// NotifyService formats and sends case change reports and low balance alerts.
type NotifyService struct {
	mailer     driven.Mailer
	adminEmail string
	alerts     chan model.LowBalanceAlert
	newBackOff func() backoff.BackOff
	now        func() time.Time
	logger     *zap.Logger
}

// NotifyOption configures optional NotifyService behaviour.
type NotifyOption func(*NotifyService)

// WithAlertQueueSize sets how many low balance alerts may wait for the worker.
func WithAlertQueueSize(n int) NotifyOption {
	return func(s *NotifyService) {
		s.alerts = make(chan model.LowBalanceAlert, n)
	}
}

// WithRetryBackOff sets the retry policy used for alert delivery.
func WithRetryBackOff(newBackOff func() backoff.BackOff) NotifyOption {
	return func(s *NotifyService) {
		s.newBackOff = newBackOff
	}
}

// NewNotifyService creates a NotifyService. Low balance alerts go to
// adminEmail; they are dropped when it is empty.
func NewNotifyService(mailer driven.Mailer, adminEmail string, logger *zap.Logger, opts ...NotifyOption) *NotifyService {
	s := &NotifyService{
		mailer:     mailer,
		adminEmail: adminEmail,
		alerts:     make(chan model.LowBalanceAlert, defaultAlertQueueSize),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyCaseChange mails a change report for fc to recipients. Addresses that
// are not e-mail shaped are dropped; it fails when none remain.
func (s *NotifyService) NotifyCaseChange(ctx context.Context, fc model.FollowedCase, changes model.ChangeSet, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients for case %d", ErrValidation, fc.ID)
	}

	valid := make([]string, 0, len(recipients))
	for _, addr := range recipients {
		if !ValidEmail(addr) {
			s.logger.Warn("dropping invalid recipient", zap.String("recipient", addr), zap.Int64("case_id", fc.ID))
			continue
		}
		valid = append(valid, addr)
	}
	if len(valid) == 0 {
		return fmt.Errorf("%w: no valid recipients for case %d", ErrValidation, fc.ID)
	}

	body := changeReport(fc, changes, s.now())
	email := driven.Email{
		To:      valid,
		Subject: changeSubject(fc),
		HTML:    renderMarkdown(body),
		Text:    body,
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("send change report for case %d: %w", fc.ID, err)
	}

	s.logger.Info("change notification sent",
		zap.Int64("case_id", fc.ID),
		zap.Int("recipients", len(valid)),
		zap.Strings("fields", changes.Fields()),
	)
	return nil
}

// LowBalance queues alert for the worker without blocking. When the queue is
// full the alert is dropped.
func (s *NotifyService) LowBalance(alert model.LowBalanceAlert) {
	if s.adminEmail == "" {
		s.logger.Warn("no admin address configured, low balance alert dropped", zap.Int64("owner_id", alert.Owner.ID))
		return
	}

	select {
	case s.alerts <- alert:
	default:
		s.logger.Warn("alert queue full, low balance alert dropped",
			zap.Int64("owner_id", alert.Owner.ID),
			zap.Int64("balance", alert.Balance),
		)
	}
}

// Start delivers queued low balance alerts until ctx is canceled.
func (s *NotifyService) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification worker stopped")
			return
		case alert := <-s.alerts:
			if err := s.sendAlert(ctx, alert); err != nil {
				s.logger.Error("low balance alert failed",
					zap.Int64("owner_id", alert.Owner.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (s *NotifyService) sendAlert(ctx context.Context, alert model.LowBalanceAlert) error {
	body := lowBalanceReport(alert)
	email := driven.Email{
		To:      []string{s.adminEmail},
		Subject: "Owner Credit Below Threshold",
		HTML:    renderMarkdown(body),
		Text:    body,
	}

	attempt := 0
	op := func() error {
		attempt++
		err := s.mailer.Send(ctx, email)
		if err != nil {
			s.logger.Warn("low balance alert attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("send low balance alert after %d attempts: %w", attempt, err)
	}

	s.logger.Info("low balance alert sent", zap.Int64("owner_id", alert.Owner.ID), zap.Int64("balance", alert.Balance))
	return nil
}
