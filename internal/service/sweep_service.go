package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/academiafit/academia-api/internal/billing"
	"github.com/academiafit/academia-api/internal/models"
	"github.com/academiafit/academia-api/pkg/jobs"
)

type sweepEnrollmentRepository interface {
	ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	InactivateExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SuspendWithStudents(ctx context.Context, enrollmentIDs []string) (int64, error)
}

type sweepInstallmentRepository interface {
	FlagOverdueBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type sweepObserver interface {
	ObserveSweep(sweep string, affected int64, err error)
	ObserveTransition(status, origin string, count int64)
}

// SweepResult summarises one full sweep pass.
type SweepResult struct {
	Expired     int64 `json:"expired"`
	Inactivated int64 `json:"inactivated"`
	Suspended   int64 `json:"suspended"`
}

// SweepService runs the periodic lifecycle transitions: expiring enrollments
// past their end date, inactivating expired ones past the grace window, and
// suspending enrollments with overdue installments. Every sweep is
// idempotent, so overlapping or repeated passes are harmless.
type SweepService struct {
	enrollments  sweepEnrollmentRepository
	installments sweepInstallmentRepository
	observer     sweepObserver
	graceDays    int
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewSweepService constructs SweepService. observer may be nil.
func NewSweepService(enrollments sweepEnrollmentRepository, installments sweepInstallmentRepository, observer sweepObserver, graceDays int, logger *zap.Logger, loc *time.Location) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if graceDays < 0 {
		graceDays = 0
	}
	return &SweepService{
		enrollments:  enrollments,
		installments: installments,
		observer:     observer,
		graceDays:    graceDays,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// ExpireEnrollments flips ACTIVE enrollments whose end date fell before
// today to EXPIRED. Student status is untouched: the member keeps access
// through the grace window.
func (s *SweepService) ExpireEnrollments(ctx context.Context) (int64, error) {
	cutoff := billing.StartOfDay(s.now(), s.loc)
	affected, err := s.enrollments.ExpireActiveBefore(ctx, cutoff)
	s.observe("expire", affected, err)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.transition(string(models.EnrollmentStatusExpired), string(models.EnrollmentStatusActive), affected)
		s.logger.Info("expired enrollments past end date", zap.Int64("count", affected))
	}
	return affected, nil
}

// InactivateExpired moves EXPIRED enrollments whose end date passed the grace
// window to INACTIVE and cascades the same status to their students.
func (s *SweepService) InactivateExpired(ctx context.Context) (int64, error) {
	cutoff := billing.StartOfDay(s.now(), s.loc).AddDate(0, 0, -s.graceDays)
	affected, err := s.enrollments.InactivateExpiredBefore(ctx, cutoff)
	s.observe("inactivate", affected, err)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.transition(string(models.EnrollmentStatusInactive), string(models.EnrollmentStatusExpired), affected)
		s.logger.Info("inactivated enrollments past grace window",
			zap.Int64("count", affected), zap.Int("grace_days", s.graceDays))
	}
	return affected, nil
}

// FlagOverdueInstallments marks pending installments past due as OVERDUE and
// suspends the affected enrollments together with their students.
func (s *SweepService) FlagOverdueInstallments(ctx context.Context) (int64, error) {
	cutoff := billing.StartOfDay(s.now(), s.loc)
	enrollmentIDs, err := s.installments.FlagOverdueBefore(ctx, cutoff)
	if err != nil {
		s.observe("overdue", 0, err)
		return 0, err
	}

	suspended, err := s.enrollments.SuspendWithStudents(ctx, enrollmentIDs)
	s.observe("overdue", suspended, err)
	if err != nil {
		return 0, err
	}
	if suspended > 0 {
		s.transition(string(models.EnrollmentStatusInactive), string(models.EnrollmentStatusActive), suspended)
		s.logger.Info("suspended enrollments with overdue installments",
			zap.Int64("count", suspended), zap.Int("flagged_enrollments", len(enrollmentIDs)))
	}
	return suspended, nil
}

// RunAll executes the three sweeps in dependency order: expiry feeds the
// grace-window inactivation, and overdue flagging runs last.
func (s *SweepService) RunAll(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	var err error

	if result.Expired, err = s.ExpireEnrollments(ctx); err != nil {
		return result, err
	}
	if result.Inactivated, err = s.InactivateExpired(ctx); err != nil {
		return result, err
	}
	if result.Suspended, err = s.FlagOverdueInstallments(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Tasks exposes the sweeps to the periodic scheduler.
func (s *SweepService) Tasks() []jobs.Task {
	return []jobs.Task{
		{Name: "expire-enrollments", Run: func(ctx context.Context) error {
			_, err := s.ExpireEnrollments(ctx)
			return err
		}},
		{Name: "inactivate-expired", Run: func(ctx context.Context) error {
			_, err := s.InactivateExpired(ctx)
			return err
		}},
		{Name: "flag-overdue-installments", Run: func(ctx context.Context) error {
			_, err := s.FlagOverdueInstallments(ctx)
			return err
		}},
	}
}

func (s *SweepService) observe(name string, affected int64, err error) {
	if s.observer != nil {
		s.observer.ObserveSweep(name, affected, err)
	}
}

func (s *SweepService) transition(status, origin string, count int64) {
	if s.observer != nil {
		s.observer.ObserveTransition(status, origin, count)
	}
}
