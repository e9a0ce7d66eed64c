// Package service contains the business logic for submission intake and
// administration.
package service

import (
	"context"
	"log/slog"
	"time"

	"intake/internal/middleware"
	"intake/internal/models"
	"intake/internal/observability"
	"intake/internal/ratelimit"
	"intake/internal/repository"
	"intake/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// SubmitInput carries one raw submission attempt through the pipeline.
type SubmitInput struct {
	Actor   string `json:"actor"`
	Theme   string `json:"theme"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Person  string `json:"person"`
	Message string `json:"message"`

	ClientIP  string          `json:"-"`
	UserAgent string          `json:"-"`
	Identity  models.Identity `json:"-"`
}

// IntakeService runs the submission pipeline: blocklist, rate limit,
// validation, duplicate suppression, persistence. Steps run in that
// order so cheap rejections happen before storage is touched.
type IntakeService struct {
	repo       repository.SubmissionRepository
	limiter    *ratelimit.Limiter
	validator  *validation.Validator
	blockedIPs map[string]struct{}
	dupWindow  time.Duration
	now        func() time.Time
}

// NewIntakeService wires the pipeline dependencies.
func NewIntakeService(
	repo repository.SubmissionRepository,
	limiter *ratelimit.Limiter,
	validator *validation.Validator,
	blockedIPs []string,
	dupWindow time.Duration,
) *IntakeService {
	blocked := make(map[string]struct{}, len(blockedIPs))
	for _, ip := range blockedIPs {
		blocked[ip] = struct{}{}
	}
	return &IntakeService{
		repo:       repo,
		limiter:    limiter,
		validator:  validator,
		blockedIPs: blocked,
		dupWindow:  dupWindow,
		now:        time.Now,
	}
}

// Submit processes one submission attempt and returns the stored record
// on success. Every rejection is an *models.AppError carrying the
// taxonomy code for the failing step.
func (s *IntakeService) Submit(ctx context.Context, in SubmitInput) (*models.Submission, error) {
	span, ctx := observability.NewSpan(ctx, "intake.Submit")
	defer span.End()
	span.AddAttributes(
		attribute.String("submission.actor", in.Actor),
		attribute.Bool("submission.authenticated", !in.Identity.Anonymous()),
	)

	if _, blocked := s.blockedIPs[in.ClientIP]; blocked {
		middleware.Logger.WarnContext(ctx, "submission from blocked address rejected",
			slog.String("client_ip", in.ClientIP))
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeBlocked).Inc()
		return nil, models.NewForbiddenError("submissions from this address are not accepted")
	}

	allowed, err := s.limiter.Allow(ctx, in.Identity, in.ClientIP)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "rate limit store unavailable",
			slog.String("error", err.Error()))
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeStoreError).Inc()
		span.SetError(err)
		return nil, models.NewStoreUnavailableError(err)
	}
	if !allowed {
		middleware.Logger.InfoContext(ctx, "submission rate limited",
			slog.String("client_ip", in.ClientIP),
			slog.Uint64("user_id", uint64(in.Identity.UserID)))
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeRateLimited).Inc()
		return nil, models.NewRateLimitError("submission quota exceeded, try again later")
	}

	clean, report := s.validator.Validate(validation.Input{
		Actor:   in.Actor,
		Theme:   in.Theme,
		Email:   in.Email,
		Company: in.Company,
		Person:  in.Person,
		Message: in.Message,
	})
	if len(report) > 0 {
		middleware.Logger.InfoContext(ctx, "submission failed validation",
			slog.String("client_ip", in.ClientIP),
			slog.Any("fields", report.Fields()))
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeInvalid).Inc()
		return nil, models.NewFieldValidationError(report)
	}

	since := s.now().Add(-s.dupWindow)
	exists, err := s.repo.ExistsRecent(ctx, clean.Email, clean.Theme, since)
	if err != nil {
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeStoreError).Inc()
		span.SetError(err)
		return nil, err
	}
	if exists {
		middleware.Logger.InfoContext(ctx, "duplicate submission suppressed",
			slog.String("client_ip", in.ClientIP),
			slog.String("email", clean.Email))
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeDuplicate).Inc()
		return nil, models.NewDuplicateError("an identical submission was received recently")
	}

	sub := &models.Submission{
		Actor:     clean.Actor,
		Theme:     clean.Theme,
		Email:     clean.Email,
		Company:   clean.Company,
		Person:    clean.Person,
		Message:   clean.Message,
		Status:    models.StatusNew,
		SourceIP:  in.ClientIP,
		UserAgent: in.UserAgent,
	}
	if !in.Identity.Anonymous() {
		uid := in.Identity.UserID
		sub.UserID = &uid
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		observability.SubmissionsTotal.WithLabelValues(observability.OutcomeStoreError).Inc()
		span.SetError(err)
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "submission accepted",
		slog.Uint64("submission_id", uint64(sub.ID)),
		slog.String("actor", string(sub.Actor)),
		slog.String("client_ip", in.ClientIP))
	observability.SubmissionsTotal.WithLabelValues(observability.OutcomeAccepted).Inc()
	span.AddAttributes(attribute.Int("submission.id", int(sub.ID)))

	return sub, nil
}
