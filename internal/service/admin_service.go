package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"intake/internal/middleware"
	"intake/internal/models"
	"intake/internal/repository"
)

// newlineFlattener keeps multi-line messages on one CSV row.
var newlineFlattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// csvHeader is the fixed column set of the export.
var csvHeader = []string{"id", "created_at", "actor", "status", "person", "company", "email", "theme", "message", "source_ip"}

// AdminService exposes the review surface over stored submissions.
// Every operation checks the caller's capabilities itself rather than
// trusting the transport layer.
type AdminService struct {
	repo repository.SubmissionRepository
	now  func() time.Time
}

// NewAdminService returns an AdminService over the given repository.
func NewAdminService(repo repository.SubmissionRepository) *AdminService {
	return &AdminService{repo: repo, now: time.Now}
}

func requireAdmin(identity models.Identity) error {
	if !identity.IsAdmin && !identity.IsSuperuser {
		return models.NewForbiddenError("admin access required")
	}
	return nil
}

// List returns submissions matching the filter, newest first, with the
// total match count for pagination.
func (s *AdminService) List(ctx context.Context, identity models.Identity, filter repository.SubmissionFilter) ([]*models.Submission, int64, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, models.NewValidationError("unknown status filter")
	}
	if filter.Actor != "" && !filter.Actor.Valid() {
		return nil, 0, models.NewValidationError("unknown actor filter")
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Get returns a single submission by ID.
func (s *AdminService) Get(ctx context.Context, identity models.Identity, id uint) (*models.Submission, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus moves a submission to a new review state. Status is the
// only mutable field; submission content is immutable once stored.
func (s *AdminService) UpdateStatus(ctx context.Context, identity models.Identity, id uint, status models.Status) (*models.Submission, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.NewValidationError("status must be one of: new, completed, rejected")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "submission status updated",
		slog.Uint64("submission_id", uint64(id)),
		slog.String("status", string(status)),
		slog.Uint64("updated_by", uint64(identity.UserID)))

	return s.repo.GetByID(ctx, id)
}

// Delete permanently removes a submission. Superusers only.
func (s *AdminService) Delete(ctx context.Context, identity models.Identity, id uint) error {
	if !identity.IsSuperuser {
		return models.NewForbiddenError("superuser access required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "submission deleted",
		slog.Uint64("submission_id", uint64(id)),
		slog.Uint64("deleted_by", uint64(identity.UserID)))
	return nil
}

// Stats returns dashboard counts: totals by status and actor, plus the
// volume of the trailing week.
func (s *AdminService) Stats(ctx context.Context, identity models.Identity) (*repository.SubmissionStats, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, s.now().Add(-7*24*time.Hour))
}

// ExportCSV streams submissions matching the filter to w as CSV with a
// fixed header row. Message newlines are flattened so each record stays
// on one row.
func (s *AdminService) ExportCSV(ctx context.Context, identity models.Identity, filter repository.SubmissionFilter, w io.Writer) error {
	if err := requireAdmin(identity); err != nil {
		return err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return models.NewValidationError("unknown status filter")
	}
	if filter.Actor != "" && !filter.Actor.Valid() {
		return models.NewValidationError("unknown actor filter")
	}

	// Export is unpaginated; walk the full match set in pages.
	const pageSize = 500
	filter.Limit = pageSize
	filter.Offset = 0

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return models.NewInternalError(err)
	}

	for {
		subs, _, err := s.repo.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			row := []string{
				fmt.Sprintf("%d", sub.ID),
				sub.CreatedAt.UTC().Format(time.RFC3339),
				string(sub.Actor),
				string(sub.Status),
				sub.Person,
				sub.Company,
				sub.Email,
				sub.Theme,
				newlineFlattener.Replace(sub.Message),
				sub.SourceIP,
			}
			if err := cw.Write(row); err != nil {
				return models.NewInternalError(err)
			}
		}
		if len(subs) < pageSize {
			break
		}
		filter.Offset += pageSize
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
