// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"intake/internal/models"
	"intake/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SubmissionFilter narrows List queries. Zero values mean "no filter".
type SubmissionFilter struct {
	Status models.Status
	Actor  models.Actor
	Search string
	Limit  int
	Offset int
}

// SubmissionStats aggregates counts for the admin dashboard.
type SubmissionStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByActor    map[string]int64 `json:"by_actor"`
	RecentWeek int64            `json:"recent_week"`
}

// SubmissionRepository defines the interface for submission data operations
type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]*models.Submission, int64, error)
	UpdateStatus(ctx context.Context, id uint, status models.Status) error
	Delete(ctx context.Context, id uint) error
	ExistsRecent(ctx context.Context, email, theme string, since time.Time) (bool, error)
	Stats(ctx context.Context, recentSince time.Time) (*SubmissionStats, error)
}

// submissionRepository implements SubmissionRepository
type submissionRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewSubmissionRepository creates a new submission repository. timeout bounds
// every query; zero disables the bound.
func NewSubmissionRepository(db *gorm.DB, timeout time.Duration) SubmissionRepository {
	return &submissionRepository{db: db, timeout: timeout}
}

func (r *submissionRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// isTransient reports whether err looks like a backend availability problem
// rather than a query bug, so callers can answer 503 instead of 500.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions, class 57: operator intervention
		// (shutdown, cancellation).
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57")
	}
	return errors.Is(err, gorm.ErrInvalidDB)
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("submission not found")
	}
	if isTransient(err) {
		return models.NewStoreUnavailableError(err)
	}
	return err
}

func (r *submissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("create", "submissions")()
	return wrapStoreErr(r.db.WithContext(ctx).Create(sub).Error)
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("get", "submissions")()

	var sub models.Submission
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, wrapStoreErr(err)
	}
	return &sub, nil
}

// filtered applies the filter conditions to a fresh query. Search
// covers theme, email and person, matched case-insensitively with LIKE
// for cross-database portability.
func (r *submissionRepository) filtered(ctx context.Context, filter SubmissionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Submission{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Actor != "" {
		q = q.Where("actor = ?", string(filter.Actor))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		q = q.Where(
			"LOWER(theme) LIKE ? OR LOWER(email) LIKE ? OR LOWER(person) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	return q
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]*models.Submission, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("list", "submissions")()

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	q := r.filtered(ctx, filter).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var subs []*models.Submission
	err := q.Find(&subs).Error
	if err != nil {
		return nil, 0, wrapStoreErr(err)
	}
	return subs, total, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id uint, status models.Status) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("update", "submissions")()

	res := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return wrapStoreErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("submission not found")
	}
	return nil
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("delete", "submissions")()

	res := r.db.WithContext(ctx).Delete(&models.Submission{}, id)
	if res.Error != nil {
		return wrapStoreErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("submission not found")
	}
	return nil
}

func (r *submissionRepository) ExistsRecent(ctx context.Context, email, theme string, since time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("exists_recent", "submissions")()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("email = ? AND theme = ? AND created_at >= ?", email, theme, since).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreErr(err)
	}
	return count > 0, nil
}

func (r *submissionRepository) Stats(ctx context.Context, recentSince time.Time) (*SubmissionStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer observability.TrackQuery("stats", "submissions")()

	stats := &SubmissionStats{
		ByStatus: make(map[string]int64),
		ByActor:  make(map[string]int64),
	}

	db := r.db.WithContext(ctx).Model(&models.Submission{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, wrapStoreErr(err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byActor []bucket
	err = r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("actor AS key, COUNT(*) AS count").
		Group("actor").
		Scan(&byActor).Error
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	for _, b := range byActor {
		stats.ByActor[b.Key] = b.Count
	}

	err = r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("created_at >= ?", recentSince).
		Count(&stats.RecentWeek).Error
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	return stats, nil
}
