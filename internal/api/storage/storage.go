package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/model"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/pagination"
	"github.com/cuongbtq/jobmatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// foreign_key_violation
const pqForeignKeyViolation = "23503"

type Storage struct {
	pg *postgresql.Client
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		pg: pg,
		db: pg.GetDB(),
	}
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	query := `
		SELECT id, email, full_name, role, created_at
		FROM profiles
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &profile, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// LookupRole satisfies auth.RoleLookup. A missing profile row or an
// unknown role string maps to auth.ErrNoRole.
func (s *Storage) LookupRole(ctx context.Context, userID string) (auth.Role, error) {
	var role string
	query := `SELECT role FROM profiles WHERE id = $1`

	err := s.db.GetContext(ctx, &role, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", auth.ErrNoRole
		}
		return "", fmt.Errorf("failed to look up role: %w", err)
	}

	r := auth.Role(role)
	if !r.Valid() {
		return "", auth.ErrNoRole
	}
	return r, nil
}

func (s *Storage) NearbyJobs(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyJob, error) {
	query := `SELECT * FROM nearby_jobs($1, $2, $3)`

	jobs := []model.NearbyJob{}
	if err := s.db.SelectContext(ctx, &jobs, query, lat, lng, radiusKm); err != nil {
		return nil, fmt.Errorf("failed to call nearby_jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) NearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyWorker, error) {
	query := `SELECT * FROM nearby_workers($1, $2, $3)`

	workers := []model.NearbyWorker{}
	if err := s.db.SelectContext(ctx, &workers, query, lat, lng, radiusKm); err != nil {
		return nil, fmt.Errorf("failed to call nearby_workers: %w", err)
	}

	return workers, nil
}

// ToggleSavedJob flips the (worker, job) membership and reports whether the
// job is saved afterwards
func (s *Storage) ToggleSavedJob(ctx context.Context, workerID, jobID string) (bool, error) {
	var saved bool
	err := s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM saved_jobs WHERE worker_id = $1 AND job_id = $2`,
			workerID, jobID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete saved job: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete saved job: %w", err)
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO saved_jobs (worker_id, job_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			workerID, jobID,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("failed to save job: %w", err)
		}

		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return saved, nil
}

func (s *Storage) ListSavedJobs(ctx context.Context, workerID string) ([]model.SavedJob, error) {
	query := `
		SELECT
			j.id AS job_id, j.title, f.full_name AS factory_name, j.address,
			j.salary_min, j.salary_max, sj.created_at AS saved_at
		FROM saved_jobs sj
		JOIN jobs j ON j.id = sj.job_id
		JOIN profiles f ON f.id = j.factory_id
		WHERE sj.worker_id = $1
		ORDER BY sj.created_at DESC
	`

	jobs := []model.SavedJob{}
	if err := s.db.SelectContext(ctx, &jobs, query, workerID); err != nil {
		return nil, fmt.Errorf("failed to list saved jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) CountUsersByRole(ctx context.Context) ([]model.RoleCount, error) {
	query := `SELECT role, COUNT(*) AS count FROM profiles GROUP BY role ORDER BY role`

	counts := []model.RoleCount{}
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	return counts, nil
}

type UserFilter struct {
	Role     string
	PageSize int
	Cursor   *pagination.Cursor
}

// ListUsers returns up to PageSize+1 profiles, newest first, so the caller
// can tell whether another page exists
func (s *Storage) ListUsers(ctx context.Context, filter UserFilter) ([]model.Profile, error) {
	query := `
		SELECT id, email, full_name, role, created_at
		FROM profiles
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, filter.Role)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var users []model.Profile
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}
