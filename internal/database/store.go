package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Store provides typed access to console-owned tables: users and the
// cloud-job journal. Restore jobs themselves live upstream; the journal only
// remembers which cloud jobs this console dispatched.
type Store struct {
	db *DB
}

// NewStore creates a store over an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a console user.
func (s *Store) CreateUser(user *models.User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, username, email, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, user.Email, user.PasswordHash, string(user.Role), user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByUsername looks up an active or inactive user by username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, password_hash, role, is_active, created_at, updated_at
		FROM users WHERE username = ?
	`, username))
}

// CountUsers returns the number of console users.
func (s *Store) CountUsers() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GetUserByID looks up a user by id.
func (s *Store) GetUserByID(id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, password_hash, role, is_active, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var id, role string
	err := row.Scan(&id, &user.Username, &user.Email, &user.PasswordHash, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	user.Role = models.OrgRole(role)
	return &user, nil
}

// SaveCloudJob journals a dispatched cloud restore.
func (s *Store) SaveCloudJob(job *models.RestoreJob) error {
	targetType := ""
	if job.CloudTarget != nil {
		targetType = string(job.CloudTarget.Type)
	}

	_, err := s.db.Exec(`
		INSERT INTO cloud_jobs (restore_id, snapshot_id, target_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(restore_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`, job.ID.String(), job.SnapshotID, targetType, string(job.Status), time.Now(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to journal cloud job: %w", err)
	}
	return nil
}

// UpdateCloudJobStatus records the latest observed status of a cloud job.
func (s *Store) UpdateCloudJobStatus(restoreID uuid.UUID, status models.RestoreStatus) error {
	_, err := s.db.Exec(`
		UPDATE cloud_jobs SET status = ?, updated_at = ? WHERE restore_id = ?
	`, string(status), time.Now(), restoreID.String())
	if err != nil {
		return fmt.Errorf("failed to update cloud job status: %w", err)
	}
	return nil
}

// ListActiveCloudJobs returns the ids of journaled jobs whose last observed
// status was not terminal. Used to resume progress polling after a restart.
func (s *Store) ListActiveCloudJobs() ([]uuid.UUID, error) {
	rows, err := s.db.Query(`
		SELECT restore_id FROM cloud_jobs
		WHERE status NOT IN ('completed', 'failed', 'canceled')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active cloud jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue // skip malformed rows rather than blocking resume
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
