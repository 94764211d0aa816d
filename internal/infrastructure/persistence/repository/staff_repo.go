package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// StaffRepository implements port.StaffDirectory over the users table.
// The role column doubles as the department.
type StaffRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStaffRepository creates a new staff directory
func NewStaffRepository(db *sql.DB, logger *zap.Logger) port.StaffDirectory {
	return &StaffRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by ID
func (r *StaffRepository) GetByID(ctx context.Context, id int64) (*entity.Staff, error) {
	query := `SELECT id, name, email, role, is_active, lark_open_id FROM users WHERE id = ?`

	staff, err := scanStaff(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get staff", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return staff, nil
}

// ListActiveStaff returns active non-admin users ordered by ID
func (r *StaffRepository) ListActiveStaff(ctx context.Context) ([]*entity.Staff, error) {
	query := `
		SELECT id, name, email, role, is_active, lark_open_id
		FROM users
		WHERE is_active = 1 AND role != ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, entity.RoleAdmin)
	if err != nil {
		r.logger.Error("Failed to list active staff", zap.Error(err))
		return nil, fmt.Errorf("failed to list active staff: %w", err)
	}
	defer rows.Close()

	var staff []*entity.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		staff = append(staff, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staff: %w", err)
	}
	return staff, nil
}

func scanStaff(row rowScanner) (*entity.Staff, error) {
	var (
		s      entity.Staff
		email  sql.NullString
		openID sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &email, &s.Department, &s.IsActive, &openID); err != nil {
		return nil, err
	}
	s.Email = email.String
	s.LarkOpenID = openID.String
	return &s, nil
}

var _ port.StaffDirectory = (*StaffRepository)(nil)
