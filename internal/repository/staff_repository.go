package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// StaffRepository handles persistence for routing candidates.
type StaffRepository interface {
	Upsert(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) Upsert(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff_members (id, name, email, role, performance, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE
        SET name=EXCLUDED.name, email=EXCLUDED.email, role=EXCLUDED.role, performance=EXCLUDED.performance,
            active_flag=EXCLUDED.active_flag, updated_at=NOW()
        RETURNING created_at, updated_at`
	const expertiseQuery = `
        INSERT INTO staff_expertise (staff_id, category, score) VALUES ($1,$2,$3)
        ON CONFLICT (staff_id, category) DO UPDATE SET score=EXCLUDED.score`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, query,
		staff.ID,
		staff.Name,
		staff.Email,
		staff.Role,
		staff.Performance,
		staff.Active,
	).Scan(&staff.CreatedAt, &staff.UpdatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM staff_expertise WHERE staff_id=$1`, staff.ID); err != nil {
		return err
	}
	for category, score := range staff.Expertise {
		if _, err := tx.Exec(ctx, expertiseQuery, staff.ID, category, score); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, email, role, performance, active_flag, created_at, updated_at
        FROM staff_members WHERE id=$1`

	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.Role,
		&staff.Performance,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff member", map[string]any{"id": id})
		}
		return nil, err
	}
	members := []domain.StaffMember{staff}
	if err := r.attachExpertise(ctx, members); err != nil {
		return nil, err
	}
	return &members[0], nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := `
        SELECT id, name, email, role, performance, active_flag, created_at, updated_at
        FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	// stable order keeps routing tie-breaks deterministic
	query += " ORDER BY created_at ASC, id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.ID,
			&staff.Name,
			&staff.Email,
			&staff.Role,
			&staff.Performance,
			&staff.Active,
			&staff.CreatedAt,
			&staff.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachExpertise(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *staffRepository) attachExpertise(ctx context.Context, members []domain.StaffMember) error {
	if len(members) == 0 {
		return nil
	}
	ids := make([]string, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		ids[i] = m.ID
		index[m.ID] = i
		members[i].Expertise = map[domain.GrievanceCategory]float64{}
	}

	rows, err := r.pool.Query(ctx, `SELECT staff_id, category, score FROM staff_expertise WHERE staff_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			staffID  string
			category domain.GrievanceCategory
			score    float64
		)
		if err := rows.Scan(&staffID, &category, &score); err != nil {
			return err
		}
		if i, ok := index[staffID]; ok {
			members[i].Expertise[category] = score
		}
	}
	return rows.Err()
}
