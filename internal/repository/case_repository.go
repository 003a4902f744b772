package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// CaseRepository is the system of record for grievance cases. Writes go
// through CompareAndSave so concurrent writers never silently overwrite.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error)
	FindByStatusIn(ctx context.Context, statuses []domain.CaseStatus) ([]*domain.Case, error)
	FindByAssignee(ctx context.Context, staffID string, statuses []domain.CaseStatus) ([]*domain.Case, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*domain.Case, error)
	FindBySubmittedBetween(ctx context.Context, from, to time.Time) ([]*domain.Case, error)
	CompareAndSave(ctx context.Context, c *domain.Case, expectedVersion int64) error
}

func caseNotFound(key, value string) error {
	return apperrors.NewNotFound("case", map[string]any{key: value})
}

func staleVersion(id string, expected int64) error {
	return apperrors.NewConflict("case was modified concurrently", map[string]any{
		"id":               id,
		"expected_version": expected,
	})
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates the postgres-backed case store.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, case_number, complainant_id, complainant_contact, subject, description, category,
               priority, status, escalation_level, assignee_id, assigned_at, submitted_at, resolution_target_at,
               resolved_at, escalated_at, escalation_reason, resolution_summary, last_sla_tier, satisfaction,
               version, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO grievance_cases (id, case_number, complainant_id, complainant_contact, subject, description,
            category, priority, status, escalation_level, assignee_id, assigned_at, submitted_at,
            resolution_target_at, last_sla_tier, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1,$16,$16)`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, query,
		c.ID,
		c.CaseNumber,
		c.ComplainantID,
		c.ComplainantContact,
		c.Subject,
		c.Description,
		c.Category,
		c.Priority,
		c.Status,
		c.EscalationLevel,
		c.AssigneeID,
		c.AssignedAt,
		c.SubmittedAt,
		c.ResolutionTargetAt,
		c.LastSLATier,
		c.CreatedAt,
	); err != nil {
		return err
	}
	if err := insertActivities(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	c.Version = 1
	return nil
}

func (r *caseRepository) CompareAndSave(ctx context.Context, c *domain.Case, expectedVersion int64) error {
	const query = `
        UPDATE grievance_cases SET priority=$1, status=$2, escalation_level=$3, assignee_id=$4, assigned_at=$5,
            resolution_target_at=$6, resolved_at=$7, escalated_at=$8, escalation_reason=$9,
            resolution_summary=$10, last_sla_tier=$11, satisfaction=$12, updated_at=$13, version=version+1
        WHERE id=$14 AND version=$15`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, query,
		c.Priority,
		c.Status,
		c.EscalationLevel,
		c.AssigneeID,
		c.AssignedAt,
		c.ResolutionTargetAt,
		c.ResolvedAt,
		c.EscalatedAt,
		c.EscalationReason,
		c.ResolutionSummary,
		c.LastSLATier,
		c.Satisfaction,
		c.UpdatedAt,
		c.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM grievance_cases WHERE id=$1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return caseNotFound("id", c.ID)
		}
		return staleVersion(c.ID, expectedVersion)
	}
	if err := insertActivities(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return nil
}

// insertActivities appends the activity log; rows already persisted are skipped
// so the log stays append-only.
func insertActivities(ctx context.Context, tx pgx.Tx, c *domain.Case) error {
	if len(c.Activities) == 0 {
		return nil
	}
	const query = `
        INSERT INTO case_activities (id, case_id, seq, activity_type, actor, description, automated, internal,
            status_before, status_after, priority_before, priority_after, assigned_before, assigned_after,
            level_before, level_after, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        ON CONFLICT (case_id, seq) DO NOTHING`

	batch := &pgx.Batch{}
	for _, a := range c.Activities {
		batch.Queue(query,
			a.ID,
			c.ID,
			a.Seq,
			a.Type,
			a.Actor,
			a.Description,
			a.Automated,
			a.Internal,
			a.StatusBefore,
			a.StatusAfter,
			a.PriorityBefore,
			a.PriorityAfter,
			a.AssignedBefore,
			a.AssignedAfter,
			a.LevelBefore,
			a.LevelAfter,
			a.CreatedAt,
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, caseNotFound("id", id)
	}
	query := `SELECT ` + caseColumns + ` FROM grievance_cases WHERE id=$1`
	c, err := r.fetchSingle(ctx, query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, caseNotFound("id", id)
	}
	return c, err
}

func (r *caseRepository) GetByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM grievance_cases WHERE case_number=$1`
	c, err := r.fetchSingle(ctx, query, caseNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, caseNotFound("case_number", caseNumber)
	}
	return c, err
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.attachActivities(ctx, []*domain.Case{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *caseRepository) FindByStatusIn(ctx context.Context, statuses []domain.CaseStatus) ([]*domain.Case, error) {
	return r.list(ctx, caseFilter{Statuses: statuses})
}

func (r *caseRepository) FindByAssignee(ctx context.Context, staffID string, statuses []domain.CaseStatus) ([]*domain.Case, error) {
	return r.list(ctx, caseFilter{AssigneeID: &staffID, Statuses: statuses})
}

func (r *caseRepository) FindOverdue(ctx context.Context, now time.Time) ([]*domain.Case, error) {
	return r.list(ctx, caseFilter{Statuses: domain.OpenStatuses, TargetBefore: &now})
}

func (r *caseRepository) FindBySubmittedBetween(ctx context.Context, from, to time.Time) ([]*domain.Case, error) {
	return r.list(ctx, caseFilter{SubmittedFrom: &from, SubmittedTo: &to})
}

type caseFilter struct {
	AssigneeID    *string
	Statuses      []domain.CaseStatus
	TargetBefore  *time.Time
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
}

func (r *caseRepository) list(ctx context.Context, filter caseFilter) ([]*domain.Case, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TargetBefore != nil {
		args = append(args, *filter.TargetBefore)
		clauses = append(clauses, fmt.Sprintf("resolution_target_at < $%d", len(args)))
	}
	if filter.SubmittedFrom != nil {
		args = append(args, *filter.SubmittedFrom)
		clauses = append(clauses, fmt.Sprintf("submitted_at >= $%d", len(args)))
	}
	if filter.SubmittedTo != nil {
		args = append(args, *filter.SubmittedTo)
		clauses = append(clauses, fmt.Sprintf("submitted_at < $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM grievance_cases WHERE %s ORDER BY submitted_at ASC, id ASC`,
		caseColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cases, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachActivities(ctx, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *caseRepository) attachActivities(ctx context.Context, cases []*domain.Case) error {
	if len(cases) == 0 {
		return nil
	}
	ids := make([]string, len(cases))
	byID := make(map[string]*domain.Case, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	const query = `
        SELECT id, case_id, seq, activity_type, actor, description, automated, internal, status_before,
               status_after, priority_before, priority_after, assigned_before, assigned_after, level_before,
               level_after, created_at
        FROM case_activities WHERE case_id = ANY($1::uuid[]) ORDER BY case_id, seq ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a      domain.Activity
			caseID string
		)
		if err := rows.Scan(
			&a.ID,
			&caseID,
			&a.Seq,
			&a.Type,
			&a.Actor,
			&a.Description,
			&a.Automated,
			&a.Internal,
			&a.StatusBefore,
			&a.StatusAfter,
			&a.PriorityBefore,
			&a.PriorityAfter,
			&a.AssignedBefore,
			&a.AssignedAfter,
			&a.LevelBefore,
			&a.LevelAfter,
			&a.CreatedAt,
		); err != nil {
			return err
		}
		if c, ok := byID[caseID]; ok {
			c.Activities = append(c.Activities, a)
		}
	}
	return rows.Err()
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	if err := row.Scan(
		&c.ID,
		&c.CaseNumber,
		&c.ComplainantID,
		&c.ComplainantContact,
		&c.Subject,
		&c.Description,
		&c.Category,
		&c.Priority,
		&c.Status,
		&c.EscalationLevel,
		&c.AssigneeID,
		&c.AssignedAt,
		&c.SubmittedAt,
		&c.ResolutionTargetAt,
		&c.ResolvedAt,
		&c.EscalatedAt,
		&c.EscalationReason,
		&c.ResolutionSummary,
		&c.LastSLATier,
		&c.Satisfaction,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCases(rows pgx.Rows) ([]*domain.Case, error) {
	defer rows.Close()
	var result []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
