package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GradeRepository implements grade.Repository for PostgreSQL.
type GradeRepository struct {
	conn *Connection
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(conn *Connection) *GradeRepository {
	return &GradeRepository{conn: conn}
}

var _ grade.Repository = (*GradeRepository)(nil)

const gradeColumns = `id, value, subject, created_at, student_id`

// Create inserts a grade. A foreign key violation means the student does not exist.
func (r *GradeRepository) Create(ctx context.Context, g *grade.Grade) error {
	query := `
		INSERT INTO grades (value, subject, created_at, student_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		return r.conn.QueryRow(ctx, query, g.Value, g.Subject, g.CreatedAt, g.StudentID).Scan(&g.ID)
	})
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.MissingStudent(g.StudentID)
		}
		return fmt.Errorf("failed to create grade: %w", err)
	}
	return nil
}

// GetByID returns a grade by ID.
func (r *GradeRepository) GetByID(ctx context.Context, id int64) (*grade.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE id = $1`

	var g *grade.Grade
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		var err error
		g, err = scanGrade(r.conn.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NotFound("Grade", id)
		}
		return nil, fmt.Errorf("failed to get grade %d: %w", id, err)
	}
	return g, nil
}

// List returns all grades ordered by ID.
func (r *GradeRepository) List(ctx context.Context) ([]*grade.Grade, error) {
	return r.query(ctx, `SELECT `+gradeColumns+` FROM grades ORDER BY id`)
}

// ListByStudent returns the grades of one student ordered by ID.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID int64) ([]*grade.Grade, error) {
	return r.query(ctx, `SELECT `+gradeColumns+` FROM grades WHERE student_id = $1 ORDER BY id`, studentID)
}

// Update writes the grade's value and subject.
func (r *GradeRepository) Update(ctx context.Context, g *grade.Grade) error {
	query := `UPDATE grades SET value = $2, subject = $3 WHERE id = $1`

	var affected int64
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, query, g.ID, g.Value, g.Subject)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update grade %d: %w", g.ID, err)
	}
	if affected == 0 {
		return shared.NotFound("Grade", g.ID)
	}
	return nil
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id int64) error {
	var affected int64
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, `DELETE FROM grades WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete grade %d: %w", id, err)
	}
	if affected == 0 {
		return shared.NotFound("Grade", id)
	}
	return nil
}

func (r *GradeRepository) query(ctx context.Context, query string, args ...any) ([]*grade.Grade, error) {
	var grades []*grade.Grade
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		rows, err := r.conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		grades, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*grade.Grade, error) {
			return scanGrade(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	return grades, nil
}

func scanGrade(row pgx.Row) (*grade.Grade, error) {
	var g grade.Grade
	if err := row.Scan(&g.ID, &g.Value, &g.Subject, &g.CreatedAt, &g.StudentID); err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}
