package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
)

// GradeRepository implements grade.Repository.
type GradeRepository struct {
	store *Store
}

// NewGradeRepository creates a GradeRepository.
func NewGradeRepository(store *Store) *GradeRepository {
	return &GradeRepository{store: store}
}

var _ grade.Repository = (*GradeRepository)(nil)

const gradeColumns = `id, value, subject, created_at, student_id`

// Create implements grade.Repository.
func (r *GradeRepository) Create(ctx context.Context, g *grade.Grade) error {
	res, err := r.store.db.ExecContext(ctx,
		`INSERT INTO grades (value, subject, created_at, student_id) VALUES (?, ?, ?, ?)`,
		g.Value, g.Subject, formatTime(g.CreatedAt), g.StudentID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return shared.MissingStudent(g.StudentID)
		}
		return fmt.Errorf("insert grade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert grade: last insert id: %w", err)
	}
	g.ID = id
	return nil
}

// GetByID implements grade.Repository.
func (r *GradeRepository) GetByID(ctx context.Context, id int64) (*grade.Grade, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+gradeColumns+` FROM grades WHERE id = ?`, id)

	g, err := scanGrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFound("Grade", id)
		}
		return nil, fmt.Errorf("get grade %d: %w", id, err)
	}
	return g, nil
}

// List implements grade.Repository.
func (r *GradeRepository) List(ctx context.Context) ([]*grade.Grade, error) {
	return r.query(ctx, `SELECT `+gradeColumns+` FROM grades ORDER BY id`)
}

// ListByStudent implements grade.Repository.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID int64) ([]*grade.Grade, error) {
	return r.query(ctx, `SELECT `+gradeColumns+` FROM grades WHERE student_id = ? ORDER BY id`, studentID)
}

// Update implements grade.Repository.
func (r *GradeRepository) Update(ctx context.Context, g *grade.Grade) error {
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE grades SET value = ?, subject = ? WHERE id = ?`, g.Value, g.Subject, g.ID)
	if err != nil {
		return fmt.Errorf("update grade %d: %w", g.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grade %d: %w", g.ID, err)
	}
	if n == 0 {
		return shared.NotFound("Grade", g.ID)
	}
	return nil
}

// Delete implements grade.Repository.
func (r *GradeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.store.db.ExecContext(ctx, `DELETE FROM grades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete grade %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete grade %d: %w", id, err)
	}
	if n == 0 {
		return shared.NotFound("Grade", id)
	}
	return nil
}

func (r *GradeRepository) query(ctx context.Context, query string, args ...any) ([]*grade.Grade, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	defer rows.Close()

	grades := make([]*grade.Grade, 0)
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, fmt.Errorf("list grades: %w", err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

func scanGrade(row scanner) (*grade.Grade, error) {
	var (
		g         grade.Grade
		createdAt string
	)
	if err := row.Scan(&g.ID, &g.Value, &g.Subject, &createdAt, &g.StudentID); err != nil {
		return nil, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = t
	return &g, nil
}
