package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

var _ student.Repository = (*StudentRepository)(nil)

const studentColumns = `id, name, email, created_at`

// Create creates a new student and assigns its ID.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (name, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		return r.conn.QueryRow(ctx, query, s.Name, s.Email, s.CreatedAt).Scan(&s.ID)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("student", "Create", shared.ErrDuplicateEmail, shared.DuplicateEmailMessage, err)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	var s *student.Student
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		var err error
		s, err = scanStudent(r.conn.QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NotFound("Student", id)
		}
		return nil, fmt.Errorf("failed to get student %d: %w", id, err)
	}
	return s, nil
}

// List returns all students ordered by ID.
func (r *StudentRepository) List(ctx context.Context) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY id`

	var students []*student.Student
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		rows, err := r.conn.Query(ctx, query)
		if err != nil {
			return err
		}
		students, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*student.Student, error) {
			return scanStudent(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// Update writes the student's name and email.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `UPDATE students SET name = $2, email = $3 WHERE id = $1`

	var affected int64
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		tag, err := r.conn.Exec(ctx, query, s.ID, s.Name, s.Email)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("student", "Update", shared.ErrDuplicateEmail, shared.DuplicateEmailMessage, err)
		}
		return fmt.Errorf("failed to update student %d: %w", s.ID, err)
	}

	if affected == 0 {
		return shared.NotFound("Student", s.ID)
	}
	return nil
}

// Delete removes the student and its grades in one transaction: grades by
// foreign key first, then the student row.
func (r *StudentRepository) Delete(ctx context.Context, id int64) (int, error) {
	var removed int64
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `DELETE FROM grades WHERE student_id = $1`, id)
			if err != nil {
				return fmt.Errorf("delete grades: %w", err)
			}
			removed = tag.RowsAffected()

			tag, err = tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("delete student: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return shared.NotFound("Student", id)
			}
			return nil
		})
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete student %d: %w", id, err)
	}
	return int(removed), nil
}

// EmailTaken reports whether a student other than excludeID holds email.
func (r *StudentRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM students WHERE email = $1 AND id <> $2)`

	var exists bool
	err := r.conn.Retry(ctx, func(ctx context.Context) error {
		return r.conn.QueryRow(ctx, query, email, excludeID).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}
