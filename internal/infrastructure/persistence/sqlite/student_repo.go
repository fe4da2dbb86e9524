package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
)

// StudentRepository implements student.Repository.
type StudentRepository struct {
	store *Store
}

// NewStudentRepository creates a StudentRepository.
func NewStudentRepository(store *Store) *StudentRepository {
	return &StudentRepository{store: store}
}

var _ student.Repository = (*StudentRepository)(nil)

const studentColumns = `id, name, email, created_at`

// Create implements student.Repository.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	res, err := r.store.db.ExecContext(ctx,
		`INSERT INTO students (name, email, created_at) VALUES (?, ?, ?)`,
		s.Name, s.Email, formatTime(s.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.WrapError("student", "Create", shared.ErrDuplicateEmail, shared.DuplicateEmailMessage, err)
		}
		return fmt.Errorf("insert student: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert student: last insert id: %w", err)
	}
	s.ID = id
	return nil
}

// GetByID implements student.Repository.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, id)

	s, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NotFound("Student", id)
		}
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	return s, nil
}

// List implements student.Repository.
func (r *StudentRepository) List(ctx context.Context) ([]*student.Student, error) {
	rows, err := r.store.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	students := make([]*student.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Update implements student.Repository.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE students SET name = ?, email = ? WHERE id = ?`,
		s.Name, s.Email, s.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.WrapError("student", "Update", shared.ErrDuplicateEmail, shared.DuplicateEmailMessage, err)
		}
		return fmt.Errorf("update student %d: %w", s.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student %d: %w", s.ID, err)
	}
	if n == 0 {
		return shared.NotFound("Student", s.ID)
	}
	return nil
}

// Delete implements student.Repository. Grades are removed explicitly in the
// same transaction; the ON DELETE CASCADE clause backs this up.
func (r *StudentRepository) Delete(ctx context.Context, id int64) (int, error) {
	var removed int
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM grades WHERE student_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete grades of student %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete grades of student %d: %w", id, err)
		}
		removed = int(n)

		res, err = tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete student %d: %w", id, err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete student %d: %w", id, err)
		}
		if n == 0 {
			return shared.NotFound("Student", id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// EmailTaken implements student.Repository.
func (r *StudentRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.store.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE email = ? AND id != ?)`,
		email, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (*student.Student, error) {
	var (
		s         student.Student
		createdAt string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &createdAt); err != nil {
		return nil, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = t
	return &s, nil
}
