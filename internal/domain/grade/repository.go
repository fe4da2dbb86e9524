package grade

import "context"

// Repository stores grades.
type Repository interface {
	// Create persists g and assigns g.ID.
	// Returns shared.ErrStudentNotFound if g.StudentID does not reference a live student.
	Create(ctx context.Context, g *Grade) error

	// GetByID returns shared.ErrNotFound if the grade does not exist.
	GetByID(ctx context.Context, id int64) (*Grade, error)

	// List returns every grade in store-native order.
	List(ctx context.Context) ([]*Grade, error)

	// ListByStudent re-reads the grade set of one student from the store.
	ListByStudent(ctx context.Context, studentID int64) ([]*Grade, error)

	// Update writes value and subject. Returns shared.ErrNotFound.
	Update(ctx context.Context, g *Grade) error

	// Delete returns shared.ErrNotFound if the grade does not exist.
	Delete(ctx context.Context, id int64) error
}
