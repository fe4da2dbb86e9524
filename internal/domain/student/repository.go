package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores students.
type Repository interface {
	// Create persists s and assigns s.ID.
	// Returns shared.ErrDuplicateEmail if the email is already held.
	Create(ctx context.Context, s *Student) error

	// GetByID returns shared.ErrNotFound if the student does not exist.
	GetByID(ctx context.Context, id int64) (*Student, error)

	// List returns every student in store-native order.
	List(ctx context.Context) ([]*Student, error)

	// Update writes name and email.
	// Returns shared.ErrNotFound or shared.ErrDuplicateEmail.
	Update(ctx context.Context, s *Student) error

	// Delete removes the student and all of its grades atomically and
	// returns how many grades were removed.
	// Returns shared.ErrNotFound if the student does not exist.
	Delete(ctx context.Context, id int64) (int, error)

	// EmailTaken reports whether a student other than excludeID holds email.
	// Pass 0 to check against every student.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
}
