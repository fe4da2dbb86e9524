package student

import (
	"strings"
	"time"
)

// Field bounds shared by validation and the storage schema.
const (
	MaxNameLength  = 100
	MaxEmailLength = 255
)

// Student is a person grades are recorded against.
type Student struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// NewStudentParams holds the input for NewStudent. Values are expected to be
// validated already.
type NewStudentParams struct {
	Name  string
	Email string
}

// NewStudent builds an unsaved Student. The ID is assigned by the repository.
func NewStudent(params NewStudentParams, now time.Time) *Student {
	return &Student{
		Name:      strings.TrimSpace(params.Name),
		Email:     strings.TrimSpace(params.Email),
		CreatedAt: now.UTC().Truncate(time.Microsecond),
	}
}

// Patch is a partial update. A nil field is left unchanged.
type Patch struct {
	Name  *string
	Email *string
}

// Normalize trims present fields and drops the ones left empty.
func (p Patch) Normalize() Patch {
	return Patch{
		Name:  normalize(p.Name),
		Email: normalize(p.Email),
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

// Apply copies the present fields of p onto s and returns the names of the
// fields whose value actually changed.
func (s *Student) Apply(p Patch) []string {
	var changed []string
	if p.Name != nil && *p.Name != s.Name {
		s.Name = *p.Name
		changed = append(changed, "name")
	}
	if p.Email != nil && *p.Email != s.Email {
		s.Email = *p.Email
		changed = append(changed, "email")
	}
	return changed
}

func normalize(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
