// Package grade contains the Grade entity, the pure average computation and
// the grade repository port.
package grade

import (
	"strings"
	"time"
)

// Bounds for a grade value and subject.
const (
	MinValue         = 0.0
	MaxValue         = 10.0
	MaxSubjectLength = 100
)

// Grade is a single scored record belonging to exactly one student.
type Grade struct {
	ID        int64
	Value     float64
	Subject   string
	CreatedAt time.Time
	StudentID int64
}

// NewGrade builds an unsaved Grade. Inputs are expected to be validated already.
func NewGrade(value float64, subject string, studentID int64, now time.Time) *Grade {
	return &Grade{
		Value:     value,
		Subject:   strings.TrimSpace(subject),
		StudentID: studentID,
		CreatedAt: now.UTC().Truncate(time.Microsecond),
	}
}

// Patch is a partial update. A nil field is left unchanged.
type Patch struct {
	Value   *float64
	Subject *string
}

// Normalize trims the subject and drops it when empty. A present value is
// always kept, including zero.
func (p Patch) Normalize() Patch {
	out := Patch{Value: p.Value}
	if p.Subject != nil {
		if s := strings.TrimSpace(*p.Subject); s != "" {
			out.Subject = &s
		}
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Value == nil && p.Subject == nil
}

// Apply copies the present fields of p onto g and returns the names of the
// fields whose value actually changed.
func (g *Grade) Apply(p Patch) []string {
	var changed []string
	if p.Value != nil && *p.Value != g.Value {
		g.Value = *p.Value
		changed = append(changed, "value")
	}
	if p.Subject != nil && *p.Subject != g.Subject {
		g.Subject = *p.Subject
		changed = append(changed, "subject")
	}
	return changed
}

// InRange reports whether v is an acceptable grade value.
func InRange(v float64) bool {
	return v >= MinValue && v <= MaxValue
}
