package service

import (
	"strings"

	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// Field names in json tags are the names reported in validation errors.
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand creates a student.
type CreateStudentCommand struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=255"`
}

func (c CreateStudentCommand) normalized() CreateStudentCommand {
	return CreateStudentCommand{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
	}
}

// UpdateStudentCommand is a partial update. Absent or empty fields are left unchanged.
type UpdateStudentCommand struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

func (c UpdateStudentCommand) patch() student.Patch {
	return student.Patch{Name: c.Name, Email: c.Email}.Normalize()
}

// CreateGradeCommand records a grade against an existing student.
type CreateGradeCommand struct {
	Value     *float64 `json:"value" validate:"required,grade"`
	Subject   string   `json:"subject" validate:"required,max=100"`
	StudentID int64    `json:"studentId" validate:"gte=1" message:"StudentId is required"`
}

func (c CreateGradeCommand) normalized() CreateGradeCommand {
	c.Subject = strings.TrimSpace(c.Subject)
	return c
}

// UpdateGradeCommand is a partial update. A present value is always applied;
// an absent or empty subject is left unchanged.
type UpdateGradeCommand struct {
	Value   *float64 `json:"value" validate:"omitempty,grade"`
	Subject *string  `json:"subject" validate:"omitempty,max=100"`
}

func (c UpdateGradeCommand) patch() grade.Patch {
	return grade.Patch{Value: c.Value, Subject: c.Subject}.Normalize()
}
