// Package service implements the student and grade use cases on top of the
// domain repositories.
//
// Every write that touches a student's grade set re-reads that set from the
// store before the average is computed, so a reported average always
// reflects what the store holds after the write. Student existence and
// identity are likewise always read from the store.
package service

import (
	"context"
	"time"

	"github.com/studentgrades/studentgrades-api/internal/application/validation"
	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// Deps holds the collaborators shared by both services.
type Deps struct {
	Students student.Repository
	Grades   grade.Repository

	// Validator defaults to validation.New().
	Validator *validation.Validator

	// Logger defaults to logger.Nop().
	Logger *logger.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// StudentView is a student together with its current grade set and average.
type StudentView struct {
	Student *student.Student
	grade.Summary
}

// GradeMutation is the outcome of a grade write: the grade involved and the
// owning student's freshly recomputed average and count.
type GradeMutation struct {
	Grade       *grade.Grade
	Student     *student.Student
	Average     float64
	TotalGrades int
}

// summarize re-reads the grade set of s from the store.
func summarize(ctx context.Context, grades grade.Repository, s *student.Student) (*StudentView, error) {
	list, err := grades.ListByStudent(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return &StudentView{Student: s, Summary: grade.Summarize(list)}, nil
}

// missingStudent converts a lookup miss on the referenced student into the
// referential error grade operations report.
func missingStudent(err error, id int64) error {
	if shared.IsNotFound(err) {
		return shared.MissingStudent(id)
	}
	return err
}
