package service

import (
	"context"
	"fmt"
	"time"

	"github.com/studentgrades/studentgrades-api/internal/application/validation"
	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// GradeService validates and persists grades and reports the owning
// student's average after every change.
type GradeService struct {
	students  student.Repository
	grades    grade.Repository
	validator *validation.Validator
	logger    *logger.Logger
	now       func() time.Time
}

// NewGradeService creates a GradeService.
func NewGradeService(deps Deps) *GradeService {
	deps = deps.withDefaults()
	log := deps.Logger.With(logger.Component("grade_service"))
	return &GradeService{
		students:  deps.Students,
		grades:    deps.Grades,
		validator: deps.Validator,
		logger:    log,
		now:       deps.Now,
	}
}

// Create records a grade against an existing student. The returned average
// and count cover the student's full grade set including the new grade.
func (s *GradeService) Create(ctx context.Context, cmd CreateGradeCommand) (*GradeMutation, error) {
	cmd = cmd.normalized()
	if err := s.validator.Validate(cmd); err != nil {
		return nil, err
	}

	st, err := s.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("create grade: %w", missingStudent(err, cmd.StudentID))
	}

	g := grade.NewGrade(*cmd.Value, cmd.Subject, cmd.StudentID, s.now())
	if err := s.grades.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create grade: %w", err)
	}

	m, err := s.recompute(ctx, g, st)
	if err != nil {
		return nil, fmt.Errorf("create grade: %w", err)
	}
	s.logger.Info("grade recorded",
		logger.GradeID(g.ID), logger.StudentID(st.ID), logger.Average(m.Average), logger.TotalGrades(m.TotalGrades))
	return m, nil
}

// Get returns a single grade.
func (s *GradeService) Get(ctx context.Context, id int64) (*grade.Grade, error) {
	g, err := s.grades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return g, nil
}

// List returns every grade. Order is not defined.
func (s *GradeService) List(ctx context.Context) ([]*grade.Grade, error) {
	grades, err := s.grades.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListByStudent returns the per-student summary: identity, grades, average
// and count. A missing student is reported as shared.ErrStudentNotFound.
func (s *GradeService) ListByStudent(ctx context.Context, studentID int64) (*StudentView, error) {
	st, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list grades by student: %w", missingStudent(err, studentID))
	}

	view, err := summarize(ctx, s.grades, st)
	if err != nil {
		return nil, fmt.Errorf("list grades by student: %w", err)
	}
	return view, nil
}

// Update applies the present fields of cmd and recomputes the owning
// student's average.
func (s *GradeService) Update(ctx context.Context, id int64, cmd UpdateGradeCommand) (*GradeMutation, error) {
	patch := cmd.patch()
	if err := s.validator.Validate(UpdateGradeCommand{Value: patch.Value, Subject: patch.Subject}); err != nil {
		return nil, err
	}

	g, err := s.grades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}

	changed := g.Apply(patch)
	if len(changed) > 0 {
		if err := s.grades.Update(ctx, g); err != nil {
			return nil, fmt.Errorf("update grade: %w", err)
		}
	}

	st, err := s.students.GetByID(ctx, g.StudentID)
	if err != nil {
		return nil, fmt.Errorf("update grade: load student: %w", err)
	}

	m, err := s.recompute(ctx, g, st)
	if err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}
	if len(changed) > 0 {
		s.logger.Info("grade updated",
			logger.GradeID(id), logger.Any("changed_fields", changed), logger.Average(m.Average))
	}
	return m, nil
}

// Delete removes a grade and reports the average over the student's
// remaining grades (0 when none remain).
func (s *GradeService) Delete(ctx context.Context, id int64) (*GradeMutation, error) {
	g, err := s.grades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete grade: %w", err)
	}

	if err := s.grades.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete grade: %w", err)
	}

	st, err := s.students.GetByID(ctx, g.StudentID)
	if err != nil {
		return nil, fmt.Errorf("delete grade: load student: %w", err)
	}

	m, err := s.recompute(ctx, g, st)
	if err != nil {
		return nil, fmt.Errorf("delete grade: %w", err)
	}
	s.logger.Info("grade deleted",
		logger.GradeID(id), logger.StudentID(st.ID), logger.Average(m.Average), logger.TotalGrades(m.TotalGrades))
	return m, nil
}

// recompute re-reads the student's grade set after a write.
func (s *GradeService) recompute(ctx context.Context, g *grade.Grade, st *student.Student) (*GradeMutation, error) {
	view, err := summarize(ctx, s.grades, st)
	if err != nil {
		return nil, fmt.Errorf("recompute average: %w", err)
	}
	return &GradeMutation{
		Grade:       g,
		Student:     st,
		Average:     view.Average,
		TotalGrades: view.Total,
	}, nil
}
