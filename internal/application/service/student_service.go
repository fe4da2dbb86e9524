package service

import (
	"context"
	"fmt"
	"time"

	"github.com/studentgrades/studentgrades-api/internal/application/validation"
	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// StudentService owns the student lifecycle: identity, email uniqueness and
// cascade deletion.
type StudentService struct {
	students  student.Repository
	grades    grade.Repository
	validator *validation.Validator
	logger    *logger.Logger
	now       func() time.Time
}

// NewStudentService creates a StudentService.
func NewStudentService(deps Deps) *StudentService {
	deps = deps.withDefaults()
	log := deps.Logger.With(logger.Component("student_service"))
	return &StudentService{
		students:  deps.Students,
		grades:    deps.Grades,
		validator: deps.Validator,
		logger:    log,
		now:       deps.Now,
	}
}

// Create persists a new student with an empty grade set.
func (s *StudentService) Create(ctx context.Context, cmd CreateStudentCommand) (*StudentView, error) {
	cmd = cmd.normalized()
	if err := s.validator.Validate(cmd); err != nil {
		return nil, err
	}

	taken, err := s.students.EmailTaken(ctx, cmd.Email, 0)
	if err != nil {
		return nil, fmt.Errorf("create student: check email: %w", err)
	}
	if taken {
		s.logger.Warn("duplicate email rejected", logger.Operation("create"), logger.Email(cmd.Email))
		return nil, shared.DuplicateEmail("Create")
	}

	st := student.NewStudent(student.NewStudentParams{Name: cmd.Name, Email: cmd.Email}, s.now())
	if err := s.students.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info("student created", logger.StudentID(st.ID), logger.Email(st.Email))
	return &StudentView{Student: st, Summary: grade.Summarize(nil)}, nil
}

// Get returns the student with its grades and average.
func (s *StudentService) Get(ctx context.Context, id int64) (*StudentView, error) {
	st, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	view, err := summarize(ctx, s.grades, st)
	if err != nil {
		return nil, fmt.Errorf("get student: list grades: %w", err)
	}
	return view, nil
}

// List returns every student with its grades and average. Order is not defined.
func (s *StudentService) List(ctx context.Context) ([]*StudentView, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	all, err := s.grades.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: list grades: %w", err)
	}
	byStudent := grade.GroupByStudent(all)

	views := make([]*StudentView, 0, len(students))
	for _, st := range students {
		views = append(views, &StudentView{Student: st, Summary: grade.Summarize(byStudent[st.ID])})
	}
	return views, nil
}

// Update applies the present fields of cmd. An email held by another student
// is rejected; keeping the student's own email is not a conflict.
func (s *StudentService) Update(ctx context.Context, id int64, cmd UpdateStudentCommand) (*StudentView, error) {
	patch := cmd.patch()
	if err := s.validator.Validate(UpdateStudentCommand{Name: patch.Name, Email: patch.Email}); err != nil {
		return nil, err
	}

	st, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}

	if patch.Email != nil {
		taken, err := s.students.EmailTaken(ctx, *patch.Email, id)
		if err != nil {
			return nil, fmt.Errorf("update student: check email: %w", err)
		}
		if taken {
			s.logger.Warn("duplicate email rejected",
				logger.Operation("update"), logger.StudentID(id), logger.Email(*patch.Email))
			return nil, shared.DuplicateEmail("Update")
		}
	}

	if changed := st.Apply(patch); len(changed) > 0 {
		if err := s.students.Update(ctx, st); err != nil {
			return nil, fmt.Errorf("update student: %w", err)
		}
		s.logger.Info("student updated", logger.StudentID(id), logger.Any("changed_fields", changed))
	}

	view, err := summarize(ctx, s.grades, st)
	if err != nil {
		return nil, fmt.Errorf("update student: list grades: %w", err)
	}
	return view, nil
}

// Delete removes the student and, atomically, every grade recorded against it.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	removed, err := s.students.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	s.logger.Info("student deleted", logger.StudentID(id), logger.Int("grades_removed", removed))
	return nil
}
