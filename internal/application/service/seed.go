package service

import (
	"context"
	"fmt"

	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// SeedStudent is one student of the demo data set.
type SeedStudent struct {
	Name   string
	Email  string
	Grades []SeedGrade
}

// SeedGrade is one grade of the demo data set.
type SeedGrade struct {
	Subject string
	Value   float64
}

// DemoData is the data set loaded by the seed command.
var DemoData = []SeedStudent{
	{
		Name:  "John Doe",
		Email: "john.doe@example.com",
		Grades: []SeedGrade{
			{Subject: "Mathematics", Value: 8.5},
			{Subject: "Physics", Value: 9.0},
		},
	},
	{
		Name:  "Jane Smith",
		Email: "jane.smith@example.com",
		Grades: []SeedGrade{
			{Subject: "Chemistry", Value: 7.5},
		},
	},
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Students int
	Grades   int
	Skipped  bool
}

// Seeder loads a data set through the services so that every seeded record
// passes the same rules as client input.
type Seeder struct {
	students *StudentService
	grades   *GradeService
}

// NewSeeder creates a Seeder.
func NewSeeder(students *StudentService, grades *GradeService) *Seeder {
	return &Seeder{students: students, grades: grades}
}

// Seed inserts data unless the store already holds students.
func (s *Seeder) Seed(ctx context.Context, data []SeedStudent) (SeedResult, error) {
	existing, err := s.students.List(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return SeedResult{Skipped: true}, nil
	}

	var res SeedResult
	for _, ss := range data {
		view, err := s.students.Create(ctx, CreateStudentCommand{Name: ss.Name, Email: ss.Email})
		if err != nil {
			return res, fmt.Errorf("seed student %q: %w", ss.Email, err)
		}
		res.Students++

		for _, sg := range ss.Grades {
			value := sg.Value
			_, err := s.grades.Create(ctx, CreateGradeCommand{
				Value:     &value,
				Subject:   sg.Subject,
				StudentID: view.Student.ID,
			})
			if err != nil {
				return res, fmt.Errorf("seed grade %q for %q: %w", sg.Subject, ss.Email, err)
			}
			res.Grades++
		}
	}

	s.students.logger.Info("demo data seeded",
		logger.Int("students", res.Students), logger.Int("grades", res.Grades))
	return res, nil
}
