package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/shared"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
	"github.com/studentgrades/studentgrades-api/internal/infrastructure/persistence/sqlite"
)

var fixedNow = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	students *StudentService
	grades   *GradeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	deps := Deps{
		Students: sqlite.NewStudentRepository(store),
		Grades:   sqlite.NewGradeRepository(store),
		Now:      func() time.Time { return fixedNow },
	}
	return &fixture{
		students: NewStudentService(deps),
		grades:   NewGradeService(deps),
	}
}

func (f *fixture) student(t *testing.T, name, email string) *student.Student {
	t.Helper()
	view, err := f.students.Create(context.Background(), CreateStudentCommand{Name: name, Email: email})
	require.NoError(t, err)
	return view.Student
}

func (f *fixture) grade(t *testing.T, studentID int64, value float64, subject string) *GradeMutation {
	t.Helper()
	m, err := f.grades.Create(context.Background(), CreateGradeCommand{Value: &value, Subject: subject, StudentID: studentID})
	require.NoError(t, err)
	return m
}

func str(s string) *string   { return &s }
func num(v float64) *float64 { return &v }

// ═══════════════════════════════════════════════════════════════════════════
// StudentService
// ═══════════════════════════════════════════════════════════════════════════

func TestStudentService_Create(t *testing.T) {
	f := newFixture(t)

	view, err := f.students.Create(context.Background(), CreateStudentCommand{Name: " John Doe ", Email: "john@x.com"})
	require.NoError(t, err)

	assert.Positive(t, view.Student.ID)
	assert.Equal(t, "John Doe", view.Student.Name)
	assert.Equal(t, fixedNow, view.Student.CreatedAt)
	assert.Equal(t, 0.0, view.Average)
	assert.Equal(t, 0, view.Total)
	assert.Empty(t, view.Grades)
}

func TestStudentService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.students.Create(context.Background(), CreateStudentCommand{Name: "   ", Email: "nope"})
	require.True(t, shared.IsValidation(err))

	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
}

func TestStudentService_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")

	_, err := f.students.Create(ctx, CreateStudentCommand{Name: "Other", Email: "john@x.com"})
	assert.True(t, shared.IsDuplicateEmail(err))
	msg, _ := shared.MessageOf(err)
	assert.Equal(t, "A student with this email already exists.", msg)

	// A previously used but now deleted email is free again.
	require.NoError(t, f.students.Delete(ctx, john.ID))
	_, err = f.students.Create(ctx, CreateStudentCommand{Name: "John again", Email: "john@x.com"})
	assert.NoError(t, err)
}

func TestStudentService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	jane := f.student(t, "Jane", "jane@x.com")
	f.grade(t, john.ID, 8.5, "Math")
	f.grade(t, john.ID, 9, "Physics")

	view, err := f.students.Get(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.75, view.Average)
	assert.Len(t, view.Grades, 2)

	_, err = f.students.Get(ctx, 999)
	assert.True(t, shared.IsNotFound(err))
	msg, _ := shared.MessageOf(err)
	assert.Equal(t, "Student with ID 999 not found.", msg)

	views, err := f.students.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	byID := map[int64]*StudentView{}
	for _, v := range views {
		byID[v.Student.ID] = v
	}
	assert.Equal(t, 2, byID[john.ID].Total)
	assert.Equal(t, 0, byID[jane.ID].Total)
	assert.Equal(t, 0.0, byID[jane.ID].Average)
}

func TestStudentService_UpdatePartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	f.student(t, "Jane", "jane@x.com")

	// Empty patch leaves every field unchanged.
	view, err := f.students.Update(ctx, john.ID, UpdateStudentCommand{})
	require.NoError(t, err)
	assert.Equal(t, *john, *view.Student)

	// Explicit empty strings are no-ops.
	view, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Name: str(""), Email: str("  ")})
	require.NoError(t, err)
	assert.Equal(t, *john, *view.Student)

	// Re-submitting the own email is not a duplicate.
	view, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Email: str("john@x.com")})
	require.NoError(t, err)
	assert.Equal(t, "john@x.com", view.Student.Email)

	view, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Name: str("Johnny")})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", view.Student.Name)
	assert.Equal(t, "john@x.com", view.Student.Email)

	_, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Email: str("jane@x.com")})
	assert.True(t, shared.IsDuplicateEmail(err))

	_, err = f.students.Update(ctx, 999, UpdateStudentCommand{Name: str("Ghost")})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Email: str("not-an-email")})
	assert.True(t, shared.IsValidation(err))
}

func TestStudentService_ReadsFollowRenameAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	g := f.grade(t, john.ID, 8, "Math")

	_, err := f.students.Get(ctx, john.ID)
	require.NoError(t, err)
	_, err = f.grades.ListByStudent(ctx, john.ID)
	require.NoError(t, err)

	_, err = f.students.Update(ctx, john.ID, UpdateStudentCommand{Name: str("Johnny"), Email: str("johnny@x.com")})
	require.NoError(t, err)

	view, err := f.students.Get(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", view.Student.Name)

	byStudent, err := f.grades.ListByStudent(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, "johnny@x.com", byStudent.Student.Email)

	m, err := f.grades.Update(ctx, g.Grade.ID, UpdateGradeCommand{Value: num(9)})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", m.Student.Name)

	require.NoError(t, f.students.Delete(ctx, john.ID))

	_, err = f.students.Get(ctx, john.ID)
	assert.True(t, shared.IsNotFound(err))

	_, err = f.grades.ListByStudent(ctx, john.ID)
	assert.True(t, shared.IsStudentNotFound(err))

	_, err = f.grades.Create(ctx, CreateGradeCommand{Value: num(5), Subject: "Art", StudentID: john.ID})
	assert.True(t, shared.IsStudentNotFound(err))
}

func TestStudentService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	jane := f.student(t, "Jane", "jane@x.com")
	for i, v := range []float64{6, 7, 8} {
		f.grade(t, john.ID, v, "Subject"+string(rune('A'+i)))
	}
	f.grade(t, jane.ID, 9, "Math")

	_, err := f.students.Get(ctx, john.ID)
	require.NoError(t, err)

	require.NoError(t, f.students.Delete(ctx, john.ID))

	all, err := f.grades.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jane.ID, all[0].StudentID)

	_, err = f.grades.ListByStudent(ctx, john.ID)
	assert.True(t, shared.IsStudentNotFound(err))

	err = f.students.Delete(ctx, john.ID)
	assert.True(t, shared.IsNotFound(err))
}

// ═══════════════════════════════════════════════════════════════════════════
// GradeService
// ═══════════════════════════════════════════════════════════════════════════

func TestGradeService_ScenarioAverageOfTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John Doe", "john@x.com")

	m := f.grade(t, john.ID, 8.5, "Math")
	assert.Equal(t, 8.5, m.Average)
	assert.Equal(t, 1, m.TotalGrades)

	m = f.grade(t, john.ID, 9.0, "Physics")
	assert.Equal(t, 8.75, m.Average)
	assert.Equal(t, 2, m.TotalGrades)
	assert.Equal(t, john.ID, m.Student.ID)

	view, err := f.grades.ListByStudent(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.75, view.Average)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "John Doe", view.Student.Name)
}

func TestGradeService_ScenarioDeleteRecomputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	f.grade(t, john.ID, 8.5, "Math")
	physics := f.grade(t, john.ID, 9.0, "Physics")

	m, err := f.grades.Delete(ctx, physics.Grade.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.5, m.Average)
	assert.Equal(t, 1, m.TotalGrades)

	view, err := f.grades.ListByStudent(ctx, john.ID)
	require.NoError(t, err)
	m, err = f.grades.Delete(ctx, view.Grades[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Average)
	assert.Equal(t, 0, m.TotalGrades)

	_, err = f.grades.Delete(ctx, physics.Grade.ID)
	assert.True(t, shared.IsNotFound(err))
}

func TestGradeService_ScenarioMissingStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.grades.Create(ctx, CreateGradeCommand{Value: num(6), Subject: "Math", StudentID: 9999})
	assert.True(t, shared.IsStudentNotFound(err))
	assert.False(t, shared.IsNotFound(err))
	msg, _ := shared.MessageOf(err)
	assert.Equal(t, "Student with ID 9999 not found.", msg)

	all, err := f.grades.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGradeService_RangeBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")

	for _, v := range []float64{10.01, -0.01} {
		_, err := f.grades.Create(ctx, CreateGradeCommand{Value: num(v), Subject: "Math", StudentID: john.ID})
		assert.True(t, shared.IsValidation(err), "value %v", v)
	}
	for _, v := range []float64{0, 10} {
		_, err := f.grades.Create(ctx, CreateGradeCommand{Value: num(v), Subject: "Math", StudentID: john.ID})
		assert.NoError(t, err, "value %v", v)
	}
}

func TestGradeService_CreateValidationListsEveryField(t *testing.T) {
	f := newFixture(t)

	_, err := f.grades.Create(context.Background(), CreateGradeCommand{Value: num(11), Subject: "", StudentID: 0})

	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 3)
}

func TestGradeService_UpdatePartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	f.grade(t, john.ID, 8, "Math")
	g := f.grade(t, john.ID, 6, "Physics").Grade

	m, err := f.grades.Update(ctx, g.ID, UpdateGradeCommand{})
	require.NoError(t, err)
	assert.Equal(t, 6.0, m.Grade.Value)
	assert.Equal(t, "Physics", m.Grade.Subject)
	assert.Equal(t, 7.0, m.Average)

	m, err = f.grades.Update(ctx, g.ID, UpdateGradeCommand{Value: num(10), Subject: str("")})
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.Grade.Value)
	assert.Equal(t, "Physics", m.Grade.Subject)
	assert.Equal(t, 9.0, m.Average)
	assert.Equal(t, 2, m.TotalGrades)

	m, err = f.grades.Update(ctx, g.ID, UpdateGradeCommand{Value: num(0), Subject: str("Art")})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Grade.Value)
	assert.Equal(t, "Art", m.Grade.Subject)
	assert.Equal(t, 4.0, m.Average)

	_, err = f.grades.Update(ctx, g.ID, UpdateGradeCommand{Value: num(10.5)})
	assert.True(t, shared.IsValidation(err))

	_, err = f.grades.Update(ctx, 999, UpdateGradeCommand{Value: num(5)})
	assert.True(t, shared.IsNotFound(err))
	msg, _ := shared.MessageOf(err)
	assert.Equal(t, "Grade with ID 999 not found.", msg)
}

func TestGradeService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.student(t, "John", "john@x.com")
	g := f.grade(t, john.ID, 7.25, "Math").Grade

	got, err := f.grades.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Value, got.Value)
	assert.Equal(t, fixedNow, got.CreatedAt)

	_, err = f.grades.Get(ctx, g.ID+1)
	assert.True(t, shared.IsNotFound(err))

	all, err := f.grades.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGradeService_AverageIsNotRounded(t *testing.T) {
	f := newFixture(t)
	john := f.student(t, "John", "john@x.com")
	f.grade(t, john.ID, 10, "A")
	f.grade(t, john.ID, 10, "B")
	m := f.grade(t, john.ID, 9, "C")

	assert.InDelta(t, 29.0/3, m.Average, 1e-12)
	assert.Equal(t, 9.67, grade.Round(m.Average, 2))
}

// ═══════════════════════════════════════════════════════════════════════════
// Seeder
// ═══════════════════════════════════════════════════════════════════════════

func TestSeeder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeder := NewSeeder(f.students, f.grades)

	res, err := seeder.Seed(ctx, DemoData)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Students: 2, Grades: 3}, res)

	views, err := f.students.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		if v.Student.Email == "john.doe@example.com" {
			assert.Equal(t, 8.75, v.Average)
		}
	}

	res, err = seeder.Seed(ctx, DemoData)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
