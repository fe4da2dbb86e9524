package http

import (
	"strconv"
	"time"

	"github.com/studentgrades/studentgrades-api/internal/application/service"
	"github.com/studentgrades/studentgrades-api/internal/domain/grade"
	"github.com/studentgrades/studentgrades-api/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// Averages are rounded to two decimals here and nowhere else.
// ══════════════════════════════════════════════════════════════════════════════

type gradeResponse struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
	StudentID int64     `json:"studentId"`
}

type studentResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	CreatedAt    time.Time       `json:"createdAt"`
	AverageGrade float64         `json:"averageGrade"`
	Grades       []gradeResponse `json:"grades"`
}

type studentGradesResponse struct {
	StudentID    int64           `json:"studentId"`
	StudentName  string          `json:"studentName"`
	Grades       []gradeResponse `json:"grades"`
	AverageGrade float64         `json:"averageGrade"`
	TotalGrades  int             `json:"totalGrades"`
}

type studentInfo struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	NewAverageGrade float64 `json:"newAverageGrade"`
	TotalGrades     int     `json:"totalGrades"`
}

type gradeMutationResponse struct {
	Grade       *gradeResponse `json:"grade,omitempty"`
	StudentInfo studentInfo    `json:"studentInfo"`
	Message     string         `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func roundAverage(avg float64) float64 {
	return grade.Round(avg, 2)
}

// formatAverage renders a rounded average without trailing zeros: 8.75, 9, 0.
func formatAverage(avg float64) string {
	return strconv.FormatFloat(roundAverage(avg), 'f', -1, 64)
}

func presentGrade(g *grade.Grade) gradeResponse {
	return gradeResponse{
		ID:        g.ID,
		Value:     g.Value,
		Subject:   g.Subject,
		CreatedAt: g.CreatedAt,
		StudentID: g.StudentID,
	}
}

func presentGrades(grades []*grade.Grade) []gradeResponse {
	out := make([]gradeResponse, 0, len(grades))
	for _, g := range grades {
		out = append(out, presentGrade(g))
	}
	return out
}

func presentStudent(v *service.StudentView) studentResponse {
	return studentResponse{
		ID:           v.Student.ID,
		Name:         v.Student.Name,
		Email:        v.Student.Email,
		CreatedAt:    v.Student.CreatedAt,
		AverageGrade: roundAverage(v.Average),
		Grades:       presentGrades(v.Grades),
	}
}

func presentStudents(views []*service.StudentView) []studentResponse {
	out := make([]studentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, presentStudent(v))
	}
	return out
}

func presentStudentGrades(v *service.StudentView) studentGradesResponse {
	return studentGradesResponse{
		StudentID:    v.Student.ID,
		StudentName:  v.Student.Name,
		Grades:       presentGrades(v.Grades),
		AverageGrade: roundAverage(v.Average),
		TotalGrades:  v.Total,
	}
}

func presentStudentInfo(s *student.Student, avg float64, total int) studentInfo {
	return studentInfo{
		ID:              s.ID,
		Name:            s.Name,
		Email:           s.Email,
		NewAverageGrade: roundAverage(avg),
		TotalGrades:     total,
	}
}

func presentGradeMutation(m *service.GradeMutation, message string) gradeMutationResponse {
	g := presentGrade(m.Grade)
	return gradeMutationResponse{
		Grade:       &g,
		StudentInfo: presentStudentInfo(m.Student, m.Average, m.TotalGrades),
		Message:     message,
	}
}
