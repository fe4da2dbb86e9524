package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/studentgrades/studentgrades-api/internal/application/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every registered check; 503 if any failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.deps.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady handles the readiness probe. A degraded Redis keeps the service ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: s.deps.Version})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	views, err := s.deps.Students.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentStudents(views))
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.Students.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentStudent(view))
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var cmd service.CreateStudentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.Students.Create(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/students/"+strconv.FormatInt(view.Student.ID, 10))
	writeJSON(w, http.StatusCreated, presentStudent(view))
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var cmd service.UpdateStudentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.Students.Update(r.Context(), id, cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentStudent(view))
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.deps.Students.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Student with ID %d has been deleted successfully.", id),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.deps.Grades.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentGrades(grades))
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.deps.Grades.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentGrade(g))
}

// handleListGradesByStudent treats an unknown student as a missing resource.
func (s *Server) handleListGradesByStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "studentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.deps.Grades.ListByStudent(r.Context(), id)
	if err != nil {
		s.writeErrorWith(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, presentStudentGrades(view))
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	var cmd service.CreateGradeCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.deps.Grades.Create(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/grades/"+strconv.FormatInt(m.Grade.ID, 10))
	writeJSON(w, http.StatusCreated, presentGradeMutation(m,
		"Grade added successfully. New average: "+formatAverage(m.Average)))
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var cmd service.UpdateGradeCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.deps.Grades.Update(r.Context(), id, cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentGradeMutation(m,
		"Grade updated successfully. New average: "+formatAverage(m.Average)))
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.deps.Grades.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gradeMutationResponse{
		StudentInfo: presentStudentInfo(m.Student, m.Average, m.TotalGrades),
		Message: fmt.Sprintf("Grade with ID %d has been deleted successfully. New average: %s",
			id, formatAverage(m.Average)),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("The value '%s' is not valid.", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{status: http.StatusRequestEntityTooLarge, message: msgTooLarge}
		}
		return badRequest(msgBadJSON)
	}
	return nil
}
