package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	authmw "github.com/mrich-apps/assessment-backend/internal/auth/middleware"
	"github.com/mrich-apps/assessment-backend/internal/exam"
)

var validate = validator.New()

// GET /api/exam/state?reset=0|1
func ExamStateHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := exam.Identity{
			Email: authmw.EmailFromContext(r.Context()),
			Role:  authmw.RoleFromContext(r.Context()),
		}
		reset := r.URL.Query().Get("reset") == "1"

		view, err := svc.GetOrInitState(r.Context(), ident, reset)
		if err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type submitRequest struct {
	Answers []string `json:"answers" validate:"required"`
}

type submitResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalScore float64 `json:"totalScore"`
	MaxScore   float64 `json:"maxScore"`
	Percent    float64 `json:"percent"`
	Level      string  `json:"level"`
	Tip        string  `json:"tip"`
}

// POST /api/exam/submit
func SubmitHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeErr(w, http.StatusBadRequest, "answers required")
			return
		}

		ident := exam.Identity{
			Email: authmw.EmailFromContext(r.Context()),
			Role:  authmw.RoleFromContext(r.Context()),
		}
		resp, err := svc.Submit(r.Context(), ident, req.Answers)
		if err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, submitResponse{
			ID:         resp.ID,
			Name:       resp.Name,
			TotalScore: resp.TotalScore,
			MaxScore:   resp.MaxScore,
			Percent:    resp.Percent,
			Level:      resp.Level,
			Tip:        resp.Tip,
		})
	}
}
