package http

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mrich-apps/assessment-backend/internal/auth/middleware"
	"github.com/mrich-apps/assessment-backend/internal/exam"
)

// GET /api/admin/attempts: recent responses plus the per-email state map.
// Routing already requires the ADMIN session role.
func AdminAttemptsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := svc.AttemptsOverview(r.Context())
		if err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

// GET /api/admin/exam-states: per-user enriched attempt + latest response.
// Role is re-verified against the database inside the service.
func AdminExamStatesHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.StateItems(r.Context(), authmw.EmailFromContext(r.Context()))
		if err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

type unlockRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/admin/unlock {email}
func AdminUnlockHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeErr(w, http.StatusBadRequest, "missing email")
			return
		}
		if err := svc.Unlock(r.Context(), authmw.EmailFromContext(r.Context()), req.Email); err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "email": req.Email})
	}
}

const (
	exportResponseCap = 5000
	listResponseCap   = 100
)

// sharedSecretOK checks the x-admin-password header against the configured
// bcrypt hash. An empty hash disables the export surfaces entirely.
func sharedSecretOK(r *http.Request, passHash string) bool {
	got := r.Header.Get("x-admin-password")
	if passHash == "" || got == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passHash), []byte(got)) == nil
}

// GET /api/admin/export: CSV dump of response rows, newest first.
func AdminExportHandler(svc *exam.Service, passHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sharedSecretOK(r, passHash) {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		rows, err := svc.RecentResponses(r.Context(), exportResponseCap)
		if err != nil {
			writeExamErr(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="mrich_responses.csv"`)

		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "formId", "name", "totalScore", "maxScore", "percent", "level", "createdAt"})
		for _, row := range rows {
			_ = cw.Write([]string{
				row.ID,
				row.FormID,
				row.Name,
				strconv.FormatFloat(row.TotalScore, 'f', -1, 64),
				strconv.FormatFloat(row.MaxScore, 'f', -1, 64),
				strconv.FormatFloat(row.Percent, 'f', -1, 64),
				row.Level,
				row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			})
		}
		cw.Flush()
	}
}

// GET /api/admin/responses: JSON listing behind the same shared secret.
func AdminResponsesHandler(svc *exam.Service, passHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sharedSecretOK(r, passHash) {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		rows, err := svc.RecentResponses(r.Context(), listResponseCap)
		if err != nil {
			writeExamErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
