package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mrich-apps/assessment-backend/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeExamErr maps the lifecycle failure taxonomy onto status codes.
func writeExamErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrUserNotFound):
		writeErr(w, http.StatusNotFound, "user not found")
	case errors.Is(err, exam.ErrNoState):
		writeErr(w, http.StatusNotFound, "state not found")
	case errors.Is(err, exam.ErrBadAnswers):
		writeErr(w, http.StatusBadRequest, "answers length mismatch")
	case errors.Is(err, exam.ErrNotStarted):
		writeErr(w, http.StatusBadRequest, "not started")
	case errors.Is(err, exam.ErrLocked):
		writeErr(w, http.StatusConflict, "locked: already submitted")
	case errors.Is(err, exam.ErrExpired):
		writeErr(w, http.StatusRequestTimeout, "expired")
	case errors.Is(err, exam.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
