package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeno-bellido/ich-backend/internal/util"
	"github.com/jeno-bellido/ich-backend/pkg/store"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
)

// Error codes clients can branch on.
const (
	codeNotFound          = "not_found"
	codeUserNotFound      = "user_not_found"
	codePasswordIncorrect = "password_incorrect"
	codeInvalidCredential = "invalid_credential"
	codeMissingCredential = "missing_credential"
	codeDuplicateRating   = "duplicate_rating"
	codeEmailExists       = "email_exists"
	codeFederatedIDExists = "federated_id_exists"
	codeInvalidScore      = "invalid_score"
	codeInvalidRequest    = "invalid_request"
	codeInternal          = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target error
	status int
	code   string
	msg    string
}

var errorMappings = []errorMapping{
	{store.ErrMissingCredential, http.StatusUnauthorized, codeMissingCredential, "The token is missing"},
	{store.ErrInvalidCredential, http.StatusUnauthorized, codeInvalidCredential, "The token is wrong"},
	{app.ErrUserNotFound, http.StatusNotFound, codeUserNotFound, ""},
	{app.ErrProductNotFound, http.StatusNotFound, codeNotFound, ""},
	{app.ErrPasswordIncorrect, http.StatusUnauthorized, codePasswordIncorrect, ""},
	{app.ErrEmailAlreadyExists, http.StatusConflict, codeEmailExists, ""},
	{app.ErrFederatedIDAlreadyExists, http.StatusConflict, codeFederatedIDExists, ""},
	{app.ErrDuplicateRating, http.StatusConflict, codeDuplicateRating, ""},
	{app.ErrInvalidScore, http.StatusBadRequest, codeInvalidScore, ""},
	{app.ErrFieldsRequired, http.StatusBadRequest, codeInvalidRequest, ""},
}

// writeAppError maps domain failures to descriptive 4xx payloads. Anything
// else is an upstream failure: logged, and reported without detail.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.msg
			if msg == "" {
				msg = m.target.Error()
			}
			writeError(w, m.status, m.code, msg)
			return
		}
	}
	util.LoggerFromContext(r.Context()).Error("request_failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
