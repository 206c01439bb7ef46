package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/access"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	if status < 400 {
		env.Status = "success"
	} else {
		env.Status = "error"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func success(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Message: message, Data: data})
}

type errorShape struct {
	status  int
	code    string
	message string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []struct {
	err   error
	shape errorShape
}{
	{common.ErrorValidation, errorShape{http.StatusBadRequest, "ValidationError", "Missing fields required"}},
	{common.ErrAlreadyVerified, errorShape{http.StatusConflict, "AlreadyVerified", "Email already verified"}},
	{common.ErrorConflict, errorShape{http.StatusConflict, "Conflict", "Email already registered"}},
	{common.ErrorNotFound, errorShape{http.StatusNotFound, "NotFound", "User not found"}},
	{common.ErrorInvalidCredentials, errorShape{http.StatusUnauthorized, "InvalidCredentials", "Invalid credentials"}},
	{common.ErrInvalidOrExpiredToken, errorShape{http.StatusBadRequest, "InvalidOrExpiredToken", "Invalid or expired token"}},
	{common.ErrMfaNotRequested, errorShape{http.StatusBadRequest, "MfaNotRequested", "MFA not requested or expired"}},
	{common.ErrInvalidOrExpiredMfa, errorShape{http.StatusBadRequest, "InvalidOrExpiredMfa", "Invalid or expired MFA code"}},
	{common.ErrorUnauthenticated, errorShape{http.StatusUnauthorized, "Unauthenticated", "Unauthenticated"}},
	{common.ErrorForbidden, errorShape{http.StatusForbidden, "Forbidden", "Forbidden"}},
}

var internalShape = errorShape{http.StatusInternalServerError, "InternalError", "Internal server error"}

func shapeFor(err error) errorShape {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.shape
		}
	}
	return internalShape
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	return shapeFor(err).status
}

// writeError renders err as an error envelope. Gate rejections keep their
// own reason. Internal details are shown only when exposeInternal is set.
func writeError(w http.ResponseWriter, err error, exposeInternal bool) {
	shape := shapeFor(err)
	msg := shape.message

	var denied *access.Error
	switch {
	case errors.As(err, &denied):
		msg = denied.Reason
	case shape.status == http.StatusInternalServerError && exposeInternal:
		msg = err.Error()
	}

	writeJSON(w, shape.status, Envelope{Message: msg, Error: shape.code})
}
