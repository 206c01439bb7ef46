package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/access"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/dmitrijs2005/idkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type mfaRequest struct {
	Email   string `json:"email"`
	MfaCode string `json:"mfaCode"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type updateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return common.ErrorValidation
}

// tokenParam prefers ?token= and falls back to the body field.
func tokenParam(r *http.Request, body string) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return body
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.svc.CreateUser(r.Context(), services.SignUpInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	msg := "User created successfully"
	if !res.VerificationEmailSent {
		msg = "User created, but the verification email could not be sent. Request a new one via resend-verification."
	}
	success(w, http.StatusCreated, msg, map[string]any{
		"user":                  res.Account,
		"verificationEmailSent": res.VerificationEmailSent,
	})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.svc.LoginUser(r.Context(), req.Email, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "MFA code sent to your email. Please verify to complete login.", map[string]any{"mfaRequired": true})
}

func (s *Server) verifyMfaCode(w http.ResponseWriter, r *http.Request) {
	var req mfaRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.svc.VerifyMfaCode(r.Context(), req.Email, req.MfaCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "MFA verified", map[string]string{"token": token})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.svc.VerifyEmail(r.Context(), tokenParam(r, req.Token)); err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "Email verified successfully", nil)
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.svc.ResendVerification(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "Verification email sent", nil)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "Password reset email sent", nil)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.svc.ResetPassword(r.Context(), tokenParam(r, req.Token), req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	success(w, http.StatusOK, "Password reset successful", nil)
}

// current is only called behind authenticate.
func current(r *http.Request) *models.Account {
	a, _ := access.AccountFrom(r.Context())
	return a
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.GetUserProfile(r.Context(), current(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "User profile fetched successfully", map[string]any{"user": u})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.svc.UpdateUser(r.Context(), current(r).ID, models.AccountPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "User profile updated successfully", map[string]any{"user": u})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteUser(r.Context(), current(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "User profile deleted successfully", nil)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.GetAllUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	success(w, http.StatusOK, "All users fetched successfully", map[string]any{"users": users})
}
