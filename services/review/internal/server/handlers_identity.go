package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerGoogleRequest struct {
	GoogleID string `json:"googleId"`
	Username string `json:"username"`
	Picture  string `json:"picture"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginGoogleRequest struct {
	GoogleID string `json:"googleId"`
}

type loginResponse struct {
	Status    string    `json:"status"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type editProfileRequest struct {
	Username string `json:"username"`
	Facebook string `json:"facebook"`
	File     string `json:"file"`
}

type editProfileResponse struct {
	Result   domain.User `json:"result"`
	NewToken string      `json:"newToken"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(dst)
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	exists, err := s.app.CheckEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (s *Server) handleCheckGoogleID(w http.ResponseWriter, r *http.Request) {
	exists, err := s.app.CheckFederatedID(r.Context(), chi.URLParam(r, "googleId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.audit(r, "identity.register", "fail", "flow", "local")
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "identity.register", "success", "flow", "local", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleRegisterGoogle(w http.ResponseWriter, r *http.Request) {
	var req registerGoogleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	user, err := s.app.RegisterFederated(r.Context(), req.GoogleID, req.Username, req.Picture)
	if err != nil {
		s.audit(r, "identity.register", "fail", "flow", "federated")
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "identity.register", "success", "flow", "federated", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	s.login(w, r, app.LocalCredentials{Email: req.Email, Password: req.Password})
}

func (s *Server) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	var req loginGoogleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	s.login(w, r, app.FederatedCredentials{ID: req.GoogleID})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, creds app.Credentials) {
	session, err := s.app.Authenticate(r.Context(), creds)
	if err != nil {
		s.audit(r, "identity.login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "identity.login", "success", "user_id", session.Claims.ID)
	s.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, loginResponse{
		Status:    "Success",
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, "Success")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, claims)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	profile, err := s.app.Profile(r.Context(), claims)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req editProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	user, session, err := s.app.UpdateProfile(r.Context(), claims.ID, app.ProfileUpdate{
		Username: req.Username,
		Facebook: req.Facebook,
		File:     req.File,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, editProfileResponse{Result: user, NewToken: session.Token})
}

func (s *Server) handleGetUserData(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.SearchUsers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.UserDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
