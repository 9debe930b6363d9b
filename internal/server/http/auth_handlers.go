package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const passwordSpecials = "@$!%*?&"

// validPassword requires at least 8 characters with an uppercase letter, a
// lowercase letter, a digit and one of passwordSpecials.
func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

func validateRegister(req *registerRequest) string {
	if l := len(req.Username); l < 4 || l > 16 {
		return "Username must be between 4 and 16 characters."
	}
	if !validPassword(req.Password) {
		return "Password must contain at least one uppercase, one lowercase, one number, and one special character."
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "Email is invalid."
	}
	return ""
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if msg := validateRegister(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			respondError(w, http.StatusConflict, "Username is already taken.")
			return
		}
		s.logger.Error(r.Context(), "registration failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required.")
		return
	}

	user, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			respondError(w, http.StatusUnauthorized, "Invalid username or password.")
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	token, err := s.sessions.IssueToken(user.ID)
	if err != nil {
		s.logger.Error(r.Context(), "token issue failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"token":   token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondMessage(w, http.StatusBadRequest, "Token not provided")
		return
	}

	if err := s.sessions.Revoke(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, common.ErrTokenInvalid):
			respondError(w, http.StatusUnauthorized, "Invalid token.")
		case errors.Is(err, common.ErrCacheUnavailable):
			respondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
		default:
			s.logger.Error(r.Context(), "logout failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error.")
		}
		return
	}

	respondMessage(w, http.StatusOK, "Logout successful")
}
