package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusshare/sharehub/internal/auth"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
)

// AuthHandler handles registration, sessions and the caller's own profile.
type AuthHandler struct {
	DB          *sqlx.DB
	Signer      *auth.Signer
	EmailDomain string
}

type profileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	CollegeDept string `json:"college_dept"`
	Course      string `json:"course"`
	YearLevel   string `json:"year_level"`
}

func (p profileRequest) profile() store.Profile {
	return store.Profile{
		FirstName:   strings.TrimSpace(p.FirstName),
		LastName:    strings.TrimSpace(p.LastName),
		Phone:       strings.TrimSpace(p.Phone),
		CollegeDept: strings.TrimSpace(p.CollegeDept),
		Course:      strings.TrimSpace(p.Course),
		YearLevel:   strings.TrimSpace(p.YearLevel),
	}
}

func (p profileRequest) validate(fe fieldErrors) {
	if strings.TrimSpace(p.FirstName) == "" {
		fe.add("first_name", "first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		fe.add("last_name", "last name is required")
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	profileRequest
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	email := model.NormalizeEmail(req.Email)
	fe := fieldErrors{}
	if err := model.ValidateEmail(email, h.EmailDomain); err != nil {
		fe.add("email", err.Error())
	}
	if err := model.ValidatePassword(req.Password, email); err != nil {
		fe.add("password", err.Error())
	}
	req.validate(fe)
	if len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "", "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, email, string(hash), model.RoleUser, req.profile())
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusConflict, "email", "an account with this email already exists")
		return
	}
	if err != nil {
		slog.Error("failed to create user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to create account")
		return
	}

	token, err := h.Signer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "", "failed to generate token")
		return
	}

	slog.Info("user registered", "user", user.Email)
	jsonResponse(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	email := model.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "", "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "store unavailable")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "", "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "", "invalid credentials")
		return
	}
	if user.Blocked {
		jsonError(w, http.StatusForbidden, "", "account is blocked")
		return
	}

	token, err := h.Signer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "", "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Email, "role", user.Role)
	jsonResponse(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "", "not authenticated")
		return
	}

	if claims.ExpiresAt != nil {
		if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
			slog.Error("failed to revoke token", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "", "failed to log out")
			return
		}
	}

	slog.Info("user logged out", "user", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "", "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "", "current and new password required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current_password", "current password is incorrect")
		return
	}

	if err := model.ValidatePassword(req.NewPassword, user.Email); err != nil {
		jsonError(w, http.StatusBadRequest, "new_password", err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "", "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, string(hash)); err != nil {
		slog.Error("failed to update password", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update password")
		return
	}

	slog.Info("user changed own password", "user", user.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "", "not authenticated")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/me.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "", "not authenticated")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	fe := fieldErrors{}
	req.validate(fe)
	if len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, user.ID, req.profile()); err != nil {
		slog.Error("failed to update profile", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to update profile")
		return
	}

	updated, err := store.GetUser(r.Context(), h.DB, user.ID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusServiceUnavailable, "", "failed to load profile")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}
