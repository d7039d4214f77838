package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
)

// SettingsHandler serves the caller's privacy and contact settings.
type SettingsHandler struct {
	DB *sqlx.DB
}

// settingsRequest is a partial update; absent fields keep their value.
type settingsRequest struct {
	ShowEmail          *bool   `json:"show_email"`
	ShowProfile        *bool   `json:"show_profile"`
	AllowSharing       *bool   `json:"allow_sharing"`
	ProfileVisibility  *bool   `json:"profile_visibility"`
	ContactInformation *bool   `json:"contact_information"`
	ContactEmail       *string `json:"contact_email"`
	ContactPhone       *string `json:"contact_phone"`
}

func (req *settingsRequest) apply(s *model.UserSettings) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&s.ShowEmail, req.ShowEmail)
	setBool(&s.ShowProfile, req.ShowProfile)
	setBool(&s.AllowSharing, req.AllowSharing)
	setBool(&s.ProfileVisibility, req.ProfileVisibility)
	setBool(&s.ContactInformation, req.ContactInformation)
	if req.ContactEmail != nil {
		s.ContactEmail = model.NormalizeEmail(*req.ContactEmail)
	}
	if req.ContactPhone != nil {
		s.ContactPhone = strings.TrimSpace(*req.ContactPhone)
	}
}

// Get handles GET /api/me/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := store.GetUserSettings(r.Context(), h.DB, callerID(r))
	if err != nil {
		slog.Error("failed to get settings", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get settings")
		return
	}
	jsonResponse(w, http.StatusOK, settings)
}

// Update handles PUT /api/me/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	settings, err := store.GetUserSettings(r.Context(), h.DB, callerID(r))
	if err != nil {
		slog.Error("failed to get settings", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to get settings")
		return
	}
	req.apply(settings)

	fe := fieldErrors{}
	if settings.ContactEmail != "" {
		if err := model.ValidateEmail(settings.ContactEmail, ""); err != nil {
			fe.add("contact_email", err.Error())
		}
	}
	if len(settings.ContactPhone) > model.MaxContactPhoneLength {
		fe.add("contact_phone", "contact phone must be at most 20 characters")
	}
	if len(fe) > 0 {
		jsonErrors(w, http.StatusBadRequest, fe)
		return
	}

	if err := store.SaveUserSettings(r.Context(), h.DB, settings); err != nil {
		slog.Error("failed to save settings", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "", "failed to save settings")
		return
	}

	slog.Info("settings updated", "user", GetClaims(r.Context()).Email)
	jsonResponse(w, http.StatusOK, settings)
}
