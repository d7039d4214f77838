package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/campusshare/sharehub/internal/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// generalField keys errors that are not about a single input.
const generalField = "general"

type errorDetail struct {
	Message string `json:"message"`
}

// fieldErrors collects validation messages keyed by input field.
type fieldErrors map[string][]errorDetail

func (fe fieldErrors) add(field, message string) {
	if field == "" {
		field = generalField
	}
	fe[field] = append(fe[field], errorDetail{Message: message})
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("error encoding response", "error", err)
		}
	}
}

// jsonErrors writes every collected message.
func jsonErrors(w http.ResponseWriter, status int, fe fieldErrors) {
	jsonResponse(w, status, map[string]fieldErrors{"errors": fe})
}

// jsonError writes a single message. An empty field means "general".
func jsonError(w http.ResponseWriter, status int, field, message string) {
	fe := fieldErrors{}
	fe.add(field, message)
	jsonErrors(w, status, fe)
}

// lendingError maps a lifecycle failure to its HTTP status.
func lendingError(w http.ResponseWriter, err error) {
	var le *lending.Error
	if !errors.As(err, &le) {
		slog.Error("unexpected lifecycle error", "error", err)
		jsonError(w, http.StatusInternalServerError, "", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch le.Kind {
	case lending.KindInvalidArgument:
		status = http.StatusBadRequest
	case lending.KindUnauthenticated:
		status = http.StatusUnauthorized
	case lending.KindPermissionDenied:
		status = http.StatusForbidden
	case lending.KindNotFound:
		status = http.StatusNotFound
	case lending.KindConflict:
		status = http.StatusConflict
	case lending.KindUnavailable:
		status = http.StatusServiceUnavailable
		slog.Error("store unavailable", "error", err)
	}
	jsonError(w, status, le.Field, le.Message)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
