package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parkgate/internal/app"
	"parkgate/internal/domain"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"result": "success"}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps err to a status and failure body. Internal failures are
// logged in full and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]any{"result": "fail", "error": code, "message": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, app.ErrUserNotFound):
		return http.StatusForbidden, "unknown_user"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyInside):
		return http.StatusConflict, "already_inside"
	case errors.Is(err, domain.ErrNotInside):
		return http.StatusConflict, "not_inside"
	case errors.Is(err, domain.ErrBlacklisted):
		return http.StatusConflict, "blacklisted"
	case errors.Is(err, domain.ErrAlreadyBlacklisted):
		return http.StatusConflict, "already_blacklisted"
	case errors.Is(err, domain.ErrNotBlacklisted):
		return http.StatusConflict, "not_blacklisted"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrConfig):
		return http.StatusInternalServerError, "config_error"
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %w", errBadRequest, err)
	}
	return nil
}

// requestTime parses an optional request timestamp, defaulting to now.
func (s *Server) requestTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.now(), nil
	}
	ts, err := domain.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time, nil
}

// bearerToken accepts a raw token or "Bearer <token>".
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
