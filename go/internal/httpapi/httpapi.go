// Package httpapi holds the JSON request/response helpers shared by the
// HTTP services.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// WriteError maps err to its HTTP status. Internal errors are logged and
// their detail withheld.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	WriteJSON(w, status, ErrorResponse{Error: msg, Kind: string(apperrors.KindOf(err))})
}

// DecodeJSON reads a JSON body into v and runs struct validation. An empty
// body decodes to the zero value before validation.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Validation("invalid JSON body: %v", err)
	}
	return Validate(v)
}

// Validate runs struct tag validation and reports failures as validation
// errors.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return apperrors.Validation("%s", strings.Join(fields, ", "))
	}
	return apperrors.Validation("%v", err)
}

// IDParam parses a UUID path parameter.
func IDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid %s", name)
	}
	return id, nil
}

// RequireSecret rejects requests whose header does not carry the shared
// secret. An empty configured secret rejects everything.
func RequireSecret(header, secret string) func(http.Handler) http.Handler {
	return requireSecret(secret, func(r *http.Request) string { return r.Header.Get(header) })
}

// RequireSecretQuery is RequireSecret for callers that cannot set headers and
// pass the secret as a query parameter instead. The header is still accepted.
func RequireSecretQuery(header, param, secret string) func(http.Handler) http.Handler {
	return requireSecret(secret, func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return v
		}
		return r.URL.Query().Get(param)
	})
}

func requireSecret(secret string, extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extract(r)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				WriteError(w, r, apperrors.Auth("invalid or missing shared secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
