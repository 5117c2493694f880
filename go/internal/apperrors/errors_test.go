package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("failed to launch campaign: %w", NotFound("campaign", "abc"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "failed to launch campaign: campaign abc not found", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("contact_id is required"), http.StatusBadRequest},
		{"auth", Auth("bad secret"), http.StatusUnauthorized},
		{"not found", NotFound("sequence", 1), http.StatusNotFound},
		{"conflict", Conflict("already enrolled"), http.StatusConflict},
		{"invalid state", InvalidState("campaign is completed"), http.StatusConflict},
		{"no recipients", NoEligibleRecipients("none"), http.StatusUnprocessableEntity},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestConfigurationUnwraps(t *testing.T) {
	cause := errors.New("no row")
	err := Configuration("missing send configuration", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConfiguration)
}
