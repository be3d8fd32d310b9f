package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesKind(t *testing.T) {
	err := Validation("ingest", "mime %s not allowed", "text/plain")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "ingest: mime text/plain not allowed", err.Error())
}

func TestErrorIs_ThroughWrapping(t *testing.T) {
	inner := Storage("move", "/data/uploads/1/2/a.jpg", errors.New("permission denied"))
	wrapped := fmt.Errorf("upload failed: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrStorage))
	assert.Equal(t, KindStorage, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "/data/uploads/1/2/a.jpg")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("op", "bad"), http.StatusBadRequest},
		{"not found", NotFound("op", "missing"), http.StatusNotFound},
		{"configuration", Configuration("op", "unknown owner"), http.StatusInternalServerError},
		{"processing", Processing("op", "a.jpg", errors.New("decode")), http.StatusUnprocessableEntity},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
