package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/linkshelf/internal/store"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"token": "abc"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, "success", body["msg"])
	assert.Equal(t, map[string]any{"token": "abc"}, body["data"])
}

func TestFailHasNullData(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, Unauthorized, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(401), body["code"])
	assert.Equal(t, "unauthorized", body["msg"])
	assert.Contains(t, body, "data")
	assert.Nil(t, body["data"])
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want BizCode
	}{
		{"not found", fmt.Errorf("get group: %w", store.ErrNotFound), NotFound},
		{"constraint", fmt.Errorf("insert user: %w", store.ErrConstraint), BadRequest},
		{"unavailable", fmt.Errorf("get user: %w", store.ErrUnavailable), ServerError},
		{"validation", Invalid("slug", "must not be empty"), BadRequest},
		{"other", errors.New("boom"), ServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := FromError(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestFromErrorHidesInternals(t *testing.T) {
	_, msg := FromError(errors.New("sql: secret table exploded"))
	assert.Equal(t, "internal server error", msg)
}

func TestValidationMessage(t *testing.T) {
	_, msg := FromError(Invalid("slug", "must not be empty"))
	assert.Equal(t, "slug must not be empty", msg)
}

func TestBizCodeStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, Forbidden.Status())
	assert.Equal(t, http.StatusInternalServerError, BizCode(999).Status())
	assert.Equal(t, "internal server error", BizCode(999).Message())
}
