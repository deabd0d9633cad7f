package errcodes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

func TestHandle(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not available", errors.Wrapf(data.ErrNotAvailable, "chapter %d", 1200), http.StatusNotFound, "not_available"},
		{"not downloaded", errors.Wrapf(data.ErrNotFound, "chapter %d", 3), http.StatusNotFound, "not_found"},
		{"parse error", errors.Wrap(data.ErrParse, "no data block"), http.StatusInternalServerError, "internal_server_error"},
		{"transient", data.Transient(errors.New("timeout"), "fetch"), http.StatusInternalServerError, "internal_server_error"},
		{"configuration", errors.Wrap(data.ErrConfiguration, "missing smtp settings: host"), http.StatusInternalServerError, "configuration_error"},
		{"custom", Conflict("Poll in progress."), http.StatusConflict, "conflict"},
		{"echo", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			NewHandler().Handle(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			var body struct {
				Error struct {
					Code       string `json:"code"`
					Message    string `json:"message"`
					StatusCode int    `json:"status_code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.status, body.Error.StatusCode)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestHandle_InternalErrorsHideDetails(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHandler().Handle(data.Storage(errors.New("disk full"), "write /srv/data"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}
