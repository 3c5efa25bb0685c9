package serverutils

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty input", fmt.Errorf("process: %w", apperror.ErrEmptyInput), 400},
		{"empty question", apperror.ErrEmptyQuestion, 400},
		{"validation", &ValidationError{Fields: []string{"question is required"}}, 400},
		{"not ready", apperror.ErrNotReady, 409},
		{"busy", apperror.ErrBusy, 409},
		{"external", fmt.Errorf("embed: %w", apperror.NewExternalServiceError("openai", 500, errors.New("boom"))), 502},
		{"fiber", fiber.NewError(fiber.StatusRequestEntityTooLarge, "too big"), 413},
		{"other", errors.New("nil pointer"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Question string `validate:"required,max=5"`
	}

	assert.NoError(t, ValidateRequest(req{Question: "hi"}))

	err := ValidateRequest(req{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"question is required"}, verr.Fields)

	err = ValidateRequest(req{Question: "too long"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields[0], "at most 5")
}

func sessionApp(secret []byte) *fiber.App {
	app := fiber.New()
	app.Use(SessionMiddleware(secret, time.Hour))
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString(SessionID(ctx))
	})
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestSessionMiddleware_IssuesAndHonoursCookie(t *testing.T) {
	secret := []byte("test-secret")
	app := sessionApp(secret)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	first := body(t, resp)
	require.NotEmpty(t, first)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, first, body(t, resp))
}

func TestSessionMiddleware_RejectsForeignToken(t *testing.T) {
	app := sessionApp([]byte("right"))
	forged, _, err := NewSessionToken([]byte("wrong"), "victim", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+forged)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.NotEqual(t, "victim", body(t, resp))
}

func TestSessionMiddleware_BearerToken(t *testing.T) {
	secret := []byte("s")
	app := sessionApp(secret)
	token, _, err := NewSessionToken(secret, "tui-session", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "tui-session", body(t, resp))
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error { return apperror.ErrNotReady })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, 409, resp.StatusCode)
	assert.Contains(t, body(t, resp), `"success":false`)
}
