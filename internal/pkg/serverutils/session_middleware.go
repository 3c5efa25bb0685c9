package serverutils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionCookie    = "pdfchat_session"
	sessionLocalsKey = "session_id"
)

// SessionMiddleware ties every request to a session id carried in a signed
// cookie. A missing, expired or tampered cookie starts a new session. API
// clients may send the same token as a bearer token instead.
func SessionMiddleware(secret []byte, ttl time.Duration) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := ctx.Cookies(SessionCookie)
		if token == "" {
			if auth := ctx.Get(fiber.HeaderAuthorization); len(auth) > 7 && auth[:7] == "Bearer " {
				token = auth[7:]
			}
		}

		claims, err := ParseSessionToken(secret, token)
		if err != nil || claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) < ttl/2 {
			sid := uuid.NewString()
			if err == nil {
				sid = claims.Subject
			}
			signed, expires, err := NewSessionToken(secret, sid, ttl)
			if err != nil {
				return err
			}
			ctx.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    signed,
				Path:     "/",
				Expires:  expires,
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
			ctx.Set("X-Session-Token", signed)
			ctx.Locals(sessionLocalsKey, sid)
			return ctx.Next()
		}

		ctx.Locals(sessionLocalsKey, claims.Subject)
		return ctx.Next()
	}
}

func NewSessionToken(secret []byte, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(secret)
	return signed, expires, err
}

func ParseSessionToken(secret []byte, token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SessionID returns the id set by SessionMiddleware.
func SessionID(ctx *fiber.Ctx) string {
	sid, _ := ctx.Locals(sessionLocalsKey).(string)
	return sid
}
