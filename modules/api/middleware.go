package api

import (
	"strings"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/modules/account"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

const (
	// SessionCookie is the cookie carrying the session token.
	SessionCookie = "session"

	// UserContextKey is the key used to store the current user in the Fiber context.
	UserContextKey = "user"

	// TokenContextKey is the key used to store the session token in the Fiber context.
	TokenContextKey = "token"
)

// sessionToken returns the token from the session cookie, or from a Bearer
// Authorization header when there is no cookie.
func sessionToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// SessionMiddleware resolves the current user for every request it guards.
// Requests without a live session are rejected with 401.
func SessionMiddleware(accounts account.AccountPort, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authentication required",
			})
		}

		user, err := accounts.CurrentUser(c.UserContext(), token)
		if err != nil {
			if apperr.Kind(err) == apperr.ErrUnauthenticated {
				clearSessionCookie(c)
			}
			return writeError(c, err, logger)
		}

		c.Locals(UserContextKey, user)
		c.Locals(TokenContextKey, token)

		return c.Next()
	}
}

func setSessionCookie(c *fiber.Ctx, token string, expires time.Time, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// writeError maps err onto a status code and error body. Causes of 5xx
// responses are logged and never sent to the client.
func writeError(c *fiber.Ctx, err error, logger types.Logger) error {
	status, code, message := fiber.StatusInternalServerError, "internal_error", "An internal error occurred"

	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		status, code, message = fiber.StatusBadRequest, "bad_request", detail(err, apperr.ErrValidation)
	case apperr.ErrDuplicateEmail:
		status, code, message = fiber.StatusConflict, "conflict", "Email already registered"
	case apperr.ErrInvalidCredentials:
		status, code, message = fiber.StatusUnauthorized, "unauthorized", "Invalid email or password"
	case apperr.ErrUnauthenticated:
		status, code, message = fiber.StatusUnauthorized, "unauthorized", "Authentication required"
	case apperr.ErrNotFound:
		status, code, message = fiber.StatusNotFound, "not_found", "Task not found"
	case apperr.ErrInvalidStatus:
		status, code, message = fiber.StatusUnprocessableEntity, "invalid_status", detail(err, apperr.ErrInvalidStatus)
	default:
		logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// detail returns the part of err's message starting at the sentinel's text,
// dropping transport prefixes added on the way.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return sentinel.Error()
}

// errorHandler handles errors returned from handlers that did not write a
// response themselves.
func errorHandler(logger types.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(ErrorResponse{
				Error:   "http_error",
				Message: e.Message,
			})
		}
		return writeError(c, err, logger)
	}
}
