package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
)

// ErrorBody is the JSON document returned for a registered user error.
// Field order is part of the wire contract.
type ErrorBody struct {
	Message    string `json:"message"`
	Resolution string `json:"resolution,omitempty"`
	ErrorCode  string `json:"error_code"`
}

// ExceptionResponse pairs a status code with its fixed body.
type ExceptionResponse struct {
	Status int
	Body   ErrorBody
}

var exceptionTable = map[domain.UserError]ExceptionResponse{
	domain.ErrUserAlreadyExists: {
		Status: http.StatusForbidden,
		Body: ErrorBody{
			Message:   "User with email already exists",
			ErrorCode: "user_exists",
		},
	},
	domain.ErrInvalidCredentials: {
		Status: http.StatusBadRequest,
		Body: ErrorBody{
			Message:   "Invalid credentials",
			ErrorCode: "invalid_credentials",
		},
	},
	domain.ErrInvalidToken: {
		Status: http.StatusUnauthorized,
		Body: ErrorBody{
			Message:    "Invalid token",
			Resolution: "Please get a new token",
			ErrorCode:  "invalid_token",
		},
	},
	domain.ErrAccessTokenRequired: {
		Status: http.StatusUnauthorized,
		Body: ErrorBody{
			Message:    "Access token required",
			Resolution: "Please provide an access token",
			ErrorCode:  "access_token_required",
		},
	},
	domain.ErrRefreshTokenRequired: {
		Status: http.StatusForbidden,
		Body: ErrorBody{
			Message:    "Refresh token required",
			Resolution: "Please provide a refresh token",
			ErrorCode:  "refresh_token_required",
		},
	},
}

// LookupException returns the fixed response for err if it is, or wraps, a registered user error.
func LookupException(err error) (ExceptionResponse, bool) {
	var userErr domain.UserError
	if !errors.As(err, &userErr) {
		return ExceptionResponse{}, false
	}
	resp, ok := exceptionTable[userErr]
	return resp, ok
}

// RegisterExceptionHandlers installs a middleware that answers every registered user error
// returned further down the chain with its fixed response and counts it by error code.
// Other errors pass through.
func RegisterExceptionHandlers(app *fiber.App, metrics *observability.Metrics) {
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		if resp, ok := LookupException(err); ok {
			metrics.RecordError(c.Path(), c.Method(), resp.Body.ErrorCode)
			return writeException(c, resp)
		}
		return err
	})
}

func writeException(c *fiber.Ctx, resp ExceptionResponse) error {
	return c.Status(resp.Status).JSON(resp.Body)
}
