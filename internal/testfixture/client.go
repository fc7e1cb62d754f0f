//go:build integration

package testfixture

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// Client drives an App in process through fiber's test transport; no socket is opened.
type Client struct {
	app   *fiber.App
	Token string
}

// Response is a decoded reply.
type Response struct {
	Status int
	Body   []byte
}

// JSON decodes the body into a generic map.
func (r Response) JSON(t *testing.T) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

// NewClient returns a client for app.
func NewClient(app *fiber.App) *Client {
	return &Client{app: app}
}

// Do sends a request with an optional JSON payload and the client's bearer token.
func (c *Client) Do(t *testing.T, method, path string, payload any) Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if c.Token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.Token)
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return Response{Status: resp.StatusCode, Body: raw}
}

// WithToken returns a copy of the client that sends token.
func (c *Client) WithToken(token string) *Client {
	return &Client{app: c.app, Token: token}
}
