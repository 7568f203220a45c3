package client

import (
	"context"
	"net/http"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// TokenResponse represents a login response
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        models.User `json:"user"`
}

// Login exchanges credentials for a bearer token. Rejected credentials fail
// with KindInvalidCredentials rather than KindUnauthorized.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*TokenResponse, error) {
	var result TokenResponse
	err := c.call(ctx, request{op: OpLogin, method: http.MethodPost, path: "/api/auth/login", body: creds}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	var result models.User
	err := c.call(ctx, request{op: OpRegister, method: http.MethodPost, path: "/api/auth/register", body: reg}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Me retrieves the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var result models.User
	err := c.call(ctx, request{op: OpMe, method: http.MethodGet, path: "/api/auth/me", auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
