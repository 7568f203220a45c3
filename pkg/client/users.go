package client

import (
	"context"
	"net/http"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// Account settings

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserResponse, error) {
	var result models.UserResponse
	err := c.call(ctx, request{op: OpUpdateProfile, method: http.MethodPut, path: "/api/users/profile", body: update, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdatePassword(ctx context.Context, update models.PasswordUpdate) (*models.MessageResponse, error) {
	var result models.MessageResponse
	err := c.call(ctx, request{op: OpUpdatePassword, method: http.MethodPut, path: "/api/users/password", body: update, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, update models.PreferencesUpdate) (*models.UserResponse, error) {
	var result models.UserResponse
	err := c.call(ctx, request{op: OpUpdatePreferences, method: http.MethodPut, path: "/api/users/preferences", body: update, auth: true}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteAccount permanently removes the current account. The password is
// confirmed by the server.
func (c *Client) DeleteAccount(ctx context.Context, password string) (*models.MessageResponse, error) {
	var result models.MessageResponse
	err := c.call(ctx, request{
		op:     OpDeleteAccount,
		method: http.MethodDelete,
		path:   "/api/users/account",
		body:   models.AccountDelete{Password: password},
		auth:   true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
