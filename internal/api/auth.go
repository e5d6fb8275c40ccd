package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// authResponse accepts the user either flattened next to the token or
// nested under "user".
type authResponse struct {
	Token string `json:"token"`
	domain.User
	Nested *domain.User `json:"user,omitempty"`
}

func (r authResponse) result() domain.AuthResult {
	user := r.User
	if r.Nested != nil {
		user = *r.Nested
	}
	return domain.AuthResult{Token: r.Token, User: user}
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (domain.AuthResult, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", body, &resp, nil); err != nil {
		return domain.AuthResult{}, err
	}
	if resp.Token == "" {
		return domain.AuthResult{}, apperr.Network(errors.New("auth response without token"))
	}
	return resp.result(), nil
}

func (c *Client) message(ctx context.Context, method, path, token string, body any) (string, error) {
	var resp messageResponse
	if err := c.doJSON(ctx, method, path, token, body, &resp, nil); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Register starts registration. No token is issued; a passcode is emailed.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	msg, err := c.message(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", classifyDuplicate(err)
	}
	return msg, nil
}

// classifyDuplicate turns a 400 about an already registered email into a
// conflict.
func classifyDuplicate(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) && e.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(e.Message), "exist") {
		e.Kind = apperr.KindConflict
	}
	return err
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (domain.AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/verify-otp", map[string]string{"email": email, "otp": otp})
}

func (c *Client) ResendOTP(ctx context.Context, email string) (string, error) {
	return c.message(ctx, http.MethodPost, "/api/auth/resend-otp", "", map[string]string{"email": email})
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", token, nil, &resp, nil); err != nil {
		return domain.User{}, err
	}
	return resp.result().User, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.message(ctx, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": email})
}

func (c *Client) ResetPassword(ctx context.Context, email, otp, password string) (string, error) {
	return c.message(ctx, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"email":    email,
		"otp":      otp,
		"password": password,
	})
}

func (c *Client) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) (string, error) {
	return c.message(ctx, http.MethodPut, "/api/auth/change-password", token, map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	})
}
