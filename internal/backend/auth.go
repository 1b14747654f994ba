package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jinzhu/copier"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

var _ ports.AuthAPI = (*Client)(nil)

// Login returns the bearer token for the given credentials.
func (c *Client) Login(ctx context.Context, email string, password string) (string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", ErrInvalidResponse)
	}
	return token, nil
}

// Signup registers an account and returns the backend's confirmation text.
func (c *Client) Signup(ctx context.Context, email string, name string, password string) (string, error) {
	var message string
	req := signupRequest{Email: email, Name: name, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", "", req, &message); err != nil {
		return "", err
	}
	return message, nil
}

// Me resolves token to the signed-in user.
func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, fmt.Errorf("me: empty token")
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return domain.User{}, err
	}

	var user domain.User
	if err := copier.Copy(&user, &resp); err != nil {
		return domain.User{}, fmt.Errorf("%w: user: %v", ErrInvalidResponse, err)
	}
	if user.Email == "" && user.Name == "" {
		return domain.User{}, fmt.Errorf("%w: empty user", ErrInvalidResponse)
	}
	return user, nil
}
