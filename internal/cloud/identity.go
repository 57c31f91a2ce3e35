package cloud

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated identity returned by the remote auth
// endpoints. Role and DisplayName come from the token metadata.
type Session struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
}

// SignIn authenticates a user and decorates the session with the
// role and display name carried in the token's metadata claims.
func (c *Client) SignIn(ctx context.Context, username, password string) (Session, error) {
	body := map[string]any{
		"username": username,
		"password": password,
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "auth/v1/token", body, &resp); err != nil {
		return Session{}, err
	}
	return sessionFromToken(username, resp.AccessToken)
}

// SignUp registers a user, attaching role and display name as user
// metadata, and returns the resulting session.
func (c *Client) SignUp(ctx context.Context, username, password, displayName, role string) (Session, error) {
	body := map[string]any{
		"username": username,
		"password": password,
		"user_metadata": map[string]any{
			"display_name": displayName,
			"role":         role,
		},
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "auth/v1/signup", body, &resp); err != nil {
		return Session{}, err
	}
	return sessionFromToken(username, resp.AccessToken)
}

// sessionFromToken extracts identity metadata from the access token.
// The token is issued by the remote service; its signature is checked
// there, not here, so claims are read without verification.
func sessionFromToken(username, token string) (Session, error) {
	s := Session{Username: username, AccessToken: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s, fmt.Errorf("decode access token: %w", err)
	}
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if v, ok := meta["display_name"].(string); ok {
			s.DisplayName = v
		}
		if v, ok := meta["role"].(string); ok {
			s.Role = v
		}
	}
	if s.Role == "" {
		if v, ok := claims["role"].(string); ok {
			s.Role = v
		}
	}
	return s, nil
}
