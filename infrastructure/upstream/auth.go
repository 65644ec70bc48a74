package upstream

import (
	"context"
	"net/http"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// TokenPair is the credential material returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// tokenEnvelope absorbs every token field spelling observed from deployed
// API versions. Older builds return camelCase, newer ones snake_case, and
// one interim release used a bare "token" key.
type tokenEnvelope struct {
	AccessSnake  string `json:"access_token"`
	AccessCamel  string `json:"accessToken"`
	AccessPascal string `json:"AccessToken"`
	Token        string `json:"token"`
	JWT          string `json:"jwt"`

	RefreshSnake  string `json:"refresh_token"`
	RefreshCamel  string `json:"refreshToken"`
	RefreshPascal string `json:"RefreshToken"`
}

func (e tokenEnvelope) pair() (TokenPair, error) {
	pair := TokenPair{
		AccessToken:  firstNonEmpty(e.AccessSnake, e.AccessCamel, e.Token, e.JWT, e.AccessPascal),
		RefreshToken: firstNonEmpty(e.RefreshSnake, e.RefreshCamel, e.RefreshPascal),
	}
	if pair.AccessToken == "" {
		return TokenPair{}, pkgerrors.NewUpstreamError(http.StatusBadGateway,
			"login response contained no recognizable access token")
	}
	return pair, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges an email and password for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var envelope tokenEnvelope
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "",
		loginRequest{Email: email, Password: password}, &envelope)
	if err != nil {
		return TokenPair{}, err
	}
	return envelope.pair()
}

// Register creates a new account. All self-service signups get the user
// role; elevated roles are granted out of band.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.do(ctx, "register", http.MethodPost, "/auth/register", "",
		registerRequest{Username: username, Email: email, Password: password, Role: "user"}, nil)
}

// Refresh exchanges a refresh token for a fresh pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var envelope tokenEnvelope
	err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", "",
		refreshRequest{RefreshToken: refreshToken}, &envelope)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := envelope.pair()
	if err != nil {
		return TokenPair{}, err
	}
	// Some API versions rotate only the access token.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}
