package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/todosync/internal/model"
)

const authPrefix = "/auth/v1"

// AuthAPI talks to the GoTrue-compatible auth endpoints.
type AuthAPI struct {
	c   *Client
	now func() time.Time
}

// NewAuthAPI returns an auth client sharing c's transport.
func NewAuthAPI(c *Client) *AuthAPI {
	return &AuthAPI{c: c, now: time.Now}
}

// userBody is the user record returned by the auth API.
type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenBody is the session response of the token and signup endpoints.
// Signup with email confirmation enabled returns a bare user instead, in
// which case only the embedded userBody fields are set.
type tokenBody struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userBody `json:"user"`

	userBody
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResult is the outcome of a successful sign-up. Session is nil when
// the account must be confirmed through the emailed link first.
type SignUpResult struct {
	User    model.User
	Session *model.Session
}

// ConfirmationRequired reports whether the user must follow the email link
// before signing in.
func (r SignUpResult) ConfirmationRequired() bool {
	return r.Session == nil
}

// SignInWithPassword exchanges email and password for a session.
func (a *AuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var body tokenBody
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentialsBody{Email: email, Password: password},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	return a.toSession(body)
}

// SignUp registers a new account.
func (a *AuthAPI) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var body tokenBody
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/signup",
		body:   credentialsBody{Email: email, Password: password},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}

	if body.AccessToken == "" {
		user, err := toUser(body.userBody)
		if err != nil {
			return nil, err
		}
		return &SignUpResult{User: user}, nil
	}

	s, err := a.toSession(body)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{User: s.User, Session: s}, nil
}

// RefreshSession trades a refresh token for a new session.
func (a *AuthAPI) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	var body tokenBody
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}
	return a.toSession(body)
}

// SignOut revokes the session identified by accessToken.
func (a *AuthAPI) SignOut(ctx context.Context, accessToken string) error {
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/logout",
		token:  accessToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// GetUser returns the user that owns accessToken.
func (a *AuthAPI) GetUser(ctx context.Context, accessToken string) (model.User, error) {
	var body userBody
	err := a.c.do(ctx, request{
		method: http.MethodGet,
		path:   authPrefix + "/user",
		token:  accessToken,
	}, &body)
	if err != nil {
		return model.User{}, fmt.Errorf("getting user: %w", err)
	}
	return toUser(body)
}

func (a *AuthAPI) toSession(body tokenBody) (*model.Session, error) {
	if body.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no access token")
	}

	s := &model.Session{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
	}
	switch {
	case body.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(body.ExpiresAt, 0).UTC()
	case body.ExpiresIn > 0:
		s.ExpiresAt = a.now().Add(time.Duration(body.ExpiresIn) * time.Second).UTC()
	}

	// A missing user is filled from the token claims by the session layer.
	if body.User != nil {
		user, err := toUser(*body.User)
		if err != nil {
			return nil, err
		}
		s.User = user
	}
	return s, nil
}

func toUser(b userBody) (model.User, error) {
	if b.ID == "" {
		return model.User{Email: b.Email}, nil
	}
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("parsing user id %q: %w", b.ID, err)
	}
	return model.User{ID: id, Email: b.Email}, nil
}
