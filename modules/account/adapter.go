package account

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AccountPort defines the account operations other modules use.
type AccountPort interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.SessionToken, error)
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	Resolve(ctx context.Context, token string) (domain.SessionState, error)
	EndSession(ctx context.Context, token string) error
}

// AccountAdapter implements AccountPort over the service container.
type AccountAdapter struct {
	container mono.ServiceContainer
}

var _ AccountPort = (*AccountAdapter)(nil)

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(container mono.ServiceContainer) *AccountAdapter {
	return &AccountAdapter{
		container: container,
	}
}

// call invokes a request-reply service and maps a remote failure back onto
// its apperr sentinel.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, apperr.FromRemote(err))
	}
	return nil
}

// Register creates a new account.
func (a *AccountAdapter) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	req := RegisterRequest{Name: name, Email: email, Password: password}
	var resp UserResponse

	if err := call(ctx, a.container, "register", &req, &resp); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:        resp.ID,
		Name:      resp.Name,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

// Authenticate opens a session for valid credentials.
func (a *AccountAdapter) Authenticate(ctx context.Context, email, password string) (*domain.SessionToken, error) {
	req := AuthenticateRequest{Email: email, Password: password}
	var resp AuthenticateResponse

	if err := call(ctx, a.container, "authenticate", &req, &resp); err != nil {
		return nil, err
	}

	return &domain.SessionToken{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// CurrentUser returns the user behind a session token.
func (a *AccountAdapter) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	req := SessionRequest{Token: token}
	var resp UserResponse

	if err := call(ctx, a.container, "current-user", &req, &resp); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:        resp.ID,
		Name:      resp.Name,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

// Resolve returns the session state for a token.
func (a *AccountAdapter) Resolve(ctx context.Context, token string) (domain.SessionState, error) {
	req := SessionRequest{Token: token}
	var resp ResolveResponse

	if err := call(ctx, a.container, "resolve-session", &req, &resp); err != nil {
		return domain.Anonymous(), err
	}

	if !resp.Authenticated {
		return domain.Anonymous(), nil
	}
	return domain.Authenticated(resp.UserID), nil
}

// EndSession revokes the session behind token.
func (a *AccountAdapter) EndSession(ctx context.Context, token string) error {
	req := SessionRequest{Token: token}
	var resp EndSessionResponse

	return call(ctx, a.container, "end-session", &req, &resp)
}
