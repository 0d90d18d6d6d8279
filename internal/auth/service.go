package auth

import (
	"context"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/user"
)

// Credentials is the slice of the identity store that login needs.
type Credentials interface {
	Authenticate(ctx context.Context, username, password string) (*user.Identity, error)
	ChangePassword(ctx context.Context, id, current, next string) error
}

// ServiceAPI is what the handler depends on.
type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	ChangePassword(ctx context.Context, userID string, dto ChangePasswordDTO) error
}

type Service struct {
	credentials Credentials
	tokens      TokenIssuer
}

func NewService(credentials Credentials, tokens TokenIssuer) *Service {
	return &Service{
		credentials: credentials,
		tokens:      tokens,
	}
}

// Login answers every credential failure with the same error so callers
// cannot tell an unknown username from a wrong password.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.credentials.Authenticate(ctx, dto.Username, dto.Password)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, internal.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}
	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      identity,
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, dto ChangePasswordDTO) error {
	return s.credentials.ChangePassword(ctx, userID, dto.CurrentPassword, dto.NewPassword)
}
