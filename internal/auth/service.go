package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/crewdeck/crewdeck/internal/shared"
)

// BcryptCost is the single work factor used for every credential hash in
// the system. Changing it only affects newly hashed passwords.
const BcryptCost = 12

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials. Inactive accounts and
// unknown emails fail with the same error as a bad password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ResolvePrincipal verifies a raw token and re-reads the account so a
// deactivated user or a changed role takes effect on the next request.
func (s *Service) ResolvePrincipal(ctx context.Context, rawToken string) (*shared.Principal, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, shared.ErrTokenInvalid
	}
	return &shared.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  user.Name,
		Role:         user.RoleName,
		RoleID:       user.RoleID,
		DepartmentID: user.DepartmentID,
	}, nil
}

// HashPassword hashes a plaintext credential with the shared work factor.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
