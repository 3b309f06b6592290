package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const linkedinPersonURNPrefix = "urn:li:person:"

// CredentialService exposes stored LinkedIn accounts as publish credentials.
type CredentialService struct {
	sa        repository.SocialAccountRepository
	secretKey []byte
}

func NewCredentialService(sa repository.SocialAccountRepository, secretKey string) *CredentialService {
	return &CredentialService{sa: sa, secretKey: []byte(secretKey)}
}

// GetCredential returns nil, nil when the owner never connected LinkedIn.
func (s *CredentialService) GetCredential(ctx context.Context, ownerID string) (*models.Credential, error) {
	acc, err := s.sa.GetByUserID(ctx, ownerID, models.PlatformLinkedIn)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, nil
	}

	cred := &models.Credential{
		Connected: acc.AccountStatus == models.AccountStatusConnected,
		ExpiresAt: acc.TokenExpiresAt,
	}
	if acc.AccountID != "" {
		cred.AuthorURN = linkedinPersonURNPrefix + acc.AccountID
	}
	if acc.AccessToken != "" {
		token, err := utils.Decrypt(acc.AccessToken, s.secretKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt access token: %w", err)
		}
		cred.AccessToken = token
	}
	return cred, nil
}
