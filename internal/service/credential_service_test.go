package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubAccounts struct {
	acc *models.SocialAccount
}

func (s *stubAccounts) Upsert(context.Context, *models.SocialAccount) (int64, error) { return 1, nil }

func (s *stubAccounts) GetByUserID(context.Context, string, string) (*models.SocialAccount, error) {
	return s.acc, nil
}

func (s *stubAccounts) ListByTimeInterval(context.Context, string, time.Time, time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (s *stubAccounts) SetToken(context.Context, string, string, string, *models.SocialAccount) error {
	return nil
}

func (s *stubAccounts) Disconnect(context.Context, string, string) error { return nil }

func TestGetCredential(t *testing.T) {
	encrypted, err := utils.Encrypt([]byte("plain-token"), []byte(testSecret))
	require.NoError(t, err)
	expires := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s := NewCredentialService(&stubAccounts{acc: &models.SocialAccount{
		UserID:         "u1",
		AccountID:      "abc",
		AccessToken:    encrypted,
		TokenExpiresAt: expires,
		AccountStatus:  models.AccountStatusConnected,
	}}, testSecret)

	cred, err := s.GetCredential(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, cred.Connected)
	assert.Equal(t, "plain-token", cred.AccessToken)
	assert.Equal(t, "urn:li:person:abc", cred.AuthorURN)
	assert.Equal(t, expires, cred.ExpiresAt)
}

func TestGetCredentialNeverConnected(t *testing.T) {
	s := NewCredentialService(&stubAccounts{}, testSecret)

	cred, err := s.GetCredential(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestGetCredentialDisconnected(t *testing.T) {
	s := NewCredentialService(&stubAccounts{acc: &models.SocialAccount{
		AccountID:     "abc",
		AccountStatus: models.AccountStatusDisconnected,
	}}, testSecret)

	cred, err := s.GetCredential(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, cred.Connected)
	assert.Empty(t, cred.AccessToken)
}
