package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

const linkedinUserInfoPath = "/v2/userinfo"

var linkedinScopes = []string{"openid", "profile", "w_member_social"}

type PlatformService interface {
	GetAuthURL(state string) string
	Callback(ctx context.Context, code, userID string) error
	Status(ctx context.Context, userID string) (*transfer.LinkedinStatus, error)
	Disconnect(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type platformService struct {
	oauth     *oauth2.Config
	apiURL    string
	secretKey []byte
	sa        repository.SocialAccountRepository
}

func NewLinkedinOAuthConfig(cfg config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.Linkedin.ClientID,
		ClientSecret: cfg.Linkedin.ClientSecret,
		RedirectURL:  cfg.Linkedin.RedirectURI,
		Scopes:       linkedinScopes,
		Endpoint:     linkedin.Endpoint,
	}
}

func NewPlatformService(cfg config.Config, oauth *oauth2.Config, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		oauth:     oauth,
		apiURL:    cfg.Linkedin.APIURL,
		secretKey: []byte(cfg.SecretKey),
		sa:        sa,
	}
}

func (s *platformService) GetAuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

func (s *platformService) Callback(ctx context.Context, code, userID string) error {
	if code == "" || userID == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("token exchange failed: %w", err)
	}

	userInfo, err := s.userInfo(ctx, token)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), s.secretKey)
	if err != nil {
		return err
	}
	encryptedRefreshToken := ""
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), s.secretKey)
		if err != nil {
			return err
		}
	}

	_, err = s.sa.Upsert(ctx, &models.SocialAccount{
		UserID:         userID,
		Platform:       models.PlatformLinkedIn,
		AccountID:      userInfo.Sub,
		AccountName:    userInfo.Name,
		ProfilePicture: userInfo.Picture,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	})
	return err
}

func (s *platformService) userInfo(ctx context.Context, token *oauth2.Token) (*transfer.LinkedinUserInfo, error) {
	client := s.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+linkedinUserInfoPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("LinkedIn userinfo endpoint returned non-200 status")
		return nil, errors.New("LinkedIn userinfo endpoint returned non-200 status")
	}

	var info transfer.LinkedinUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if info.Sub == "" {
		return nil, errors.New("LinkedIn userinfo carried no subject")
	}
	return &info, nil
}

func (s *platformService) Status(ctx context.Context, userID string) (*transfer.LinkedinStatus, error) {
	acc, err := s.sa.GetByUserID(ctx, userID, models.PlatformLinkedIn)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.AccountStatus != models.AccountStatusConnected || !acc.TokenExpiresAt.After(time.Now()) {
		return &transfer.LinkedinStatus{Connected: false}, nil
	}
	return &transfer.LinkedinStatus{
		Connected: true,
		Name:      acc.AccountName,
		Picture:   acc.ProfilePicture,
		ExpiresAt: acc.TokenExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *platformService) Disconnect(ctx context.Context, userID string) error {
	return s.sa.Disconnect(ctx, userID, models.PlatformLinkedIn)
}

// RefreshToken trades the stored refresh token for a new access token.
func (s *platformService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, s.secretKey)
	if err != nil {
		return err
	}

	// an already expired token forces the source to refresh
	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)})
	token, err := src.Token()
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("refresh failed: %w", err)
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), s.secretKey)
	if err != nil {
		return err
	}
	encryptedRefreshToken := ""
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), s.secretKey)
		if err != nil {
			return err
		}
	}

	return s.sa.SetToken(ctx, acc.UserID, models.PlatformLinkedIn, acc.AccessToken, &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	})
}
