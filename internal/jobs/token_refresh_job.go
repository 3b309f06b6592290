package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

const (
	refreshWindow    = 30 * time.Minute
	concurrencyLimit = 10
)

type TokenRefresher interface {
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type TokenRefreshJob struct {
	sr       repository.SocialAccountRepository
	linkedin TokenRefresher
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, linkedin TokenRefresher) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:       sr,
		linkedin: linkedin,
	}
}

// RefreshTokens renews LinkedIn tokens that expire within the next refresh window.
// Scheduled posts of an owner whose token lapses fail with "token expired".
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	accounts, err := c.sr.ListByTimeInterval(ctx, models.PlatformLinkedIn, currentTime, currentTime.Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.linkedin.RefreshToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for LinkedIn", slog.String("user_id", acc.UserID), slog.Any("err", err))
			}
		}(acc)
	}

	wg.Wait()
}
