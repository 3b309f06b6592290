package publisher

import (
	"errors"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrTokenExpired = errors.New("token expired")
)

// CheckCredential reports whether cred can be used to publish at now.
// A zero expiry means the provider did not report one and is not treated as expired.
func CheckCredential(cred *models.Credential, now time.Time) error {
	if cred == nil || !cred.Connected || cred.AccessToken == "" || cred.AuthorURN == "" {
		return ErrNotConnected
	}
	if !cred.ExpiresAt.IsZero() && !cred.ExpiresAt.After(now) {
		return ErrTokenExpired
	}
	return nil
}
