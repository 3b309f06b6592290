package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/postpilot/internal/transfer"
)

const linkedinUgcPostsPath = "/v2/ugcPosts"

// APIError is a non-2xx answer from LinkedIn.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("linkedin returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("linkedin returned status %d", e.StatusCode)
}

func (e *APIError) RemoteMessage() string { return e.Message }

// Transient reports whether LinkedIn asked us to come back later.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type LinkedinService struct {
	apiURL string
	client *http.Client
}

func NewLinkedinService(apiURL string, client *http.Client) *LinkedinService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &LinkedinService{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: client,
	}
}

// Publish shares content as a public text post on behalf of authorURN and
// returns the id LinkedIn assigned to it.
func (s *LinkedinService) Publish(ctx context.Context, authorURN, accessToken, content string) (string, error) {
	payload := transfer.UgcPostRequest{
		Author:         authorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: transfer.UgcSpecificContent{
			ShareContent: transfer.UgcShareContent{
				ShareCommentary:    transfer.UgcText{Text: content},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: transfer.UgcVisibility{
			MemberNetworkVisibility: "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+linkedinUgcPostsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp transfer.LinkedinErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		slog.Info("LinkedIn publish returned error", slog.Int("status", resp.StatusCode), slog.String("message", errResp.Message))
		return "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	var result transfer.UgcPostResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			slog.Info(err.Error())
			return "", fmt.Errorf("failed to decode publish response: %w", err)
		}
	}
	if result.ID == "" {
		result.ID = resp.Header.Get("X-RestLi-Id")
	}
	if result.ID == "" {
		return "", fmt.Errorf("publish response carried no post id")
	}

	return result.ID, nil
}
