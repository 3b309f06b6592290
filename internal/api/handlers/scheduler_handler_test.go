package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubPostService struct {
	service.PostService

	scheduleErr error
	cancelErr   error
	listErr     error
	lastUserID  string
	lastAt      time.Time
}

func (s *stubPostService) Schedule(_ context.Context, postID, userID string, scheduledAt time.Time) (*models.Post, error) {
	s.lastUserID = userID
	s.lastAt = scheduledAt
	if s.scheduleErr != nil {
		return nil, s.scheduleErr
	}
	return &models.Post{ID: postID, UserID: userID, Status: models.PostStatusScheduled, ScheduledAt: &scheduledAt}, nil
}

func (s *stubPostService) Cancel(_ context.Context, postID, userID string) (*models.Post, error) {
	s.lastUserID = userID
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &models.Post{ID: postID, UserID: userID, Status: models.PostStatusDraft}, nil
}

func (s *stubPostService) ListUpcoming(_ context.Context, userID string) ([]*models.Post, error) {
	return []*models.Post{{ID: "p1", UserID: userID, Status: models.PostStatusScheduled}}, nil
}

func newTestApp(t *testing.T, svc service.PostService) (*fiber.App, string) {
	t.Helper()
	cfg := config.Config{SecretKey: testSecret, CookieName: "session"}
	auth := middleware.NewAuthMiddleware(cfg)

	app := fiber.New()
	api := app.Group("/api", auth.AuthMiddleware())
	h := NewSchedulerHandler(svc)
	api.Post("/scheduler/schedule", h.Schedule)
	api.Post("/scheduler/cancel", h.Cancel)
	api.Get("/scheduler/upcoming", h.Upcoming)
	api.Get("/posts", NewPostHandler(svc).ListPosts)

	token, err := utils.GenerateToken(testSecret, "u1", time.Hour)
	require.NoError(t, err)
	return app, token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestScheduleRequiresAuth(t *testing.T) {
	app, _ := newTestApp(t, &stubPostService{})

	resp := doJSON(t, app, http.MethodPost, "/api/scheduler/schedule", "", transfer.ScheduleRequest{PostID: "p1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/scheduler/schedule", "garbage", transfer.ScheduleRequest{PostID: "p1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestScheduleHandler(t *testing.T) {
	svc := &stubPostService{}
	app, token := newTestApp(t, svc)

	resp := doJSON(t, app, http.MethodPost, "/api/scheduler/schedule", token, transfer.ScheduleRequest{
		PostID:      "p1",
		ScheduledAt: "2030-01-02T15:04:05Z",
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", svc.lastUserID)
	assert.Equal(t, time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC), svc.lastAt.UTC())

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "p1", body["postId"])
}

func TestScheduleHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		req  transfer.ScheduleRequest
		err  error
		want int
	}{
		{"missing post id", transfer.ScheduleRequest{ScheduledAt: "2030-01-02T15:04:05Z"}, nil, fiber.StatusBadRequest},
		{"missing time", transfer.ScheduleRequest{PostID: "p1"}, nil, fiber.StatusBadRequest},
		{"bad time", transfer.ScheduleRequest{PostID: "p1", ScheduledAt: "tomorrow"}, nil, fiber.StatusBadRequest},
		{"in the past", transfer.ScheduleRequest{PostID: "p1", ScheduledAt: "2020-01-02T15:04:05Z"}, service.ErrScheduleInPast, fiber.StatusBadRequest},
		{"not found", transfer.ScheduleRequest{PostID: "p1", ScheduledAt: "2030-01-02T15:04:05Z"}, repository.ErrPostNotFound, fiber.StatusNotFound},
		{"published", transfer.ScheduleRequest{PostID: "p1", ScheduledAt: "2030-01-02T15:04:05Z"}, service.ErrPostNotEditable, fiber.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, token := newTestApp(t, &stubPostService{scheduleErr: tt.err})
			resp := doJSON(t, app, http.MethodPost, "/api/scheduler/schedule", token, tt.req)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCancelHandler(t *testing.T) {
	tests := []struct {
		name string
		req  transfer.CancelRequest
		err  error
		want int
	}{
		{"ok", transfer.CancelRequest{PostID: "p1"}, nil, fiber.StatusOK},
		{"missing post id", transfer.CancelRequest{}, nil, fiber.StatusBadRequest},
		{"not scheduled", transfer.CancelRequest{PostID: "p1"}, service.ErrPostNotScheduled, fiber.StatusNotFound},
		{"already published", transfer.CancelRequest{PostID: "p1"}, service.ErrCancelTooLate, fiber.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, token := newTestApp(t, &stubPostService{cancelErr: tt.err})
			resp := doJSON(t, app, http.MethodPost, "/api/scheduler/cancel", token, tt.req)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestUpcomingHandler(t *testing.T) {
	app, token := newTestApp(t, &stubPostService{})

	resp := doJSON(t, app, http.MethodGet, "/api/scheduler/upcoming", token, nil)

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var posts []models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "u1", posts[0].UserID)
}

func TestCookieAuth(t *testing.T) {
	app, token := newTestApp(t, &stubPostService{})

	req := httptest.NewRequest(http.MethodGet, "/api/scheduler/upcoming", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
