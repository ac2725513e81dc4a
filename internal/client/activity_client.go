package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
)

// ActivityEvent is one row in a project's activity feed.
type ActivityEvent struct {
	EntityID    uuid.UUID              `json:"entityId"`
	ActorID     uuid.UUID              `json:"actorId"`
	ActionType  string                 `json:"actionType"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt  string                 `json:"occurredAt,omitempty"`
}

// ActivitySink records activity feed entries. Calls are fire-and-forget:
// failures are logged and swallowed, never surfaced to the routing path.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent)
}

type activityClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewActivityClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) ActivitySink {
	return &activityClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

func (c *activityClient) Record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	jsonBody, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to marshal activity event",
			zap.String("action_type", event.ActionType),
			zap.Error(err))
		return
	}

	url := fmt.Sprintf("%s/api/internal/activities", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		c.logger.Error("failed to create activity request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordExternalAPICall("activity", http.MethodPost, time.Since(start), err)
	if err != nil {
		// Graceful degradation: the feed misses an entry, the broadcast
		// already happened.
		c.logger.Warn("failed to record activity",
			zap.String("action_type", event.ActionType),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("activity service rejected event",
			zap.String("action_type", event.ActionType),
			zap.Int("status", resp.StatusCode))
	}
}
