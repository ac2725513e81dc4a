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

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationCommentAdded     NotificationType = "COMMENT_ADDED"
	NotificationCommentMentioned NotificationType = "COMMENT_MENTIONED"
	NotificationAnnotationAdded  NotificationType = "ANNOTATION_ADDED"
	NotificationImageUploaded    NotificationType = "IMAGE_UPLOADED"
	NotificationSceneChanged     NotificationType = "SCENE_CHANGED"
	NotificationChannelInvite    NotificationType = "CHANNEL_INVITE"
	NotificationFriendRequest    NotificationType = "FRIEND_REQUEST"
	NotificationDirectMessage    NotificationType = "DIRECT_MESSAGE"
)

// NotificationEvent represents a notification to be delivered out-of-band
// (push, email digest) by noti-service.
type NotificationEvent struct {
	Type         NotificationType       `json:"type"`
	ActorID      uuid.UUID              `json:"actorId"`
	TargetUserID uuid.UUID              `json:"targetUserId,omitempty"`
	// When set, noti-service fans out to every participant of the entity
	// instead of a single target user.
	ResourceType string                 `json:"resourceType,omitempty"`
	ResourceID   uuid.UUID              `json:"resourceId,omitempty"`
	Title        string                 `json:"title"`
	Body         string                 `json:"body,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt   string                 `json:"occurredAt,omitempty"`
}

// NotificationSink creates notifications. Fire-and-forget: errors are
// logged and swallowed so delivery never blocks the broadcast path.
type NotificationSink interface {
	Notify(ctx context.Context, event NotificationEvent)
}

type notificationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewNotificationClient creates a new noti-service client.
func NewNotificationClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) NotificationSink {
	return &notificationClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

func (c *notificationClient) Notify(ctx context.Context, event NotificationEvent) {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	jsonBody, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to marshal notification event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return
	}

	url := fmt.Sprintf("%s/api/internal/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		c.logger.Error("failed to create notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordExternalAPICall("noti", http.MethodPost, time.Since(start), err)
	if err != nil {
		c.logger.Warn("failed to send notification",
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("notification service rejected event",
			zap.String("type", string(event.Type)),
			zap.Int("status", resp.StatusCode))
	}
}
