package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
)

// EntityKind names the durable entity classes the oracle understands.
type EntityKind string

const (
	EntityProject  EntityKind = "project"
	EntityScene    EntityKind = "scene"
	EntityImage    EntityKind = "image"
	EntityChannel  EntityKind = "channel"
	EntityWorkTask EntityKind = "work-task"
)

// ImageContext places an image inside the project hierarchy.
type ImageContext struct {
	SceneID   uuid.UUID `json:"sceneId"`
	ProjectID uuid.UUID `json:"projectId"`
}

// MembershipOracle answers whether an identity may access a durable entity
// and resolves the topic hierarchy (image -> scene -> project). Answers are
// never cached beyond a single decision; membership can change between joins.
type MembershipOracle interface {
	IsMember(ctx context.Context, userID uuid.UUID, kind EntityKind, entityID uuid.UUID) (bool, error)
	ResolveImage(ctx context.Context, imageID uuid.UUID) (*ImageContext, error)
	ResolveScene(ctx context.Context, sceneID uuid.UUID) (uuid.UUID, error)
}

// MembershipClient queries project-service over its internal API.
type MembershipClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewMembershipClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *MembershipClient {
	return &MembershipClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

var _ MembershipOracle = (*MembershipClient)(nil)

// IsMember returns false (not an error) when the entity does not exist;
// a join on a deleted scene is an access denial, not a registry failure.
func (c *MembershipClient) IsMember(ctx context.Context, userID uuid.UUID, kind EntityKind, entityID uuid.UUID) (bool, error) {
	url := fmt.Sprintf("%s/api/internal/membership/%s/%s/users/%s", c.baseURL, kind, entityID, userID)

	var result struct {
		IsMember bool `json:"isMember"`
	}
	if err := c.getJSON(ctx, url, &result); err != nil {
		if err == errNotFound {
			return false, nil
		}
		return false, err
	}
	return result.IsMember, nil
}

func (c *MembershipClient) ResolveImage(ctx context.Context, imageID uuid.UUID) (*ImageContext, error) {
	url := fmt.Sprintf("%s/api/internal/images/%s/context", c.baseURL, imageID)

	var result ImageContext
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *MembershipClient) ResolveScene(ctx context.Context, sceneID uuid.UUID) (uuid.UUID, error) {
	url := fmt.Sprintf("%s/api/internal/scenes/%s/context", c.baseURL, sceneID)

	var result struct {
		ProjectID uuid.UUID `json:"projectId"`
	}
	if err := c.getJSON(ctx, url, &result); err != nil {
		return uuid.Nil, err
	}
	return result.ProjectID, nil
}

var errNotFound = fmt.Errorf("entity not found")

func (c *MembershipClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordExternalAPICall("project", http.MethodGet, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("membership query failed: status=%d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
