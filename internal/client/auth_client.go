package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// IdentityResolver turns a raw token into an authenticated identity.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.Identity, error)
}

// AuthClient resolves tokens against auth-service, falling back to local
// JWT validation when the service is unreachable. User profile fields come
// from user-service; a resolution without profile data still succeeds with
// just the user id.
type AuthClient struct {
	authBaseURL string
	userBaseURL string
	secretKey   string
	httpClient  *http.Client
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewAuthClient(authBaseURL, userBaseURL, secretKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *AuthClient {
	return &AuthClient{
		authBaseURL: authBaseURL,
		userBaseURL: userBaseURL,
		secretKey:   secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

var _ IdentityResolver = (*AuthClient)(nil)

func (c *AuthClient) ResolveToken(ctx context.Context, token string) (*model.Identity, error) {
	userID, err := c.validateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{UserID: userID}

	// Profile enrichment is best-effort; a missing nickname never blocks
	// the handshake.
	if info, err := c.getUserInfo(ctx, userID, token); err != nil {
		c.logger.Warn("failed to fetch user info for identity",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	} else {
		identity.Nickname = info.Nickname
		identity.ProfileImageURL = info.ProfileImageURL
		identity.IsAdmin = info.IsAdmin
	}

	return identity, nil
}

func (c *AuthClient) validateToken(ctx context.Context, token string) (uuid.UUID, error) {
	if c.authBaseURL != "" {
		userID, err := c.validateWithAuthService(ctx, token)
		if err == nil {
			return userID, nil
		}
		c.logger.Debug("auth service validation failed, falling back to local", zap.Error(err))
	}
	return c.validateLocally(token)
}

func (c *AuthClient) validateWithAuthService(ctx context.Context, token string) (uuid.UUID, error) {
	url := c.authBaseURL + "/api/auth/validate"

	reqBody, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordExternalAPICall("auth", http.MethodPost, time.Since(start), err)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	var result struct {
		UserID string `json:"userId"`
		Valid  bool   `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	return uuid.Parse(result.UserID)
}

func (c *AuthClient) validateLocally(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(c.secretKey), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	var userIDStr string
	for _, key := range []string{"sub", "userId", "user_id"} {
		if val, exists := claims[key]; exists {
			if s, ok := val.(string); ok {
				userIDStr = s
				break
			}
		}
	}
	if userIDStr == "" {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	return uuid.Parse(userIDStr)
}

type userInfo struct {
	UserID          string `json:"userId"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	IsAdmin         bool   `json:"isAdmin"`
}

func (c *AuthClient) getUserInfo(ctx context.Context, userID uuid.UUID, token string) (*userInfo, error) {
	url := fmt.Sprintf("%s/users/%s", c.userBaseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordExternalAPICall("user", http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user info failed: status=%d", resp.StatusCode)
	}

	var result userInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
