package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// APIClient 上游平台 REST 客户端
type APIClient struct {
	baseURL    string
	creds      *CredentialProvider
	httpClient *http.Client
}

// NewAPIClient 创建 REST 客户端
func NewAPIClient(baseURL string, creds *CredentialProvider) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError API 层错误 (errorCode 非空时,无论 HTTP 状态码都算错误)
type APIError struct {
	Code     int
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, strings.Join(e.Messages, "; "))
}

// apiEnvelope 所有 REST 响应的统一外壳
type apiEnvelope struct {
	ErrorCode     *int            `json:"errorCode"`
	ErrorMessages []string        `json:"errorMessages"`
	Payload       json.RawMessage `json:"payload"`
}

// eventsPayload /events 响应的 payload
type eventsPayload struct {
	Events []models.Event `json:"events"`
}

// GetLiveEvents 获取指定运动项目当前的滚球赛事列表
func (c *APIClient) GetLiveEvents(ctx context.Context, sportID int) ([]models.Event, error) {
	params := url.Values{}
	params.Set("sport", fmt.Sprintf("%d", sportID))

	payload, err := c.doGet(ctx, "/events", params)
	if err != nil {
		return nil, err
	}

	var result eventsPayload
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to parse events payload: %w", err)
	}
	return result.Events, nil
}

// GetEventMarkets 获取单个赛事的全部市场组
func (c *APIClient) GetEventMarkets(ctx context.Context, eventID int64) ([]models.MarketGroup, error) {
	params := url.Values{}
	params.Set("gameGroupId", "all")

	payload, err := c.doGet(ctx, fmt.Sprintf("/events/%d/markets", eventID), params)
	if err != nil {
		return nil, err
	}

	var groups []models.MarketGroup
	if err := json.Unmarshal(payload, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse markets payload: %w", err)
	}
	return groups, nil
}

// getPaged 通用分页 GET,供 pre-match 拉取使用
func (c *APIClient) getPaged(ctx context.Context, endpoint string, params url.Values, start, limit int) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("limit", fmt.Sprintf("%d", limit))
	return c.doGet(ctx, endpoint, params)
}

// doGet 带认证的 GET。收到 401 时触发一次合流刷新并用新 token 重试一次,
// 第二次仍失败则把错误抛给调用方,不再重试。
func (c *APIClient) doGet(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	cred, err := c.creds.RefreshIfNeeded(ctx)
	if err != nil {
		return nil, fmt.Errorf("no valid credential: %w", err)
	}

	payload, status, err := c.execute(ctx, endpoint, params, cred.AccessToken)
	if err == nil {
		return payload, nil
	}
	if status != http.StatusUnauthorized {
		return nil, err
	}

	// 401: token 虽未到期但已失效,强制刷新后重试一次
	logger.Printf("[API] Got 401 for %s, refreshing token and retrying...", endpoint)
	cred, refreshErr := c.creds.Refresh(ctx)
	if refreshErr != nil {
		return nil, fmt.Errorf("refresh after 401 failed: %w", refreshErr)
	}

	payload, _, err = c.execute(ctx, endpoint, params, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("retry after refresh failed: %w", err)
	}
	return payload, nil
}

// execute 发起单次请求并解包响应外壳
func (c *APIClient) execute(ctx context.Context, endpoint string, params url.Values, token string) (json.RawMessage, int, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}

	// errorCode 非空表示 API 层错误,与 HTTP 状态码无关
	if envelope.ErrorCode != nil {
		return nil, resp.StatusCode, &APIError{Code: *envelope.ErrorCode, Messages: envelope.ErrorMessages}
	}

	return envelope.Payload, resp.StatusCode, nil
}
