package history_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/service/auth_service"
)

const (
	DefaultPathTemplate = "/api/chat/{kind}/{id}/messages/"

	// Default timeout
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 64 << 20
)

// Config REST collaborator configuration
type Config struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`           // http(s):// base of the REST API
	PathTemplate string        `yaml:"path_template" json:"path_template"` // {kind} and {id} are substituted
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// Client fetches conversation history over REST. Each fetch is a single
// attempt; callers decide what to do on failure.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	pathTemplate string
}

// NewClient creates a history client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pathTemplate := config.PathTemplate
	if pathTemplate == "" {
		pathTemplate = DefaultPathTemplate
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		pathTemplate: pathTemplate,
	}
}

// historyPage is the paginated response form; the plain form is a bare array.
type historyPage struct {
	Messages []models.Message `json:"messages"`
	Results  []models.Message `json:"results"`
}

// FetchHistory retrieves the message history of key. The credential is sent
// as a bearer token.
func (c *Client) FetchHistory(ctx context.Context, key models.ConversationKey, credential string) ([]models.Message, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + strings.NewReplacer(
		"{kind}", url.PathEscape(string(key.Kind)),
		"{id}", url.PathEscape(key.ID.String()),
	).Replace(c.pathTemplate)

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := auth_service.StripBearer(credential); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Send request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Read response
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return parseHistory(body)
}

func parseHistory(body []byte) ([]models.Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return []models.Message{}, nil
	}

	if body[0] == '[' {
		var list []models.Message
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return list, nil
	}

	var page historyPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if page.Messages != nil {
		return page.Messages, nil
	}
	if page.Results != nil {
		return page.Results, nil
	}
	return []models.Message{}, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
