package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopsphere/returns-backend/pkg/config"
	pkgerrors "github.com/shopsphere/returns-backend/pkg/errors"
	"github.com/shopsphere/returns-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("logistics base url is required")
	errLoggerRequired  = errors.New("logistics logger is required")
)

// Client calls the pickup collaborator over its REST surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the collaborator client.
func NewClient(cfg config.LogisticsConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiToken:   strings.TrimSpace(cfg.APIToken),
		logger:     logg,
	}, nil
}

type pickupRequest struct {
	ReturnID string `json:"return_id"`
}

type pickupResponse struct {
	AgentRef string `json:"agent_ref"`
}

// RequestPickup asks the collaborator to assign a pickup agent for the return.
// The returned agent reference is opaque to this service.
func (c *Client) RequestPickup(ctx context.Context, returnID uuid.UUID) (string, error) {
	body, err := json.Marshal(pickupRequest{ReturnID: returnID.String()})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding pickup request")
	}

	url := c.baseURL + "/v1/pickups"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building pickup request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	logCtx := c.logger.WithFields(ctx, map[string]any{
		"operation": "request_pickup",
		"return_id": returnID.String(),
	})
	c.logger.Info(logCtx, "logistics request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(logCtx, "logistics request_pickup", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "logistics pickup request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("logistics responded %d", resp.StatusCode)
		c.logger.Error(logCtx, "logistics request_pickup", err)
		return "", pkgerrors.Wrap(domainCodeForStatus(resp.StatusCode), err, "logistics pickup request failed")
	}

	var payload pickupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error(logCtx, "logistics request_pickup", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding pickup response")
	}

	agentRef := strings.TrimSpace(payload.AgentRef)
	if agentRef == "" {
		err := errors.New("missing agent_ref in pickup response")
		c.logger.Error(logCtx, "logistics request_pickup", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "logistics pickup response incomplete")
	}

	c.logger.Info(c.logger.WithField(logCtx, "agent_ref", agentRef), "logistics response")
	return agentRef, nil
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
