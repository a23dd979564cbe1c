// Package eagle talks to the Eagle service REST API: topology entity queries
// and application metadata.
package eagle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/hamed0406/topologycheck/internal/config"
	"github.com/hamed0406/topologycheck/internal/domain"
	"github.com/hamed0406/topologycheck/internal/probe"
)

const (
	entitiesPath = "/rest/entities"
	appPath      = "/rest/apps/{appId}"

	// queryPageSize matches what the topology app itself asks for; a group-by
	// on @site returns at most one row per site.
	queryPageSize = "10"
)

var (
	ErrRequestFailed     = errors.New("eagle: request failed")
	ErrMalformedResponse = errors.New("eagle: malformed response")
)

type Client struct {
	client *req.Client
	appID  string

	closeOnce sync.Once
}

var _ probe.Client = (*Client)(nil)

// New builds a client for cfg. The read timeout applies to every request.
func New(cfg config.ProbeConfig) (*Client, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("eagle: invalid endpoint %q:%d", cfg.Host, cfg.Port)
	}
	c := req.C().
		SetBaseURL(cfg.BaseURL()).
		SetTimeout(cfg.ReadTimeout).
		SetUserAgent("topologycheck").
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if cfg.Username != "" {
		c.SetCommonBasicAuth(cfg.Username, cfg.Password)
	}
	return &Client{client: c, appID: cfg.AppID}, nil
}

// Dial satisfies probe.Dialer.
func Dial(cfg config.ProbeConfig) (probe.Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Query builds the aggregation query for the newest lastUpdateTime of service at site.
func Query(service, site string) string {
	return fmt.Sprintf(`%s[@site="%s"]<@site>{max(lastUpdateTime)}`, service, site)
}

func (c *Client) MaxTimestamp(ctx context.Context, service, site string) (int64, bool, error) {
	var out entitiesResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("query", Query(service, site)).
		SetQueryParam("pageSize", queryPageSize).
		SetSuccessResult(&out).
		Get(entitiesPath)
	if err := handleAPIError(resp, err, "query "+service); err != nil {
		return 0, false, err
	}
	if !out.Success {
		return 0, false, fmt.Errorf("%w: query %s: %s", ErrRequestFailed, service, out.Exception)
	}
	if len(out.Obj) == 0 {
		return 0, false, nil
	}
	if len(out.Obj[0].Value) == 0 {
		return 0, false, fmt.Errorf("%w: query %s: group has no value", ErrMalformedResponse, service)
	}
	return int64(out.Obj[0].Value[0]), true, nil
}

func (c *Client) RunStatus(ctx context.Context) (domain.RunStatus, error) {
	var out appResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("appId", c.appID).
		SetSuccessResult(&out).
		Get(appPath)
	if err := handleAPIError(resp, err, "application "+c.appID); err != nil {
		return domain.StatusUnknown, err
	}
	if !out.Success {
		return domain.StatusUnknown, fmt.Errorf("%w: application %s: %s", ErrRequestFailed, c.appID, out.Message)
	}
	if out.Data == nil || out.Data.Status == "" {
		return domain.StatusUnknown, fmt.Errorf("%w: application %s has no status", ErrMalformedResponse, c.appID)
	}
	return out.Data.Status, nil
}

// Close drops idle connections. Later calls are no-ops.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.client.GetClient().CloseIdleConnections()
	})
	return nil
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, operation, requestErr)
	}
	if resp.IsErrorState() {
		return fmt.Errorf("%w: %s: %s %s", ErrRequestFailed, operation, resp.Status, resp.String())
	}
	return nil
}
