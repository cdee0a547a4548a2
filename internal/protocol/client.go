// Package protocol implements HTTP communication with the chat backend. The
// Client wraps every call in the authenticated request flow: attempt,
// refresh on 401/403, replay once, and signal a redirect to login when the
// session cannot be recovered.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"github.com/google/uuid"
)

// Client implements interfaces.ChatAPI on top of Do.
type Client struct {
	httpClient *http.Client
	session    interfaces.SessionManager
	baseURL    *url.URL
	userAgent  string
	stats      ConnectionStatistics
	mutex      sync.RWMutex
	logger     *logging.Logger
}

// NewClient creates a client for baseURL sharing the session's cookie jar.
func NewClient(baseURL string, session interfaces.SessionManager) (*Client, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	httpClient := &http.Client{
		Timeout: DefaultRequestTimeout,
		Jar:     session.Jar(),
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}

	return &Client{
		httpClient: httpClient,
		session:    session,
		baseURL:    base,
		userAgent:  fmt.Sprintf("chatvibe-console/%s", ClientVersion),
		logger:     logging.GetAPILogger(),
	}, nil
}

// Do runs the authenticated request flow for req.
func (c *Client) Do(ctx context.Context, req *Request) Result {
	if !req.Anonymous && !c.session.LoggedIn() {
		c.logger.Debug("Rejected request without session", "path", req.Path)
		return Result{
			Outcome:         Failed,
			Err:             fmt.Errorf("%s %s: %w", req.Method, req.Path, apperrors.ErrUnauthorized),
			RedirectToLogin: true,
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	if apperrors.IsAuthStatus(resp.StatusCode) {
		if !c.session.LoggedIn() {
			return Result{Outcome: Failed, Response: resp, Err: statusError(req, resp)}
		}
		return c.refreshAndReplay(ctx, req, resp)
	}

	if resp.StatusCode >= 400 {
		return Result{Outcome: Failed, Response: resp, Err: statusError(req, resp)}
	}
	return Result{Outcome: Success, Response: resp}
}

// refreshAndReplay performs the single refresh allowed per call and replays
// the original request with the new credential.
func (c *Client) refreshAndReplay(ctx context.Context, req *Request, first *Response) Result {
	c.logger.Info("Access rejected, refreshing", "path", req.Path, "status_code", first.StatusCode)
	c.countRefresh()

	if err := c.session.Refresh(ctx); err != nil {
		c.logger.Warn("Refresh failed, ending session", "path", req.Path, "error", err.Error())
		c.session.Logout()
		c.countForcedLogout()
		return Result{
			Outcome:         Failed,
			Response:        first,
			Err:             err,
			RedirectToLogin: true,
			Refreshes:       1,
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return Result{Outcome: Failed, Err: err, Refreshes: 1}
	}
	if resp.StatusCode >= 400 {
		return Result{Outcome: Failed, Response: resp, Err: statusError(req, resp), Refreshes: 1}
	}
	return Result{Outcome: RefreshedRetry, Response: resp, Refreshes: 1}
}

// send builds and executes one HTTP exchange. A fresh request is built each
// time so a replay carries the current credential.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	ctx = logging.ContextWithRequestID(ctx, uuid.NewString())
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.updateRequestStatistics(duration, false)
		return nil, fmt.Errorf("%s %s: %w: %v", req.Method, req.Path, apperrors.ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.updateRequestStatistics(duration, false)
		return nil, fmt.Errorf("%s %s: %w: reading body: %v", req.Method, req.Path, apperrors.ErrNetwork, err)
	}

	c.updateRequestStatistics(duration, httpResp.StatusCode < 400)
	c.logger.WithContext(ctx).LogHTTPRequest(req.Method, req.Path, httpResp.StatusCode, duration)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := c.baseURL.String() + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	c.setStandardHeaders(httpReq)
	if id, ok := logging.RequestID(ctx); ok {
		httpReq.Header.Set("X-Request-ID", id)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.session.AuthorizeHeader(httpReq.Header)

	return httpReq, nil
}

// setStandardHeaders sets common headers for all requests
func (c *Client) setStandardHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
}

// statusError builds a StatusError using the backend's detail message.
func statusError(req *Request, resp *Response) error {
	return fmt.Errorf("%s %s: %w", req.Method, req.Path,
		apperrors.NewStatusError(resp.StatusCode, errorDetail(resp.Body)))
}

// errorDetail extracts "detail" or "error" from a backend error body.
func errorDetail(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error"} {
		if s, ok := payload[key].(string); ok {
			return s
		}
	}
	return ""
}

// updateRequestStatistics updates request statistics for monitoring
func (c *Client) updateRequestStatistics(responseTime time.Duration, success bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := &c.stats
	stats.TotalRequests++
	stats.LastRequestTime = time.Now()

	if success {
		stats.SuccessfulRequests++
	} else {
		stats.FailedRequests++
	}

	// Moving average of response time
	if stats.TotalRequests == 1 {
		stats.AverageLatency = responseTime
	} else {
		stats.AverageLatency = time.Duration(
			(int64(stats.AverageLatency)*9 + int64(responseTime)) / 10,
		)
	}
}

func (c *Client) countRefresh() {
	c.mutex.Lock()
	c.stats.Refreshes++
	c.mutex.Unlock()
}

func (c *Client) countForcedLogout() {
	c.mutex.Lock()
	c.stats.ForcedLogouts++
	c.mutex.Unlock()
}

// Statistics returns a copy of the request counters.
func (c *Client) Statistics() ConnectionStatistics {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
