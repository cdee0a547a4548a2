package protocol

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/chatvibe/console/internal/errors"
)

// Timeouts and client identification.
const (
	DefaultRequestTimeout = 15 * time.Second
	ClientVersion         = "1.0.0"
)

// REST paths relative to the profile base URL.
const (
	EndpointServers    = "/servers"
	EndpointMessages   = "/messages"
	EndpointMembership = "/servers/membership/%s/membership"
)

// Outcome is the terminal state of one wrapped request.
type Outcome int

const (
	Success Outcome = iota
	RefreshedRetry
	Failed
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RefreshedRetry:
		return "refreshed_retry"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes one backend call. Body is encoded as JSON when non-nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// Anonymous requests may be sent without a session. They are still
	// authorized when a session exists.
	Anonymous bool
}

// Response is the raw result of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Result is what the wrapper reports for one Request.
type Result struct {
	Outcome  Outcome
	Response *Response
	Err      error

	// RedirectToLogin tells the caller to send the user to the login
	// screen. The wrapper never navigates by itself.
	RedirectToLogin bool

	// Refreshes counts refresh calls made for this request (0 or 1).
	Refreshes int
}

// OK reports whether the request ended in Success or RefreshedRetry.
func (r Result) OK() bool {
	return r.Outcome != Failed
}

// Error returns nil on success. When a redirect is signalled the error also
// matches ErrLoginRequired.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	err := r.Err
	if err == nil {
		err = apperrors.ErrRequestFailed
	}
	if r.RedirectToLogin {
		return fmt.Errorf("%w: %w", apperrors.ErrLoginRequired, err)
	}
	return err
}

// ConnectionStatistics tracks request counters for the client.
type ConnectionStatistics struct {
	TotalRequests      int64         `json:"totalRequests"`
	SuccessfulRequests int64         `json:"successfulRequests"`
	FailedRequests     int64         `json:"failedRequests"`
	Refreshes          int64         `json:"refreshes"`
	ForcedLogouts      int64         `json:"forcedLogouts"`
	AverageLatency     time.Duration `json:"averageLatency"`
	LastRequestTime    time.Time     `json:"lastRequestTime"`
}

// isMemberResponse is the body of the is_member endpoint.
type isMemberResponse struct {
	IsMember bool `json:"is_member"`
}
