package gemini

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"golang.org/x/net/context"
)

var (
	// ErrTimeout means the endpoint did not answer within the request
	// timeout.
	ErrTimeout = errors.New("completion request timed out")
	// ErrUnreachable means the request never got a response, e.g. DNS
	// failure or connection refused.
	ErrUnreachable = errors.New("failed to reach completion endpoint")
)

// ResponseError is a non-2xx answer from the endpoint. Body is kept
// since it often holds a machine-readable error worth showing.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %v: %v", e.StatusCode, e.Body)
}

const DefaultTimeout = 30 * time.Second

// Client posts completion requests. One synchronous request at a time,
// no retries; retry policy belongs to the caller.
type Client struct {
	apiKey string
	client *http.Client
	debug  bool
}

func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		debug:  misc.Truthy(os.Getenv("DEBUG")),
	}
}

// RequestURL builds the generateContent endpoint for model. The API key
// is appended as a query parameter by Send, not here, so the URL stays
// safe to log.
func RequestURL(baseURL, model string) string {
	return fmt.Sprintf("%v/%v:generateContent", strings.TrimSuffix(baseURL, "/"), model)
}

func (c *Client) Send(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	if c.debug {
		ancli.PrintOK(fmt.Sprintf("sending request to '%v', body (on new line):\n%v\n", url, string(body)))
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &ResponseError{
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
