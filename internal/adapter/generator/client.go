// Package generator provides the HTTP client for the downstream plan generators.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/retry"
	"github.com/xiaot623/gogo/coach/policy"
)

var (
	// ErrMalformedResponse means the generator answered with something that is
	// not a valid envelope.
	ErrMalformedResponse = errors.New("malformed generator response")
	// ErrGenerationFailed means the generator reported a non-retryable failure.
	ErrGenerationFailed = errors.New("generation failed")
)

const maxResponseBytes = 4 << 20

// Client invokes one generation service.
type Client struct {
	service    domain.ServiceID
	endpoint   string
	httpClient *http.Client
	classifier policy.Classifier
}

// NewClient creates a new generator client for service at endpoint.
func NewClient(service domain.ServiceID, endpoint string, timeout time.Duration, classifier policy.Classifier) *Client {
	return &Client{
		service:  service,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		classifier: classifier,
	}
}

// Service returns the service this client talks to.
func (c *Client) Service() domain.ServiceID {
	return c.service
}

// rawEnvelope accepts both the wrapped {statusCode, body} form and a bare body.
type rawEnvelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      json.RawMessage `json:"error"`
}

type rawBody struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// Generate performs a single call and returns the generator's data unchanged.
// Errors that deserve another attempt are wrapped with retry.Retryable.
func (c *Client) Generate(ctx context.Context, req domain.GeneratorRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if rid := RequestIDFromContext(ctx); rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s generator call aborted: %w", c.service, ctxErr)
		}
		return nil, retry.Retryablef("%s generator connection error: %w", c.service, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, retry.Retryablef("%s generator read error: %w", c.service, err)
	}

	return c.interpret(ctx, resp.StatusCode, payload)
}

// interpret turns a raw response into data or a classified error.
func (c *Client) interpret(ctx context.Context, httpStatus int, payload []byte) (json.RawMessage, error) {
	if isRetryableStatus(httpStatus) {
		return nil, retry.Retryablef("%s generator returned HTTP %d", c.service, httpStatus)
	}

	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		if httpStatus < 200 || httpStatus >= 300 {
			return nil, fmt.Errorf("%w: %s generator returned status %d", ErrGenerationFailed, c.service, httpStatus)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, c.service, err)
	}

	status := httpStatus
	body := rawBody{Success: env.Success, Data: env.Data, Error: env.Error}
	if env.StatusCode != nil {
		status = *env.StatusCode
		if isRetryableStatus(status) {
			return nil, retry.Retryablef("%s generator returned status %d", c.service, status)
		}
		if status == http.StatusOK || len(env.Body) > 0 {
			decoded, err := decodeBody(env.Body)
			if err != nil {
				if status != http.StatusOK {
					return nil, fmt.Errorf("%w: %s generator returned status %d", ErrGenerationFailed, c.service, status)
				}
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, c.service, err)
			}
			body = decoded
		}
	}

	if status < 200 || status >= 300 {
		msg := errorText(body.Error)
		if msg == "" {
			return nil, fmt.Errorf("%w: %s generator returned status %d", ErrGenerationFailed, c.service, status)
		}
		return nil, c.classify(ctx, status, msg)
	}

	if body.Success == nil {
		return nil, fmt.Errorf("%w: %s: missing success flag", ErrMalformedResponse, c.service)
	}
	if !*body.Success {
		msg := errorText(body.Error)
		if msg == "" {
			msg = fmt.Sprintf("unknown %s generation error", c.service)
		}
		return nil, c.classify(ctx, status, msg)
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return nil, fmt.Errorf("%w: %s: success without data", ErrMalformedResponse, c.service)
	}
	return body.Data, nil
}

// classify asks the policy whether an application-level error is retryable.
func (c *Client) classify(ctx context.Context, status int, msg string) error {
	retryable := false
	if c.classifier != nil {
		ok, err := c.classifier.IsRetryable(ctx, c.service, status, msg)
		if err != nil {
			return fmt.Errorf("%w: %s: %s (classification failed: %v)", ErrGenerationFailed, c.service, msg, err)
		}
		retryable = ok
	}
	if retryable {
		return retry.Retryablef("retryable %s error: %s", c.service, msg)
	}
	return fmt.Errorf("%w: %s: %s", ErrGenerationFailed, c.service, msg)
}

// Run calls Generate under the retry policy and folds the result into an outcome.
func (c *Client) Run(ctx context.Context, req domain.GeneratorRequest, cfg retry.Config, logger zerolog.Logger) domain.GenerationOutcome {
	var data json.RawMessage
	attempts, err := retry.Do(ctx, string(c.service), cfg, logger, func(ctx context.Context, attempt int) error {
		out, err := c.Generate(ctx, req)
		if err != nil {
			return err
		}
		data = out
		return nil
	})
	if err == nil {
		return domain.Succeeded(c.service, data, attempts)
	}

	if retry.IsRetryable(err) || errors.Is(err, retry.ErrCancelled) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Failed(c.service, domain.UnavailableCode(c.service), err.Error(), attempts)
	}
	return domain.Failed(c.service, domain.CodeGenerationFailed, err.Error(), attempts)
}

// Ping checks that the generator endpoint accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s generator returned status %d", c.service, resp.StatusCode)
	}
	return nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeBody reads an envelope body that is either an object or a JSON string.
func decodeBody(raw json.RawMessage) (rawBody, error) {
	var body rawBody
	if len(raw) == 0 {
		return body, fmt.Errorf("missing body")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return body, err
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return body, err
	}
	return body, nil
}

// errorText extracts a message from an error that is a string or {code,message}.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Code != "" || obj.Message != "") {
		return strings.TrimSpace(obj.Code + " " + obj.Message)
	}
	return string(raw)
}

type requestIDKey struct{}

// WithRequestID stores the correlation id forwarded to generators.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the correlation id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
