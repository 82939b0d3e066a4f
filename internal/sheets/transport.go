package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrutin/internal/auth"
	"scrutin/internal/logging"
	"scrutin/internal/services"
)

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.cfg.BaseURL + "/spreadsheets/" + url.PathEscape(c.cfg.SpreadsheetID) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func valuesPath(a1 string) string {
	return "/values/" + url.PathEscape(a1)
}

// do issues one logical call with retries. out, when non-nil, receives the
// decoded JSON response.
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return services.Wrap(services.ErrRemoteClient, "sheets", op, "encode body", err)
		}
		body = encoded
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		err := c.doOnce(ctx, op, method, endpoint, body, out, requestID)
		c.logger.Debug("store request",
			logging.String("op", op),
			logging.Int("attempt", attempt),
			logging.Duration("latency", time.Since(started)),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Bool("ok", err == nil),
		)
		if err == nil {
			return nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return err
		}
		logging.WarnWithContext(c.logger, "store request failed; retrying", "store_retry",
			logging.String("op", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "store is rate limiting or unavailable"),
			logging.String(logging.FieldImpact, "request delayed"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, op, method, endpoint string, body []byte, out any, requestID string) error {
	if refresher, ok := c.tokens.(auth.Refresher); ok {
		if err := refresher.Refresh(ctx); err != nil {
			return services.Wrap(services.ErrAuthenticationRequired, "sheets", op, "refresh credential", err)
		}
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return services.Wrap(services.ErrAuthenticationRequired, "sheets", op, "obtain credential", err)
	}
	if strings.TrimSpace(token) == "" {
		return services.Wrap(services.ErrAuthenticationRequired, "sheets", op, "no access token", nil)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return services.Wrap(services.ErrRemoteClient, "sheets", op, "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "sheets", op, "http error", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "sheets", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
			RetryAfter: retryAfter,
		}
		return services.Wrap(statusMarker(resp.StatusCode), "sheets", op, "", statusErr)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return services.Wrap(services.ErrRemoteClient, "sheets", op, "decode response", err)
	}
	return nil
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if !services.Retryable(err) {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return c.capDelay(statusErr.RetryAfter), true
	}
	return c.jitter(c.backoffDelay(attempt)), true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if c.retryMaxDelay > 0 && delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
