// Package issuer fetches bearer credentials from an HTTP issuing endpoint.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"lasagna"
	"lasagna/internal/logging"
)

const (
	defaultRetryInterval = 500 * time.Millisecond
	defaultMaxInterval   = 10 * time.Second
	defaultMaxElapsed    = 30 * time.Second
)

type Client struct {
	HTTP        *http.Client
	URL         string
	BearerToken string
	Logger      *logging.Logger

	// RetryInterval is the first backoff delay. MaxElapsed bounds the whole
	// fetch including retries. MaxTries of zero means no attempt limit.
	RetryInterval time.Duration
	MaxElapsed    time.Duration
	MaxTries      uint
}

type fetchRequest struct {
	Kind   string         `json:"kind"`
	Topic  string         `json:"topic,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

type fetchResponse struct {
	Token string `json:"token"`
}

// Fetch asks the issuer for a credential matching req. Transient failures are
// retried with exponential backoff; client errors other than 408 and 429 end
// the fetch at once.
func (c Client) Fetch(ctx context.Context, req lasagna.CredentialRequest) (string, error) {
	if strings.TrimSpace(c.URL) == "" {
		return "", ErrNoURL
	}
	body, err := json.Marshal(fetchRequest{
		Kind:   req.Kind.String(),
		Topic:  req.Topic,
		Params: req.Params.Without(lasagna.CredentialKey),
	})
	if err != nil {
		return "", fmt.Errorf("encode issuer request: %w", err)
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = orDefault(c.RetryInterval, defaultRetryInterval)
	retry.MaxInterval = defaultMaxInterval
	retry.Reset()

	opts := []backoff.RetryOption{
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(orDefault(c.MaxElapsed, defaultMaxElapsed)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.Logger.Debug("retrying credential fetch",
				logging.Field("kind", req.Kind.String()),
				logging.Field("error", err),
				logging.Field("next_retry", next.String()),
			)
		}),
	}
	if c.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(c.MaxTries))
	}

	token, err := backoff.Retry(ctx, func() (string, error) {
		return c.fetchOnce(ctx, body)
	}, opts...)
	if err != nil {
		return "", err
	}
	c.Logger.Debug("credential issued",
		logging.Field("kind", req.Kind.String()),
		logging.Field("topic", req.Topic),
	)
	return token, nil
}

func (c Client) fetchOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		c.Logger.Warn("credential request failed",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatPayload(data)),
		)
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if isPermanentStatus(resp.StatusCode) {
			return "", backoff.Permanent(statusErr)
		}
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return "", backoff.RetryAfter(secs)
		}
		return "", statusErr
	}

	var out fetchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("invalid issuer response: %w", err))
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", backoff.Permanent(ErrMissingToken)
	}
	return token, nil
}

// Accessor adapts c for lasagna.New.
func (c Client) Accessor() lasagna.CredentialAccessor {
	return c.Fetch
}

func (c Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
