package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const webhookAttempts = 3

// webhook posts JSON payloads for one chat channel. 429 and 5xx replies are
// retried with a short exponential backoff; other failures are returned as-is.
type webhook struct {
	name   string
	client *http.Client
	// initial is the first retry interval.
	initial time.Duration
}

func newWebhook(name string) webhook {
	return webhook{
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		initial: 500 * time.Millisecond,
	}
}

func (w webhook) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", w.name, err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: create request: %w", w.name, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: send request: %w", w.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("%s: unexpected status %d: %s", w.name, resp.StatusCode, bytes.TrimSpace(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.initial
	exp.MaxInterval = 4 * w.initial
	b := backoff.WithContext(backoff.WithMaxRetries(exp, webhookAttempts-1), ctx)
	return backoff.Retry(op, b)
}
