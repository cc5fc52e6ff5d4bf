package retry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
)

//go:generate mockgen -destination=mock_doer.go -package=retry github.com/preston-bernstein/pacs-bridge/internal/retry Doer

const errorBodyLimit = 512

// Doer is the subset of *http.Client the requester needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options carries per-request settings. Body is a byte slice so it can be
// replayed on every attempt.
type Options struct {
	Header http.Header
	Query  url.Values
	Body   []byte
	// Target labels metrics and logs, e.g. "pacs" or "events".
	Target string
}

// Requester performs HTTP calls with bounded exponential backoff. Transport
// failures and 5xx responses are retried; any other non-2xx status stops
// immediately.
type Requester struct {
	client  Doer
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Recorder
	timer   backoff.Timer
}

// New builds a Requester. A nil client uses a default *http.Client and an
// invalid policy falls back to DefaultPolicy.
func New(client Doer, policy Policy, logger *slog.Logger, recorder *metrics.Recorder) *Requester {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy.Validate() != nil {
		policy = DefaultPolicy()
	}
	return &Requester{client: client, policy: policy, logger: logger, metrics: recorder}
}

// Policy returns the retry policy in use.
func (r *Requester) Policy() Policy {
	return r.policy
}

// Do sends the request. A nil response always comes with a non-nil error:
// *StatusError for non-retryable statuses, ErrRetriesExhausted when every
// attempt failed transiently, or the context error on cancellation. On
// success the caller owns the response body.
func (r *Requester) Do(ctx context.Context, method, rawURL string, opts Options) (*http.Response, error) {
	logger := logging.FromContext(ctx, r.logger)
	target := opts.Target
	if target == "" {
		target = "request"
	}

	var (
		resp     *http.Response
		attempts int
		buildErr error
	)
	op := func() error {
		attempts++
		req, err := buildRequest(ctx, method, rawURL, opts)
		if err != nil {
			buildErr = err
			return backoff.Permanent(err)
		}

		start := time.Now()
		res, err := r.client.Do(req)
		if err != nil {
			r.metrics.RecordRequestAttempt(target, time.Since(start), err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return err
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			r.metrics.RecordRequestAttempt(target, time.Since(start), nil)
			resp = res
			return nil
		}

		statusErr := &StatusError{URL: rawURL, StatusCode: res.StatusCode, Body: drain(res.Body)}
		r.metrics.RecordRequestAttempt(target, time.Since(start), statusErr)
		if statusErr.Transient() {
			return statusErr
		}
		logging.Error(logger, "unrecoverable response, not retrying", statusErr,
			slog.String(logging.FieldTarget, target),
			slog.String(logging.FieldURL, rawURL),
			slog.Int(logging.FieldStatusCode, res.StatusCode),
		)
		return backoff.Permanent(statusErr)
	}

	notify := func(err error, wait time.Duration) {
		logging.Warn(logger, "request failed, backing off",
			slog.String(logging.FieldTarget, target),
			slog.String(logging.FieldURL, rawURL),
			slog.Int(logging.FieldAttempt, attempts),
			slog.Int(logging.FieldStatusCode, StatusCode(err)),
			slog.Duration("wait", wait),
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.policy.newBackOff(), uint64(r.policy.MaxAttempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, b, notify, r.timer)
	if err == nil {
		logging.Debug(logger, "request completed",
			slog.String(logging.FieldTarget, target),
			slog.String(logging.FieldURL, rawURL),
			slog.Int(logging.FieldAttempt, attempts),
		)
		return resp, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if statusErr, ok := AsStatusError(err); ok && !statusErr.Transient() {
		return nil, err
	}
	if buildErr != nil {
		return nil, fmt.Errorf("build request: %w", buildErr)
	}

	logging.Error(logger, "giving up on request", err,
		slog.String(logging.FieldTarget, target),
		slog.String(logging.FieldURL, rawURL),
		slog.Int(logging.FieldAttempt, attempts),
	)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

func buildRequest(ctx context.Context, method, rawURL string, opts Options) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(opts.Query) > 0 {
		q := req.URL.Query()
		for key, values := range opts.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	return req, nil
}

func drain(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	_, _ = io.Copy(io.Discard, body)
	return strings.TrimSpace(string(snippet))
}
