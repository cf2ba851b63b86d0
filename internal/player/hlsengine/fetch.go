// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hlsengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/player"
)

const tracerName = "github.com/ManuGH/overlaycast/internal/player/hlsengine"

// statusError is a non-2xx upstream response.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= http.StatusInternalServerError || se.status == http.StatusTooManyRequests
	}
	return true
}

// fetch downloads rawURL with bounded retries. Every failed attempt that
// will be retried is reported as a non-fatal network error carrying details.
// The final error is returned to the caller, which decides fatality.
func (e *Engine) fetch(ctx context.Context, rawURL, resource, details string) ([]byte, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "hlsengine.fetch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("hls.resource", resource))
	defer span.End()

	maxAttempts := e.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := e.get(ctx, rawURL)
		metrics.ObserveEngineFetch(resource, err == nil, len(body), time.Since(start))
		if err == nil {
			span.SetAttributes(attribute.Int("hls.attempts", attempt))
			span.SetStatus(codes.Ok, "")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == maxAttempts || !retryable(err) {
			break
		}

		metrics.IncEngineRetry(resource)
		e.reportError(ctx, player.EngineNetworkError, details, false, err)
		if err := sleepWithContext(ctx, e.backoffFor(attempt-1)); err != nil {
			return nil, err
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func (e *Engine) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

func (e *Engine) backoffFor(attempt int) time.Duration {
	wait := e.cfg.Backoff * time.Duration(1<<attempt)
	if wait > e.cfg.MaxBackoff {
		wait = e.cfg.MaxBackoff
	}
	return wait
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
