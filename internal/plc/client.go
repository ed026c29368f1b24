// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

// Package plc talks to the external identity directory. After a store is
// rebuilt the directory must learn the new signing key, otherwise writes
// signed with it will not verify anywhere else. All calls go through a
// circuit breaker so a slow or down directory cannot stall recovery.
package plc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/actorvault/actorvault/internal/identity"
	"github.com/actorvault/actorvault/internal/logging"
	"github.com/actorvault/actorvault/internal/metrics"
)

const (
	opUpdateSigningKey = "update_signing_key"

	breakerName    = "plc-directory"
	defaultTimeout = 30 * time.Second
)

// DirectoryUpdateError reports a failed identity directory call.
type DirectoryUpdateError struct {
	DID string
	Err error
}

func (e *DirectoryUpdateError) Error() string {
	return fmt.Sprintf("directory update for %s: %v", e.DID, e.Err)
}

func (e *DirectoryUpdateError) Unwrap() error {
	return e.Err
}

// signedOperation is the wire form of a directory operation. The signature
// covers the JSON encoding with the sig field absent.
type signedOperation struct {
	DID         string    `json:"did"`
	Operation   string    `json:"operation"`
	SigningKey  string    `json:"signingKey"`
	RotationKey string    `json:"rotationKey"`
	CreatedAt   time.Time `json:"createdAt"`
	Sig         []byte    `json:"sig,omitempty"`
}

// Client submits signed operations to an identity directory over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[interface{}]
}

// New creates a directory client for the given base URL.
//
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func New(baseURL string) *Client {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[DIRECTORY] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[DIRECTORY] Circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		cb:      cb,
	}
}

// UpdateSigningKey registers newKeyDID as the signing key for did. The
// operation is signed with the rotation credential, never with the new key
// itself, since the directory only trusts rotation keys for key changes.
func (c *Client) UpdateSigningKey(ctx context.Context, did string, rotationKey *identity.Keypair, newKeyDID string) error {
	op := signedOperation{
		DID:         did,
		Operation:   opUpdateSigningKey,
		SigningKey:  newKeyDID,
		RotationKey: rotationKey.PublicDID(),
		CreatedAt:   time.Now().UTC(),
	}

	unsigned, err := json.Marshal(op)
	if err != nil {
		return &DirectoryUpdateError{DID: did, Err: fmt.Errorf("encode operation: %w", err)}
	}
	op.Sig, err = rotationKey.Sign(unsigned)
	if err != nil {
		return &DirectoryUpdateError{DID: did, Err: fmt.Errorf("sign operation: %w", err)}
	}

	body, err := json.Marshal(op)
	if err != nil {
		return &DirectoryUpdateError{DID: did, Err: fmt.Errorf("encode signed operation: %w", err)}
	}

	reqURL := fmt.Sprintf("%s/did/%s/sign-and-submit", c.baseURL, url.PathEscape(did))
	if err := c.execute(func() error { return c.post(ctx, reqURL, body) }); err != nil {
		return &DirectoryUpdateError{DID: did, Err: err}
	}
	return nil
}

// Ping verifies connectivity to the directory.
func (c *Client) Ping(ctx context.Context) error {
	return c.execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_health", http.NoBody)
		if err != nil {
			return fmt.Errorf("create request failed: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer closeBody(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health check failed with status %d", resp.StatusCode)
		}
		return nil
	})
}

// execute wraps a directory call with circuit breaker protection.
func (c *Client) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			logging.Warn().Err(err).Msg("[DIRECTORY] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		}
		return err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return nil
}

func (c *Client) post(ctx context.Context, reqURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}
	return nil
}

// readBodyForError reads at most 512 bytes of a response body for error text.
func readBodyForError(body io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return "<unreadable body>"
	}
	return string(b)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close response body")
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
