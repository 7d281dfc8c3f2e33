// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the outbound clients.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes caps the response body read by Fetch. PubMed efetch batches of
// a few records stay far below this.
var MaxBodyBytes int64 = 8 << 20

// StatusError reports a non-2xx response. Body holds at most the first 512
// bytes of the response for diagnostics.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Fetch executes req exactly once and returns the body of a 2xx response.
// The User-Agent header is set when userAgent is non-empty and the request
// does not already carry one. Non-2xx responses yield a *StatusError; bodies
// larger than MaxBodyBytes are rejected.
func Fetch(ctx context.Context, client *http.Client, req *http.Request, userAgent string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req = req.WithContext(ctx)
	if userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodyBytes)
	}
	return body, nil
}
