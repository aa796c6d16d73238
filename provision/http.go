package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type httpResponse struct {
	status int
	body   []byte
}

// do sends the request, retrying transport failures with the configured
// backoff. Any HTTP status is returned to the caller as is.
func do(ctx context.Context, cfg config, method, url string, header http.Header, body []byte) (httpResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return httpResponse{}, fmt.Errorf("create request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := cfg.httpClient.Do(req)
		if err == nil {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				return httpResponse{status: resp.StatusCode, body: data}, nil
			}
			err = readErr
		}

		lastErr = err
		if attempt == cfg.maxAttempts {
			break
		}

		cfg.logger.Warn("Request failed, retrying", "method", method, "url", url, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return httpResponse{}, ctx.Err()
		case <-time.After(cfg.backoff.Next(uint(attempt))):
		}
	}

	return httpResponse{}, fmt.Errorf("%s %s: %w", method, url, lastErr)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
