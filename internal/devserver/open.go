package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// Opener opens url in a browser.
type Opener func(url string) error

// BrowserOpener opens the system browser.
func BrowserOpener(url string) error {
	return browser.OpenURL(url)
}

// openWhenReady waits for url to answer and opens it. It never fails the
// caller, errors are logged.
func openWhenReady(ctx context.Context, url string, open Opener, maxWait time.Duration, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("panic", r).Msg("Opening browser panicked")
		}
	}()

	client := &http.Client{Timeout: time.Second}
	probe := func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, fmt.Errorf("home page returned %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	}

	status, err := backoff.Retry(ctx, probe,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxWait),
	)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(err).Str("url", url).Msg("Home page not ready, opening anyway")
	} else {
		logger.Debug().Int("status", status).Str("url", url).Msg("Home page ready")
	}

	if err := open(url); err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("Failed to open browser")
		return
	}
	logger.Info().Str("url", url).Msg("Opened browser")
}
