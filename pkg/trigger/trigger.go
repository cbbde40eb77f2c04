package trigger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/imovelhub/imovelhub-ops/pkg/httpclient"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"go.uber.org/zap"
)

const callTimeout = 10 * time.Second

// CallAsync notifies triggerURL that a deployment finished.
// Failures are logged but don't block the deploy response.
func CallAsync(triggerURL, deployID string, httpClient httpclient.Client) {
	if triggerURL == "" {
		// No trigger URL configured, skip silently
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		_ = Call(ctx, triggerURL, deployID, httpClient) //nolint:errcheck // logged in Call
	}()
}

// Call POSTs to triggerURL with the deploy id as the deploy_id query parameter
func Call(ctx context.Context, triggerURL, deployID string, httpClient httpclient.Client) error {
	u, err := url.Parse(triggerURL)
	if err != nil {
		logger.Error("Invalid trigger URL", zap.Error(err), zap.String("url", triggerURL))
		return err
	}
	q := u.Query()
	q.Set("deploy_id", deployID)
	u.RawQuery = q.Encode()
	targetURL := u.String()

	logger.Info("Calling trigger URL",
		zap.String("url", targetURL),
		zap.String("deploy_id", deployID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to call trigger URL",
			zap.Error(err),
			zap.String("url", targetURL),
			zap.String("deploy_id", deployID))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Trigger URL returned non-success status",
			zap.String("url", targetURL),
			zap.String("deploy_id", deployID),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("trigger returned status %d", resp.StatusCode)
	}

	logger.Info("Trigger URL called successfully",
		zap.String("url", targetURL),
		zap.String("deploy_id", deployID),
		zap.Int("status_code", resp.StatusCode))
	return nil
}
