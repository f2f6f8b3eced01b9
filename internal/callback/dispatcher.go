// Package callback delivers job results to the companion service over
// authenticated HTTP. Delivery is fire-and-forget: any transport failure or
// non-2xx response is logged and swallowed, never retried.
package callback

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
)

const maxResponseBody = 64 << 10

// Config controls the default callback endpoint and its authentication.
type Config struct {
	BaseURL    string
	ResultPath string
	AuthHeader string
	AuthToken  string
	AuthScheme string
	Timeout    time.Duration
	// VerifyTLS is off by default: the companion service runs with a
	// self-signed certificate in the lab setup.
	VerifyTLS bool
}

// Dispatcher posts JobResults to their callback targets.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Dispatcher with its own HTTP client.
func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}, //nolint:gosec
			},
		},
		logger: logger,
	}
}

// Deliver sends one result to the target, falling back to the configured
// endpoint when no override URL is present. The outcome is returned as a
// value for the caller to log; Deliver itself never fails.
func (d *Dispatcher) Deliver(ctx context.Context, result deflection.JobResult, target deflection.CallbackTarget) deflection.DeliveryResult {
	url := strings.TrimSpace(target.URL)
	if url == "" {
		url = d.resultURL(result.JobID)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		d.logger.Error("callback payload marshal failed",
			zap.Int64("beam_deflection_id", result.JobID),
			zap.Error(err),
		)
		return deflection.DeliveryResult{URL: url, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("callback request build failed",
			zap.Int64("beam_deflection_id", result.JobID),
			zap.String("url", url),
			zap.Error(err),
		)
		return deflection.DeliveryResult{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(d.cfg.AuthHeader, d.authValue(target.AuthToken))

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("callback delivery failed",
			zap.Int64("beam_deflection_id", result.JobID),
			zap.String("url", url),
			zap.Error(err),
		)
		return deflection.DeliveryResult{URL: url, Err: fmt.Errorf("post callback: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	out := deflection.DeliveryResult{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	if out.Delivered() {
		d.logger.Info("callback delivered",
			zap.Int64("beam_deflection_id", result.JobID),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
	} else {
		d.logger.Warn("callback rejected",
			zap.Int64("beam_deflection_id", result.JobID),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", out.Body),
		)
	}
	return out
}

func (d *Dispatcher) resultURL(jobID int64) string {
	path := strings.ReplaceAll(d.cfg.ResultPath, "{beam_deflection_id}", strconv.FormatInt(jobID, 10))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(d.cfg.BaseURL, "/") + path
}

// authValue picks the per-job token override when present and prefixes the
// configured scheme unless the token already carries one.
func (d *Dispatcher) authValue(override string) string {
	token := strings.TrimSpace(override)
	if token == "" {
		token = strings.TrimSpace(d.cfg.AuthToken)
	}
	if d.cfg.AuthScheme != "" && !strings.Contains(token, " ") {
		return d.cfg.AuthScheme + " " + token
	}
	return token
}
