package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
)

// Client talks to the document-analysis HTTP service. Analysis is
// asynchronous: Submit returns an operation ID and Wait polls it until a
// terminal status.
type Client struct {
	cfg        config.OCRSettings
	httpClient *http.Client
	log        zerolog.Logger
	sleep      func(time.Duration)
}

var _ Analyzer = (*Client)(nil)

func NewClient(cfg config.OCRSettings, logger zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:   logger.With().Str("component", "ocr").Logger(),
		sleep: time.Sleep,
	}
}

// Submit starts analysis of the document at url and returns the operation ID.
func (c *Client) Submit(ctx context.Context, url string) (string, error) {
	analyzeURL := fmt.Sprintf("%s/contentunderstanding/analyzers/%s:analyze?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.AnalyzerID, c.cfg.APIVersion)

	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "marshal analyze request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "create analyze request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "send analyze request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "read analyze response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Newf(apperr.KindOCR, "analyze request rejected: status=%d body=%s", resp.StatusCode, truncateBody(data))
	}

	var submitted submitResponse
	if err := json.Unmarshal(data, &submitted); err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "decode analyze response", err)
	}
	if submitted.ID == "" {
		return "", apperr.New(apperr.KindOCR, "analyze response carries no operation id")
	}

	c.log.Info().Str("operation", submitted.ID).Msg("analysis submitted")
	return submitted.ID, nil
}

// Wait polls the operation every PollInterval for up to PollAttempts tries.
// Transient poll errors consume an attempt and keep going; a Failed status
// or an unknown status fails immediately.
func (c *Client) Wait(ctx context.Context, operationID string) (*AnalyzeResult, error) {
	resultURL := fmt.Sprintf("%s/contentunderstanding/analyzerResults/%s?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), operationID, c.cfg.APIVersion)

	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		op, err := c.pollOnce(ctx, resultURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperr.Wrap(apperr.KindOCR, "analysis interrupted", ctx.Err())
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("poll failed")
			if attempt == c.cfg.PollAttempts {
				return nil, err
			}
			c.sleep(c.cfg.PollInterval)
			continue
		}

		switch op.Status {
		case StatusSucceeded:
			if op.Result == nil {
				return nil, apperr.New(apperr.KindOCR, "succeeded operation carries no result")
			}
			return op.Result, nil
		case StatusFailed:
			return nil, apperr.Newf(apperr.KindOCR, "analysis failed: %s", op.Error.String())
		case StatusRunning, StatusNotStarted:
			c.log.Debug().
				Str("status", op.Status).
				Int("attempt", attempt).
				Int("max", c.cfg.PollAttempts).
				Msg("analysis still in progress")
			if attempt < c.cfg.PollAttempts {
				c.sleep(c.cfg.PollInterval)
			}
		default:
			return nil, apperr.Newf(apperr.KindOCR, "unexpected analysis status %q", op.Status)
		}
	}
	return nil, apperr.New(apperr.KindOCR, "analysis timed out")
}

// Preflight lists the configured analyzer to verify endpoint and key.
func (c *Client) Preflight(ctx context.Context) error {
	url := fmt.Sprintf("%s/contentunderstanding/analyzers/%s?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.AnalyzerID, c.cfg.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindOCR, "create preflight request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindOCR, "analysis service unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Newf(apperr.KindOCR, "analysis service rejected preflight: status=%d", resp.StatusCode)
	}
	return nil
}

func (c *Client) pollOnce(ctx context.Context, url string) (*operationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOCR, "create poll request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOCR, "poll analysis result", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOCR, "read poll response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Newf(apperr.KindOCR, "poll rejected: status=%d body=%s", resp.StatusCode, truncateBody(data))
	}

	var op operationResponse
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, apperr.Wrap(apperr.KindOCR, "decode poll response", err)
	}
	return &op, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func truncateBody(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
