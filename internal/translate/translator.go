// Package translate wraps the machine-translation HTTP service behind a
// small provider interface so the document stage can be driven by fakes in
// tests.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
)

// Provider is the translation contract: one output string per input segment,
// in input order.
type Provider interface {
	TranslateText(ctx context.Context, segments []string, toLang, fromLang string) ([]string, error)

	// Preflight sends a single trivial segment with no retries to verify
	// reachability and credentials.
	Preflight(ctx context.Context, toLang string) error
}

// Request-level limits. The service allows more; headroom avoids 413s on
// documents with long paragraphs.
const (
	maxDocsPerRequest  = 90
	maxCharsPerRequest = 45000
)

type requestItem struct {
	Text string `json:"Text"`
}

type resultItem struct {
	Translations []translation `json:"translations"`
}

type translation struct {
	Text string `json:"text"`
	To   string `json:"to,omitempty"`
}

// Client implements Provider against the translator v3 REST endpoint.
type Client struct {
	cfg        config.TranslatorSettings
	httpClient *http.Client
	log        zerolog.Logger
	sleep      func(time.Duration)

	degraded int
}

var _ Provider = (*Client)(nil)

func NewClient(cfg config.TranslatorSettings, logger zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		log:   logger.With().Str("component", "translator").Logger(),
		sleep: time.Sleep,
	}
}

// TranslateText translates segments in request-sized batches. A batch that
// keeps failing after the configured retries falls back to its original
// segments; the caller's quality gate sees those as unchanged text. The
// returned slice always has exactly len(segments) entries.
func (c *Client) TranslateText(ctx context.Context, segments []string, toLang, fromLang string) ([]string, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	if len(toLang) < 2 {
		return nil, apperr.New(apperr.KindTranslation, "target language code must be provided")
	}

	translated := make([]string, 0, len(segments))
	batches := batchSegments(segments)
	for i, batch := range batches {
		out, err := c.translateBatch(ctx, i+1, len(batches), batch, toLang, fromLang)
		if err != nil {
			return nil, err
		}
		translated = append(translated, out...)
	}

	// Guard against service anomalies; misalignment here would shift every
	// following paragraph in the output document.
	if len(translated) != len(segments) {
		c.log.Error().
			Int("expected", len(segments)).
			Int("got", len(translated)).
			Msg("translated segment count mismatch, realigning")
		if len(translated) > len(segments) {
			translated = translated[:len(segments)]
		} else {
			translated = append(translated, segments[len(translated):]...)
		}
	}
	return translated, nil
}

func (c *Client) translateBatch(ctx context.Context, idx, total int, batch []string, toLang, fromLang string) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		out, err := c.callOnce(ctx, batch, toLang, fromLang)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindTranslation, "translation interrupted", ctx.Err())
		}
		lastErr = err
		if attempt < c.cfg.MaxRetries {
			backoff := time.Duration(attempt) * c.cfg.RetryDelay
			c.log.Warn().Err(err).
				Int("batch", idx).
				Int("of", total).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("translation batch failed, retrying")
			c.sleep(backoff)
		}
	}

	c.degraded++
	c.log.Error().Err(lastErr).
		Int("batch", idx).
		Int("of", total).
		Msg("translation batch failed after retries, keeping original text")
	return append([]string(nil), batch...), nil
}

// Degraded reports how many request batches fell back to their original
// segments across all TranslateText calls on this instance.
func (c *Client) Degraded() int {
	return c.degraded
}

func (c *Client) callOnce(ctx context.Context, batch []string, toLang, fromLang string) ([]string, error) {
	body := make([]requestItem, len(batch))
	for i, s := range batch {
		body[i] = requestItem{Text: s}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, "marshal translate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(toLang, fromLang), bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, "create translate request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, "send translate request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, "read translate response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.Newf(apperr.KindTranslation, "translate rejected: status=%d body=%s", resp.StatusCode, truncate(data))
	}

	var results []resultItem
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, "decode translate response", err)
	}

	out := make([]string, len(batch))
	for i := range batch {
		if i >= len(results) || len(results[i].Translations) == 0 {
			c.log.Warn().Int("item", i).Msg("no translation returned for segment, keeping original")
			out[i] = batch[i]
			continue
		}
		out[i] = strings.TrimSpace(results[i].Translations[0].Text)
	}
	return out, nil
}

// Preflight sends one "ping" segment without retries.
func (c *Client) Preflight(ctx context.Context, toLang string) error {
	if toLang == "" {
		toLang = "en"
	}
	out, err := c.callOnce(ctx, []string{"ping"}, toLang, "")
	if err != nil {
		return apperr.Wrap(apperr.KindTranslation, "translator preflight failed", err)
	}
	if len(out) != 1 || out[0] == "" {
		return apperr.New(apperr.KindTranslation, "translator preflight returned no translations")
	}
	return nil
}

func (c *Client) requestURL(toLang, fromLang string) string {
	params := url.Values{}
	params.Set("api-version", c.cfg.APIVersion)
	params.Set("to", toLang)
	if fromLang != "" {
		params.Set("from", fromLang)
	}
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/translate?" + params.Encode()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.cfg.Region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", c.cfg.Region)
	}
}

func batchSegments(segments []string) [][]string {
	var batches [][]string
	var batch []string
	chars := 0
	for _, s := range segments {
		if len(batch) > 0 && (len(batch)+1 > maxDocsPerRequest || chars+len(s) > maxCharsPerRequest) {
			batches = append(batches, batch)
			batch = []string{s}
			chars = len(s)
			continue
		}
		batch = append(batch, s)
		chars += len(s)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

func truncate(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
