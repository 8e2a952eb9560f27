package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
)

// cleanupInstruction is the system message for OCR cleanup. The corpus this
// tool was built for is Hungarian, so the instruction is written in Hungarian;
// the model follows it regardless of the chunk's language.
const cleanupInstruction = `Te egy magyar nyelvű szöveg OCR hibáinak javítására specializálódott asszisztens vagy.

FELADATOD:
1. Távolítsd el az OCR által okozott felesleges sortöréseket és oldalelválasztásokat
2. Egyesítsd a sorvégeken elválasztott magyar szavakat (pl. "szó-
tag" → "szótag")
3. Távolítsd el a felesleges szóközöket és formázási hibákat
4. Őrizd meg a bekezdések természetes szerkezetét
5. NE változtasd meg a szöveg jelentését vagy tartalmát

FONTOS SZABÁLYOK:
- Csak az OCR hibákat javítsd, a tartalmat ne módosítsd
- A magyar nyelvtan szabályait kövesd a szóegyesítésnél
- Őrizd meg a fejezetek és bekezdések logikus felépítését
- Ha bizonytalan vagy, inkább hagyd változatlanul

Kérlek, tisztítsd meg a következő szöveget:

`

// Cleaner removes OCR artifacts from extracted chapter text by sending it
// through a chat-completion model chunk by chunk. A chunk that keeps failing
// after the configured retries falls back to its original text instead of
// failing the whole run.
type Cleaner struct {
	client   *openai.Client
	cfg      config.LLMSettings
	log      zerolog.Logger
	debugDir string
	sleep    func(time.Duration)

	degraded int
}

func NewCleaner(cfg config.LLMSettings, debugDir string, logger zerolog.Logger) *Cleaner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	return &Cleaner{
		client:   openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		log:      logger.With().Str("component", "cleaner").Logger(),
		debugDir: debugDir,
		sleep:    time.Sleep,
	}
}

// Degraded reports how many chunks fell back to their original text across
// all Clean calls on this instance.
func (c *Cleaner) Degraded() int {
	return c.degraded
}

// Clean runs the full chunk, call, reassemble cycle for one chapter's text.
// The returned string is the cleaned chunks rejoined with blank lines.
func (c *Cleaner) Clean(ctx context.Context, text string) (string, error) {
	chunks := ChunkText(text, c.cfg.MaxTokensPerChunk*2)
	c.log.Info().Int("chunks", len(chunks)).Msg("cleaning text")

	cleaned := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := c.cleanChunk(ctx, i+1, chunk)
		if err != nil {
			return "", err
		}
		cleaned = append(cleaned, out)
	}
	return strings.Join(cleaned, "\n\n"), nil
}

// cleanChunk retries transient failures with a fixed delay and degrades to
// the original chunk once retries are exhausted. Only context cancellation
// propagates as an error.
func (c *Cleaner) cleanChunk(ctx context.Context, n int, chunk string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: cleanupInstruction},
		{Role: openai.ChatMessageRoleUser, Content: chunk},
	}
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokensResponse,
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.writeDebugRequest(n, attempt, req)

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		resp, err := c.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil && len(resp.Choices) == 0 {
			err = errors.New("model returned no choices")
		}
		if err == nil {
			c.writeDebugResponse(n, attempt, resp)
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		if ctx.Err() != nil {
			return "", apperr.Wrap(apperr.KindLLM, "cleanup interrupted", ctx.Err())
		}
		lastErr = err
		c.log.Warn().Err(err).Int("chunk", n).Int("attempt", attempt).Msg("cleanup call failed")
		if attempt < c.cfg.MaxRetries {
			c.sleep(c.cfg.RetryDelay)
		}
	}

	c.degraded++
	c.log.Warn().Err(lastErr).Int("chunk", n).Msg("retries exhausted, keeping original chunk text")
	return chunk, nil
}

// Preflight sends a minimal one-token request to verify the endpoint, key
// and model before a long run commits to upload and OCR.
func (c *Cleaner) Preflight(ctx context.Context) error {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	if _, err := c.client.CreateChatCompletion(callCtx, req); err != nil {
		return apperr.Wrap(apperr.KindLLM, "cleanup model unreachable", err)
	}
	return nil
}

func (c *Cleaner) writeDebugRequest(chunk, attempt int, req openai.ChatCompletionRequest) {
	if c.debugDir == "" {
		return
	}
	payload := map[string]any{
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	name := fmt.Sprintf("llm_chunk_%d_request_attempt_%d.json", chunk, attempt)
	c.writeDebugJSON(name, payload)
}

func (c *Cleaner) writeDebugResponse(chunk, attempt int, resp openai.ChatCompletionResponse) {
	if c.debugDir == "" {
		return
	}
	name := fmt.Sprintf("llm_chunk_%d_response_attempt_%d.json", chunk, attempt)
	c.writeDebugJSON(name, resp)
}

func (c *Cleaner) writeDebugJSON(name string, v any) {
	dir := filepath.Join(c.debugDir, "llm_requests_responses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.log.Debug().Err(err).Msg("cannot create llm debug dir")
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		c.log.Debug().Err(err).Str("file", name).Msg("cannot marshal llm debug payload")
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		c.log.Debug().Err(err).Str("file", name).Msg("cannot write llm debug payload")
	}
}
