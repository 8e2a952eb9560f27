package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
	"scan2epub/internal/epub"
	"scan2epub/internal/models"
	"scan2epub/internal/translate"
)

// TranslationStage translates the readable content of a document paragraph
// by paragraph and enforces a whole-document change-ratio gate before any
// output is accepted. A provider that echoes its input (dead key, wrong
// endpoint) would otherwise produce a book that looks translated but is not.
type TranslationStage struct {
	provider translate.Provider
	cfg      config.TranslatorSettings
	status   *StatusLog
	log      zerolog.Logger
	debugDir string
}

// TranslatedDocument is the stage output, ready for the container writer.
type TranslatedDocument struct {
	Metadata models.Metadata
	Chapters []models.Chapter

	TotalParagraphs   int
	ChangedParagraphs int
}

func NewTranslationStage(provider translate.Provider, cfg config.TranslatorSettings, status *StatusLog, debugDir string, logger zerolog.Logger) *TranslationStage {
	return &TranslationStage{
		provider: provider,
		cfg:      cfg,
		status:   status,
		log:      logger.With().Str("component", "translation").Logger(),
		debugDir: debugDir,
	}
}

// Translate runs the whole document through the provider. Navigation and
// empty items are excluded. The quality gate is evaluated once, over every
// translated paragraph of every item, after all batches have returned.
func (s *TranslationStage) Translate(ctx context.Context, doc *models.Document, toLang, fromLang string) (*TranslatedDocument, error) {
	s.status.Event("translate", "translate_start", map[string]any{"to_lang": toLang})
	s.log.Info().Str("to", toLang).Int("items", len(doc.Items)).Msg("starting translation")

	var (
		chapters          []models.Chapter
		totalParagraphs   int
		changedParagraphs int
	)

	for _, item := range doc.Items {
		if item.IsNavigation() {
			s.log.Debug().Str("file", item.FileName).Msg("skipping navigation file")
			continue
		}
		if item.IsEmpty() {
			s.log.Debug().Str("file", item.FileName).Msg("skipping empty item")
			continue
		}

		paragraphs := SplitParagraphs(item.PlainText)
		totalParagraphs += len(paragraphs)
		s.status.Event("translate", "translate_item_start", map[string]any{
			"file":       item.FileName,
			"paragraphs": len(paragraphs),
		})

		translated, err := s.translateParagraphs(ctx, paragraphs, toLang, fromLang)
		if err != nil {
			s.status.Event("translate", "translate_error", map[string]any{"error": err.Error()})
			return nil, err
		}
		for i := range paragraphs {
			if strings.TrimSpace(paragraphs[i]) != strings.TrimSpace(translated[i]) {
				changedParagraphs++
			}
		}

		chapters = append(chapters, models.Chapter{
			FileName: item.FileName,
			Title:    item.Title,
			HTML:     epub.Reconstruct(strings.Join(translated, models.ParagraphSep)),
		})
		s.status.Event("translate", "translate_item_done", map[string]any{"file": item.FileName})
	}

	ratio := 0.0
	if totalParagraphs > 0 {
		ratio = float64(changedParagraphs) / float64(totalParagraphs)
	}
	if !s.cfg.AllowNoop && ratio <= s.cfg.MinChangedRatio {
		s.status.Event("translate", "translate_noop", map[string]any{
			"total_paragraphs":   totalParagraphs,
			"changed_paragraphs": changedParagraphs,
			"ratio":              ratio,
		})
		return nil, apperr.Newf(apperr.KindTranslation,
			"no-op translation detected: changed %d/%d paragraphs, ratio %.3f <= %.3f",
			changedParagraphs, totalParagraphs, ratio, s.cfg.MinChangedRatio)
	}

	out := &TranslatedDocument{
		Metadata: models.Metadata{
			Title:      doc.Metadata.Title + fmt.Sprintf(" (Translated to %s)", toLang),
			Author:     doc.Metadata.Author,
			Language:   toLang,
			Identifier: doc.Metadata.Identifier,
		},
		Chapters:          chapters,
		TotalParagraphs:   totalParagraphs,
		ChangedParagraphs: changedParagraphs,
	}
	s.status.Event("translate", "translate_done", map[string]any{
		"items":      len(chapters),
		"paragraphs": totalParagraphs,
	})
	return out, nil
}

// translateParagraphs batches one item's paragraphs, calls the provider per
// batch and validates the one-output-per-input contract.
func (s *TranslationStage) translateParagraphs(ctx context.Context, paragraphs []string, toLang, fromLang string) ([]string, error) {
	if len(paragraphs) == 0 {
		return nil, nil
	}
	batches := BatchParagraphs(paragraphs, s.cfg.MaxParagraphsPerBatch, s.cfg.MaxCharsPerBatch)
	s.status.Event("translate", "translate_item_chunking_done", map[string]any{
		"batches":    len(batches),
		"paragraphs": len(paragraphs),
	})

	var translated []string
	for i, batch := range batches {
		s.status.Event("translate", "translate_batch_start", map[string]any{
			"idx":        i + 1,
			"total":      len(batches),
			"batch_size": len(batch),
		})
		s.writeDebugJSON(fmt.Sprintf("translator_batch_%d_request.json", i+1), map[string]any{
			"to":       toLang,
			"from":     fromLang,
			"segments": batch,
		})

		start := time.Now()
		out, err := s.provider.TranslateText(ctx, batch, toLang, fromLang)
		if err != nil {
			return nil, err
		}
		out = s.realign(batch, out)
		translated = append(translated, out...)

		s.status.Event("translate", "translate_batch_done", map[string]any{
			"idx":       i + 1,
			"total":     len(batches),
			"latency_s": time.Since(start).Seconds(),
		})
		s.writeDebugJSON(fmt.Sprintf("translator_batch_%d_response.json", i+1), map[string]any{
			"translated": out,
		})
	}
	return translated, nil
}

// realign pads with originals or truncates when a provider violates the
// count contract. Crashing here would lose a whole run over one bad batch.
func (s *TranslationStage) realign(batch, out []string) []string {
	if len(out) == len(batch) {
		return out
	}
	s.log.Warn().
		Int("expected", len(batch)).
		Int("got", len(out)).
		Msg("provider returned misaligned batch, patching")
	if len(out) > len(batch) {
		return out[:len(batch)]
	}
	return append(out, batch[len(out):]...)
}

func (s *TranslationStage) writeDebugJSON(name string, v any) {
	if s.debugDir == "" {
		return
	}
	dir := filepath.Join(s.debugDir, "translation_requests_responses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Debug().Err(err).Msg("cannot create translation debug dir")
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Debug().Err(err).Str("file", name).Msg("cannot marshal translation debug payload")
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		s.log.Debug().Err(err).Str("file", name).Msg("cannot write translation debug payload")
	}
}
