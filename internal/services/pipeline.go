package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"scan2epub/internal/apperr"
	"scan2epub/internal/config"
	"scan2epub/internal/epub"
	"scan2epub/internal/models"
	"scan2epub/internal/ocr"
	"scan2epub/internal/storage"
	"scan2epub/internal/translate"
)

// State names every phase a pipeline run moves through. Transitions are
// strictly forward; a failure from any state moves to StateFailed after
// best-effort teardown.
type State string

const (
	StateIdle                State = "idle"
	StateUploading           State = "uploading"
	StateOCRSubmitted        State = "ocr_submitted"
	StateOCRPolling          State = "ocr_polling"
	StateTextExtracted       State = "text_extracted"
	StateBuildingInterimEpub State = "building_interim_epub"
	StateCleaning            State = "cleaning"
	StateCleaningDone        State = "cleaning_done"
	StateTranslating         State = "translating"
	StateTranslationAccepted State = "translation_accepted"
	StateTranslationRejected State = "translation_rejected"
	StateFinalizing          State = "finalizing"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Pipeline chains upload, OCR, interim EPUB construction, cleanup and
// optional translation. Stages run strictly sequentially; each stage's
// output is the next stage's only input.
type Pipeline struct {
	cfg        *config.Config
	store      *storage.BlobStore
	analyzer   ocr.Analyzer
	cleaner    *Cleaner
	translator *TranslationStage
	status     *StatusLog
	log        zerolog.Logger
	debugDir   string

	state State
}

func NewPipeline(
	cfg *config.Config,
	store *storage.BlobStore,
	analyzer ocr.Analyzer,
	cleaner *Cleaner,
	translator *TranslationStage,
	status *StatusLog,
	debugDir string,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		analyzer:   analyzer,
		cleaner:    cleaner,
		translator: translator,
		status:     status,
		log:        logger.With().Str("component", "pipeline").Logger(),
		debugDir:   debugDir,
		state:      StateIdle,
	}
}

// State reports the pipeline's current phase.
func (p *Pipeline) State() State {
	return p.state
}

// DegradedChunks reports how many cleanup chunks fell back to original text.
func (p *Pipeline) DegradedChunks() int {
	if p.cleaner == nil {
		return 0
	}
	return p.cleaner.Degraded()
}

func (p *Pipeline) transition(next State, extras map[string]any) {
	p.log.Debug().Str("from", string(p.state)).Str("to", string(next)).Msg("state transition")
	p.state = next
	p.status.Event("pipeline", string(next), extras)
}

func (p *Pipeline) fail(err error) error {
	p.transition(StateFailed, map[string]any{"error": err.Error()})
	return err
}

// RunOCR analyzes a PDF (local path or URL) and writes an EPUB carrying the
// raw extracted text as a single chapter. Local inputs are uploaded first
// and the uploaded blobs deleted afterwards per the cleanup policy.
func (p *Pipeline) RunOCR(ctx context.Context, input, output, language string) (err error) {
	uploaded := false
	defer func() {
		if uploaded && p.cfg.Processing.CleanupOnFailure && p.debugDir == "" {
			p.store.CleanupAll(context.WithoutCancel(ctx))
		}
	}()

	pdfURL := input
	if !storage.IsURL(input) {
		if _, err := InspectPDF(input); err != nil {
			return p.fail(err)
		}
		p.transition(StateUploading, map[string]any{"input": input})
		pdfURL, err = p.store.Upload(ctx, input)
		if err != nil {
			return p.fail(err)
		}
		uploaded = true
	}

	p.transition(StateOCRSubmitted, nil)
	operationID, err := p.analyzer.Submit(ctx, pdfURL)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateOCRPolling, map[string]any{"operation": operationID})
	result, err := p.analyzer.Wait(ctx, operationID)
	if err != nil {
		return p.fail(err)
	}

	text := ocr.ExtractText(result)
	p.transition(StateTextExtracted, map[string]any{"chars": len(text)})
	p.writeDebugJSON("azure_cu_result.json", result)

	p.transition(StateBuildingInterimEpub, nil)
	meta := models.Metadata{
		Title:    stem(input),
		Author:   "Unknown",
		Language: language,
	}
	chapters := []models.Chapter{{
		FileName: "chap1.xhtml",
		Title:    "Document Content",
		HTML:     epub.Reconstruct(text),
	}}
	if err := epub.Write(output, meta, chapters); err != nil {
		return p.fail(err)
	}

	p.transition(StateDone, map[string]any{"output": output})
	return nil
}

// RunClean reads an EPUB, cleans every eligible chapter through the LLM
// stage and writes a new EPUB. Zero surviving chapters fail the run rather
// than emit an empty book.
func (p *Pipeline) RunClean(ctx context.Context, input, output string) error {
	doc, err := epub.Read(input)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateCleaning, map[string]any{"input": input, "items": len(doc.Items)})

	var chapters []models.Chapter
	for _, item := range doc.Items {
		if item.IsNavigation() {
			p.log.Debug().Str("file", item.FileName).Msg("skipping navigation file")
			continue
		}
		if item.IsEmpty() {
			p.log.Debug().Str("file", item.FileName).Msg("skipping empty item")
			continue
		}

		artifacts := epub.AnalyzeArtifacts(item.PlainText)
		p.log.Info().
			Str("file", item.FileName).
			Int("artifacts", epub.TotalArtifacts(artifacts)).
			Msg("cleaning chapter")

		cleanedText, err := p.cleaner.Clean(ctx, item.PlainText)
		if err != nil {
			return p.fail(err)
		}
		html := epub.Reconstruct(cleanedText)
		chapters = append(chapters, models.Chapter{
			FileName: item.FileName,
			Title:    item.Title,
			HTML:     html,
		})
		p.saveInterim(item, cleanedText, html, artifacts)
	}

	if len(chapters) == 0 {
		return p.fail(apperr.New(apperr.KindEPUB, "no readable content survived cleanup"))
	}

	p.transition(StateCleaningDone, map[string]any{"chapters": len(chapters)})

	meta := doc.Metadata
	meta.Title += " (Cleaned)"
	if err := epub.Write(output, meta, chapters); err != nil {
		return p.fail(err)
	}

	p.transition(StateDone, map[string]any{"output": output})
	return nil
}

// RunTranslate reads a cleaned EPUB, translates it and writes the result. A
// quality-gate rejection discards the translation; the untranslated book is
// never substituted silently.
func (p *Pipeline) RunTranslate(ctx context.Context, input, output, toLang, fromLang string) error {
	doc, err := epub.Read(input)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateTranslating, map[string]any{"input": input, "to": toLang})
	translated, err := p.translator.Translate(ctx, doc, toLang, fromLang)
	if err != nil {
		if apperr.IsKind(err, apperr.KindTranslation) {
			p.transition(StateTranslationRejected, map[string]any{"error": err.Error()})
			p.state = StateFailed
			return err
		}
		return p.fail(err)
	}
	p.transition(StateTranslationAccepted, map[string]any{
		"changed": translated.ChangedParagraphs,
		"total":   translated.TotalParagraphs,
	})

	if err := epub.Write(output, translated.Metadata, translated.Chapters); err != nil {
		return p.fail(err)
	}

	p.transition(StateDone, map[string]any{"output": output})
	return nil
}

// RunConvert executes the full chain: PDF to raw-text interim EPUB, cleanup,
// and optional translation. Interim EPUBs are moved into the debug directory
// on success when debugging, deleted otherwise.
func (p *Pipeline) RunConvert(ctx context.Context, input, output, language, toLang, fromLang string) error {
	interimOCR := withStemSuffix(output, "_interim_ocr")
	interims := []string{interimOCR}
	defer func() {
		p.finalizeInterims(interims)
	}()

	if err := p.RunOCR(ctx, input, interimOCR, language); err != nil {
		return err
	}

	cleanTarget := output
	if toLang != "" {
		cleanTarget = withStemSuffix(output, "_interim_cleaned")
		interims = append(interims, cleanTarget)
	}
	if err := p.RunClean(ctx, interimOCR, cleanTarget); err != nil {
		return err
	}

	if toLang != "" {
		if err := p.RunTranslate(ctx, cleanTarget, output, toLang, fromLang); err != nil {
			return err
		}
	}
	return nil
}

// finalizeInterims retains interim artifacts in the debug directory when
// debugging, otherwise removes them.
func (p *Pipeline) finalizeInterims(paths []string) {
	failed := p.state == StateFailed
	p.transition(StateFinalizing, nil)
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if p.debugDir != "" {
			target := filepath.Join(p.debugDir, filepath.Base(path))
			if err := os.Rename(path, target); err != nil {
				p.log.Warn().Err(err).Str("file", path).Msg("cannot move interim file to debug dir")
				continue
			}
			p.log.Info().Str("file", target).Msg("moved interim file to debug directory")
			continue
		}
		if err := os.Remove(path); err != nil {
			p.log.Warn().Err(err).Str("file", path).Msg("cannot remove interim file")
			continue
		}
		p.log.Info().Str("file", path).Msg("removed interim file")
	}
	if failed {
		p.state = StateFailed
	} else {
		p.state = StateDone
	}
}

// saveInterim writes one chapter's before/after snapshot for inspection.
func (p *Pipeline) saveInterim(item models.ContentItem, cleanedText, cleanedHTML string, artifacts map[string]int) {
	if !p.cfg.Processing.SaveInterim || p.debugDir == "" {
		return
	}
	dir := filepath.Join(p.debugDir, "interim_json_results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.log.Debug().Err(err).Msg("cannot create interim dir")
		return
	}
	payload := map[string]any{
		"file_name":        item.FileName,
		"title":            item.Title,
		"original_content": item.PlainText,
		"cleaned_text":     cleanedText,
		"cleaned_html":     cleanedHTML,
		"artifacts":        artifacts,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		p.log.Debug().Err(err).Msg("cannot marshal interim payload")
		return
	}
	name := filepath.Base(item.FileName) + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		p.log.Debug().Err(err).Str("file", name).Msg("cannot write interim payload")
	}
}

func (p *Pipeline) writeDebugJSON(name string, v any) {
	if p.debugDir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		p.log.Debug().Err(err).Str("file", name).Msg("cannot marshal debug payload")
		return
	}
	if err := os.WriteFile(filepath.Join(p.debugDir, name), data, 0o644); err != nil {
		p.log.Debug().Err(err).Str("file", name).Msg("cannot write debug payload")
	}
}

// DegradedBatches reports how many translation batches fell back to original
// segments, when the provider exposes that count.
func DegradedBatches(provider translate.Provider) int {
	type degrader interface{ Degraded() int }
	if d, ok := provider.(degrader); ok {
		return d.Degraded()
	}
	return 0
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func withStemSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
