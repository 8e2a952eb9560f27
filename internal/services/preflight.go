package services

import (
	"context"

	"github.com/rs/zerolog"

	"scan2epub/internal/ocr"
	"scan2epub/internal/storage"
	"scan2epub/internal/translate"
)

// Preflight runs cheap connectivity and auth probes against the external
// services a command is about to depend on, so misconfiguration surfaces
// before any expensive work starts. Probes not relevant to a command are
// skipped by leaving the corresponding field nil.
type Preflight struct {
	Storage    *storage.BlobStore
	OCR        ocr.Analyzer
	Cleaner    *Cleaner
	Translator translate.Provider

	Status *StatusLog
	Log    zerolog.Logger
}

func (p *Preflight) checkStorage(ctx context.Context) error {
	p.Status.Event("preflight", "storage_start", nil)
	if err := p.Storage.Preflight(ctx); err != nil {
		p.Status.Event("preflight", "storage_failed", map[string]any{"error": err.Error()})
		return err
	}
	p.Status.Event("preflight", "storage_ok", nil)
	return nil
}

func (p *Preflight) checkOCR(ctx context.Context) error {
	p.Status.Event("preflight", "cu_start", nil)
	if err := p.OCR.Preflight(ctx); err != nil {
		p.Status.Event("preflight", "cu_failed", map[string]any{"error": err.Error()})
		return err
	}
	p.Status.Event("preflight", "cu_ok", nil)
	return nil
}

func (p *Preflight) checkCleaner(ctx context.Context) error {
	p.Status.Event("preflight", "openai_start", nil)
	if err := p.Cleaner.Preflight(ctx); err != nil {
		p.Status.Event("preflight", "openai_failed", map[string]any{"error": err.Error()})
		return err
	}
	p.Status.Event("preflight", "openai_ok", nil)
	return nil
}

func (p *Preflight) checkTranslator(ctx context.Context, toLang string) error {
	p.Status.Event("preflight", "translator_start", nil)
	if err := p.Translator.Preflight(ctx, toLang); err != nil {
		p.Status.Event("preflight", "translator_failed", map[string]any{"error": err.Error()})
		return err
	}
	p.Status.Event("preflight", "translator_ok", nil)
	return nil
}

// ForOCR probes the services the ocr command needs. Storage is only probed
// when the input is a local file that will have to be uploaded.
func (p *Preflight) ForOCR(ctx context.Context, input string) error {
	p.Status.Event("preflight", "preflight_start", map[string]any{"services": []string{"storage?", "cu"}})
	if !storage.IsURL(input) {
		if err := p.checkStorage(ctx); err != nil {
			return err
		}
	}
	if err := p.checkOCR(ctx); err != nil {
		return err
	}
	p.Status.Event("preflight", "preflight_ok", map[string]any{"command": "ocr"})
	return nil
}

// ForClean probes the cleanup model, plus the translator when a translation
// was requested for the same run.
func (p *Preflight) ForClean(ctx context.Context, translateTo string) error {
	services := []string{"openai"}
	if translateTo != "" {
		services = append(services, "translator")
	}
	p.Status.Event("preflight", "preflight_start", map[string]any{"services": services})
	if err := p.checkCleaner(ctx); err != nil {
		return err
	}
	if translateTo != "" {
		if err := p.checkTranslator(ctx, translateTo); err != nil {
			return err
		}
	}
	p.Status.Event("preflight", "preflight_ok", map[string]any{"command": "clean"})
	return nil
}

// ForConvert probes everything a full pipeline run touches.
func (p *Preflight) ForConvert(ctx context.Context, input, translateTo string) error {
	services := []string{"storage?", "cu", "openai"}
	if translateTo != "" {
		services = append(services, "translator")
	}
	p.Status.Event("preflight", "preflight_start", map[string]any{"services": services})
	if !storage.IsURL(input) {
		if err := p.checkStorage(ctx); err != nil {
			return err
		}
	}
	if err := p.checkOCR(ctx); err != nil {
		return err
	}
	if err := p.checkCleaner(ctx); err != nil {
		return err
	}
	if translateTo != "" {
		if err := p.checkTranslator(ctx, translateTo); err != nil {
			return err
		}
	}
	p.Status.Event("preflight", "preflight_ok", map[string]any{"command": "convert"})
	return nil
}

// ForTranslate probes only the translator.
func (p *Preflight) ForTranslate(ctx context.Context, toLang string) error {
	p.Status.Event("preflight", "preflight_start", map[string]any{"services": []string{"translator"}})
	if err := p.checkTranslator(ctx, toLang); err != nil {
		return err
	}
	p.Status.Event("preflight", "preflight_ok", map[string]any{"command": "translate"})
	return nil
}
