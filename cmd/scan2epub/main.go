package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"scan2epub/internal/config"
	"scan2epub/internal/db"
	"scan2epub/internal/models"
	"scan2epub/internal/ocr"
	"scan2epub/internal/services"
	"scan2epub/internal/storage"
	"scan2epub/internal/translate"
)

var (
	flagDebug         bool
	flagStatusFile    string
	flagSaveInterim   bool
	flagSkipPreflight bool
	flagQuiet         bool
)

var rootCmd = &cobra.Command{
	Use:           "scan2epub",
	Short:         "Convert scanned PDFs into cleaned, optionally translated EPUBs",
	Long:          "scan2epub chains OCR, LLM-based OCR-artifact cleanup and machine translation\ninto a pipeline that turns scanned PDF books into readable EPUB files.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "retain debug artifacts next to the output file")
	rootCmd.PersistentFlags().StringVar(&flagStatusFile, "status-file", "", "append JSONL status events to this file")
	rootCmd.PersistentFlags().BoolVar(&flagSaveInterim, "save-interim", false, "save per-chapter interim JSON (debug mode only)")
	rootCmd.PersistentFlags().BoolVar(&flagSkipPreflight, "skip-preflight", false, "skip connectivity probes before the run")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "disable progress output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app wires configuration and collaborators for one command invocation.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	status   *services.StatusLog
	debugDir string

	store      *storage.BlobStore
	analyzer   *ocr.Client
	cleaner    *services.Cleaner
	provider   *translate.Client
	translator *services.TranslationStage
	pipeline   *services.Pipeline
}

// newApp loads configuration and builds the component graph. output may be
// empty for commands that produce no file (preflight, runs).
func newApp(output string) (*app, error) {
	cfg := config.Load()
	if flagDebug {
		cfg.Processing.Debug = true
	}
	if flagSaveInterim {
		cfg.Processing.SaveInterim = true
	}
	if flagSkipPreflight {
		cfg.Processing.SkipPreflight = true
	}

	level := zerolog.InfoLevel
	if cfg.Processing.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	a := &app{
		cfg:    cfg,
		log:    logger,
		status: services.OpenStatusLog(flagStatusFile),
	}

	if cfg.Processing.Debug && output != "" {
		dir, err := computeDebugDir(output)
		if err != nil {
			return nil, err
		}
		a.debugDir = dir
		logger.Info().Str("dir", dir).Msg("debug artifacts will be retained")
	}

	a.analyzer = ocr.NewClient(cfg.OCR, logger)
	a.cleaner = services.NewCleaner(cfg.LLM, a.debugDir, logger)
	a.provider = translate.NewClient(cfg.Translator, logger)
	a.translator = services.NewTranslationStage(a.provider, cfg.Translator, a.status, a.debugDir, logger)

	if cfg.Storage.ContainerURL != "" {
		store, err := storage.NewBlobStore(cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		store.SetQuiet(flagQuiet)
		a.store = store
	}

	a.pipeline = services.NewPipeline(&a.cfg, a.store, a.analyzer, a.cleaner, a.translator, a.status, a.debugDir, logger)
	return a, nil
}

func (a *app) close() {
	a.status.Close()
}

// rebuildTranslator reconstructs the translation stage after CLI flags have
// overridden the loaded translator settings.
func (a *app) rebuildTranslator() {
	a.translator = services.NewTranslationStage(a.provider, a.cfg.Translator, a.status, a.debugDir, a.log)
	a.pipeline = services.NewPipeline(&a.cfg, a.store, a.analyzer, a.cleaner, a.translator, a.status, a.debugDir, a.log)
}

func (a *app) preflight() *services.Preflight {
	return &services.Preflight{
		Storage:    a.store,
		OCR:        a.analyzer,
		Cleaner:    a.cleaner,
		Translator: a.provider,
		Status:     a.status,
		Log:        a.log,
	}
}

// runRecorded executes one command body under signal cancellation, records
// the run in the ledger and prints the terminal summary.
func (a *app) runRecorded(command, input, output string, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	runErr := fn(ctx)
	finished := time.Now()

	record := models.RunRecord{
		ID:              uuid.NewString(),
		Command:         command,
		Input:           input,
		Output:          output,
		Status:          models.RunSucceeded,
		DegradedChunks:  a.pipeline.DegradedChunks(),
		DegradedBatches: services.DegradedBatches(a.provider),
		StartedAt:       started,
		FinishedAt:      finished,
	}
	if runErr != nil {
		record.Status = models.RunFailed
		record.Error = runErr.Error()
		record.Output = ""
	}

	if ledger, err := db.Open(a.cfg.Processing.LedgerPath); err != nil {
		a.log.Warn().Err(err).Msg("cannot open run ledger")
	} else {
		if err := ledger.Record(record); err != nil {
			a.log.Warn().Err(err).Msg("cannot record run")
		}
		ledger.Close()
	}

	if runErr != nil {
		return runErr
	}
	fmt.Printf("%s completed: %s -> %s\n", command, input, output)
	if record.DegradedChunks > 0 {
		fmt.Printf("Warning: %d cleanup chunk(s) kept their original text after retries\n", record.DegradedChunks)
	}
	if record.DegradedBatches > 0 {
		fmt.Printf("Warning: %d translation batch(es) kept their original text after retries\n", record.DegradedBatches)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openLedger(a *app) (*db.Ledger, error) {
	return db.Open(a.cfg.Processing.LedgerPath)
}

// computeDebugDir derives the debug directory from the output file name,
// suffixed until unique.
func computeDebugDir(output string) (string, error) {
	base := filepath.Join(filepath.Dir(output), stem(output))
	dir := base
	for n := 1; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	return dir, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func requireEpubExt(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return fmt.Errorf("output file must have .epub extension, got %q", filepath.Ext(path))
	}
	return nil
}

func validateLang(code string) error {
	if code == "" {
		return nil
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return nil
}
