package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scan2epub/internal/storage"
)

var (
	flagLanguage        string
	flagTo              string
	flagFrom            string
	flagAllowNoop       bool
	flagMinChangedRatio float64
	flagRunsLimit       int
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <input-pdf> <output-epub>",
	Short: "Run OCR on a PDF (local path or URL) and create a raw-text EPUB",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]
		if err := requireEpubExt(output); err != nil {
			return err
		}
		if err := validateLang(flagLanguage); err != nil {
			return err
		}

		a, err := newApp(output)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.cfg.ValidateOCR(); err != nil {
			return err
		}
		if !storage.IsURL(input) {
			if err := a.cfg.ValidateStorage(); err != nil {
				return err
			}
		}

		return a.runRecorded("ocr", input, output, func(ctx context.Context) error {
			if !a.cfg.Processing.SkipPreflight {
				if err := a.preflight().ForOCR(ctx, input); err != nil {
					return err
				}
			}
			return a.pipeline.RunOCR(ctx, input, output, flagLanguage)
		})
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean <input-epub> <output-epub>",
	Short: "Clean OCR artifacts out of an existing EPUB",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]
		if err := requireEpubExt(output); err != nil {
			return err
		}

		a, err := newApp(output)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.cfg.ValidateLLM(); err != nil {
			return err
		}

		return a.runRecorded("clean", input, output, func(ctx context.Context) error {
			if !a.cfg.Processing.SkipPreflight {
				if err := a.preflight().ForClean(ctx, ""); err != nil {
					return err
				}
			}
			return a.pipeline.RunClean(ctx, input, output)
		})
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate <input-epub> <output-epub>",
	Short: "Translate an EPUB into a target language",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]
		if err := requireEpubExt(output); err != nil {
			return err
		}
		if err := validateLang(flagTo); err != nil {
			return err
		}
		if err := validateLang(flagFrom); err != nil {
			return err
		}

		a, err := newApp(output)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.cfg.ValidateTranslator(); err != nil {
			return err
		}
		applyTranslationFlags(cmd, a)

		toLang := flagTo
		if toLang == "" {
			toLang = a.cfg.Translator.DefaultTarget
		}

		return a.runRecorded("translate", input, output, func(ctx context.Context) error {
			if !a.cfg.Processing.SkipPreflight {
				if err := a.preflight().ForTranslate(ctx, toLang); err != nil {
					return err
				}
			}
			return a.pipeline.RunTranslate(ctx, input, output, toLang, flagFrom)
		})
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <input-pdf> <output-epub>",
	Short: "Full pipeline: PDF -> OCR -> cleanup -> optional translation -> EPUB",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]
		if err := requireEpubExt(output); err != nil {
			return err
		}
		if err := validateLang(flagLanguage); err != nil {
			return err
		}
		if err := validateLang(flagTo); err != nil {
			return err
		}
		if err := validateLang(flagFrom); err != nil {
			return err
		}

		a, err := newApp(output)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.cfg.ValidateOCR(); err != nil {
			return err
		}
		if err := a.cfg.ValidateLLM(); err != nil {
			return err
		}
		if !storage.IsURL(input) {
			if err := a.cfg.ValidateStorage(); err != nil {
				return err
			}
		}
		if flagTo != "" {
			if err := a.cfg.ValidateTranslator(); err != nil {
				return err
			}
		}
		applyTranslationFlags(cmd, a)

		return a.runRecorded("convert", input, output, func(ctx context.Context) error {
			if !a.cfg.Processing.SkipPreflight {
				if err := a.preflight().ForConvert(ctx, input, flagTo); err != nil {
					return err
				}
			}
			return a.pipeline.RunConvert(ctx, input, output, flagLanguage, flagTo, flagFrom)
		})
	},
}

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Probe every configured external service and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("")
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		pf := a.preflight()
		failures := 0
		if a.cfg.ValidateStorage() == nil {
			if err := pf.Storage.Preflight(ctx); err != nil {
				fmt.Printf("storage: FAILED (%v)\n", err)
				failures++
			} else {
				fmt.Println("storage: ok")
			}
		} else {
			fmt.Println("storage: not configured, skipped")
		}
		if a.cfg.ValidateOCR() == nil {
			if err := pf.OCR.Preflight(ctx); err != nil {
				fmt.Printf("ocr: FAILED (%v)\n", err)
				failures++
			} else {
				fmt.Println("ocr: ok")
			}
		} else {
			fmt.Println("ocr: not configured, skipped")
		}
		if a.cfg.ValidateLLM() == nil {
			if err := pf.Cleaner.Preflight(ctx); err != nil {
				fmt.Printf("cleanup model: FAILED (%v)\n", err)
				failures++
			} else {
				fmt.Println("cleanup model: ok")
			}
		} else {
			fmt.Println("cleanup model: not configured, skipped")
		}
		if a.cfg.ValidateTranslator() == nil {
			if err := pf.Translator.Preflight(ctx, a.cfg.Translator.DefaultTarget); err != nil {
				fmt.Printf("translator: FAILED (%v)\n", err)
				failures++
			} else {
				fmt.Println("translator: ok")
			}
		} else {
			fmt.Println("translator: not configured, skipped")
		}

		if failures > 0 {
			return fmt.Errorf("%d preflight check(s) failed", failures)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("")
		if err != nil {
			return err
		}
		defer a.close()

		ledger, err := openLedger(a)
		if err != nil {
			return err
		}
		defer ledger.Close()

		runs, err := ledger.Recent(flagRunsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, run := range runs {
			line := fmt.Sprintf("%s  %-9s %-9s %s", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Command, run.Status, run.Input)
			if run.Output != "" {
				line += " -> " + run.Output
			}
			if run.Error != "" {
				line += "  (" + run.Error + ")"
			}
			if run.DegradedChunks > 0 || run.DegradedBatches > 0 {
				line += fmt.Sprintf("  [degraded: %d chunks, %d batches]", run.DegradedChunks, run.DegradedBatches)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// applyTranslationFlags overlays explicitly set CLI flags onto the loaded
// translator settings and rebuilds the stage with them.
func applyTranslationFlags(cmd *cobra.Command, a *app) {
	changed := false
	if cmd.Flags().Changed("allow-noop") {
		a.cfg.Translator.AllowNoop = flagAllowNoop
		changed = true
	}
	if cmd.Flags().Changed("min-changed-ratio") {
		a.cfg.Translator.MinChangedRatio = flagMinChangedRatio
		changed = true
	}
	if changed {
		a.rebuildTranslator()
	}
}

func init() {
	ocrCmd.Flags().StringVar(&flagLanguage, "language", "hu", "language of the scanned document")
	convertCmd.Flags().StringVar(&flagLanguage, "language", "hu", "language of the scanned document")

	for _, cmd := range []*cobra.Command{translateCmd, convertCmd} {
		cmd.Flags().StringVar(&flagTo, "to", "", "target language code")
		cmd.Flags().StringVar(&flagFrom, "from", "", "source language code (detected when empty)")
		cmd.Flags().BoolVar(&flagAllowNoop, "allow-noop", false, "accept output even when nothing changed")
		cmd.Flags().Float64Var(&flagMinChangedRatio, "min-changed-ratio", 0.0, "minimum changed-paragraph ratio to accept a translation")
	}
	translateCmd.MarkFlagRequired("to")

	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(ocrCmd, cleanCmd, translateCmd, convertCmd, preflightCmd, runsCmd)
}
