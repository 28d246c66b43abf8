package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notex/pkg/auth"
	"notex/pkg/checkpoint"
	"notex/pkg/config"
	"notex/pkg/converter"
	"notex/pkg/document"
	"notex/pkg/latex"
	"notex/pkg/logger"
	"notex/pkg/pipeline"
	"notex/pkg/ratelimit"
	"notex/pkg/retry"
	"notex/pkg/ui"
	"notex/pkg/workspace"
)

var (
	convertWorkspace string
	convertOutputDir string
	convertType      string
	convertModel     string
	convertParallel  int
	convertFresh     bool
	convertNoImages  bool
	convertNoMain    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdf]",
	Short: "Convert a PDF of handwritten notes to LaTeX",
	Long: `Convert renders each page of the PDF, skips pages whose content has not
changed since their last successful conversion, and sends the rest through
the rate-limited converter. Progress is checkpointed after every page, so
the command can be interrupted and re-run safely.

With --workspace the PDF path, output layout and checkpoint location come
from the named workspace; otherwise everything lives under --output-dir.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertWorkspace, "workspace", "w", "", "named workspace to convert in")
	convertCmd.Flags().StringVarP(&convertOutputDir, "output-dir", "o", "", "output directory (default from config)")
	convertCmd.Flags().StringVar(&convertType, "converter", "", "converter type: openrouter or dummy")
	convertCmd.Flags().StringVar(&convertModel, "model", "", "model identifier for the converter")
	convertCmd.Flags().IntVarP(&convertParallel, "parallel", "p", 0, "max concurrent conversion calls")
	convertCmd.Flags().BoolVar(&convertFresh, "fresh", false, "discard existing checkpoints and reprocess everything")
	convertCmd.Flags().BoolVar(&convertNoImages, "no-images", false, "do not keep rendered page images")
	convertCmd.Flags().BoolVar(&convertNoMain, "no-main", false, "do not assemble a main.tex document")
	rootCmd.AddCommand(convertCmd)
}

// runDirs is the resolved filesystem layout for one conversion run
type runDirs struct {
	pdfPath        string
	imagesDir      string
	latexDir       string
	mainDocPath    string
	checkpointPath string
	lockDir        string
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	applyConvertFlags(cfg)

	dirs, err := resolveRunDirs(cfg, args)
	if err != nil {
		ui.PrintError("Failed to resolve run layout", err.Error())
		return err
	}

	log := logger.GetLogger()
	ui.PrintInfo("Document", dirs.pdfPath)

	// One writer per workspace: the lock holds off concurrent runs against
	// the same checkpoint file.
	lock := workspace.NewLock(dirs.lockDir)
	if err := lock.Acquire(); err != nil {
		ui.PrintError("Workspace is in use", err.Error())
		return err
	}
	defer lock.Release()

	store := checkpoint.NewStore(dirs.checkpointPath)
	if convertFresh {
		if err := store.Clear(); err != nil {
			ui.PrintError("Failed to clear checkpoints", err.Error())
			return err
		}
		ui.PrintWarning("Checkpoints cleared, reprocessing all pages")
	}

	source, err := document.OpenPDF(dirs.pdfPath, cfg.PDF.DPI, log)
	if err != nil {
		ui.PrintError("Failed to open PDF", err.Error())
		return err
	}
	defer source.Close()

	limiter, err := ratelimit.New(cfg.RateLimit.Mode, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	if err != nil {
		return fmt.Errorf("invalid rate limit configuration: %w", err)
	}

	conv, err := buildConverter(cfg, log)
	if err != nil {
		ui.PrintError("Failed to set up converter", err.Error())
		return err
	}

	policy := &retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     retry.FromConfig(&cfg.Retry),
		PerClass:    retry.NewClassBackoff(retry.FromConfig(&cfg.Retry)),
		RetryIf:     retry.DefaultRetryIf,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := ui.NewProgressTracker(source.PageCount())
	opts := pipeline.Options{
		PDFPath:       dirs.pdfPath,
		DocName:       docName(dirs.pdfPath),
		Parallelism:   cfg.Pipeline.Parallelism,
		SectionPrefix: cfg.Pipeline.SectionPrefix,
		DocTitle:      cfg.Pipeline.DocTitle,
		CreateMainDoc: cfg.Pipeline.CreateMainDoc,
		MainDocPath:   dirs.mainDocPath,
		OnOutcome: func(o pipeline.Outcome) {
			switch {
			case o.Skipped():
				tracker.PageSkipped(o.Page)
			case o.Status == checkpoint.StatusSucceeded:
				tracker.PageDone(o.Page)
			case o.Status == checkpoint.StatusFailed:
				tracker.PageFailed(o.Page, o.Err)
			}
		},
	}
	if cfg.Output.SaveImages && !convertNoImages {
		opts.ImagesDir = dirs.imagesDir
	}

	scheduler := pipeline.New(source, conv, store, limiter, policy,
		latex.NewIntegrator(dirs.latexDir, log), opts, log)

	summary, err := scheduler.Run(ctx)
	if err != nil && summary == nil {
		ui.PrintError("Conversion failed", err.Error())
		return err
	}

	printSummary(summary, dirs)
	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("Run interrupted; re-run to resume from the checkpoint")
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d page(s) failed; re-run to retry them", summary.Failed)
	}
	return nil
}

// applyConvertFlags overlays command-line flags onto the loaded config
func applyConvertFlags(cfg *config.Config) {
	if convertType != "" {
		cfg.Converter.Type = convertType
	}
	if convertModel != "" {
		cfg.Converter.Model = convertModel
	}
	if convertParallel > 0 {
		cfg.Pipeline.Parallelism = convertParallel
	}
	if convertOutputDir != "" {
		cfg.Output.BaseDirectory = convertOutputDir
	}
	if convertNoMain {
		cfg.Pipeline.CreateMainDoc = false
	}
}

// resolveRunDirs determines the filesystem layout, from a named workspace
// when one is given and from the output directory otherwise
func resolveRunDirs(cfg *config.Config, args []string) (*runDirs, error) {
	if convertWorkspace != "" {
		base, err := defaultWorkspaceBase()
		if err != nil {
			return nil, err
		}
		mgr, err := workspace.NewManager(base)
		if err != nil {
			return nil, err
		}
		ws, err := mgr.Get(convertWorkspace)
		if err != nil {
			return nil, err
		}
		pdfPath := ws.PDFPath
		if len(args) == 1 {
			pdfPath = args[0]
		}
		if pdfPath == "" {
			return nil, fmt.Errorf("workspace %q has no PDF; pass one as an argument", ws.Name)
		}
		return &runDirs{
			pdfPath:        pdfPath,
			imagesDir:      ws.ImagesDir(),
			latexDir:       ws.LatexDir(),
			mainDocPath:    ws.MainDocPath(),
			checkpointPath: ws.CheckpointPath(),
			lockDir:        ws.Dir,
		}, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("a PDF path is required unless --workspace is given")
	}
	pdfPath := args[0]
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("cannot read PDF %s: %w", pdfPath, err)
	}

	base := cfg.Output.BaseDirectory
	if base == "" {
		base = "./output"
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &runDirs{
		pdfPath:        pdfPath,
		imagesDir:      filepath.Join(base, "images"),
		latexDir:       filepath.Join(base, "latex"),
		mainDocPath:    filepath.Join(base, "main.tex"),
		checkpointPath: filepath.Join(base, "checkpoint.json"),
		lockDir:        base,
	}, nil
}

// buildConverter constructs the configured converter, resolving the API key
// through the credential chain when one is needed
func buildConverter(cfg *config.Config, log logger.Logger) (converter.Converter, error) {
	var apiKey string
	if cfg.Converter.Type == "openrouter" {
		mgr, err := auth.NewManager(cfg.Converter.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		cred, err := mgr.Retrieve(cfg.Converter.Type)
		if err != nil {
			return nil, fmt.Errorf("no API key found: run 'notex auth set' or set %s: %w",
				cfg.Converter.APIKeyEnv, err)
		}
		apiKey = cred.APIKey
	}
	return converter.New(&cfg.Converter, apiKey, log)
}

// docName derives the image filename prefix from the PDF path
func docName(pdfPath string) string {
	name := filepath.Base(pdfPath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func printSummary(s *pipeline.Summary, dirs *runDirs) {
	fmt.Println()
	ui.PrintHighlight("Run summary")
	ui.PrintInfo("Pages", fmt.Sprintf("%d total", s.TotalPages))
	ui.PrintInfo("Converted", fmt.Sprintf("%d", s.Succeeded))
	ui.PrintInfo("Up to date", fmt.Sprintf("%d", s.Skipped))
	if s.Failed > 0 {
		ui.PrintInfo("Failed", fmt.Sprintf("%d", s.Failed))
		for _, o := range s.Outcomes {
			if o.Status == checkpoint.StatusFailed {
				ui.PrintWarning(fmt.Sprintf("  page %d: %v", o.Page, o.Err))
			}
		}
	}
	if s.Cancelled > 0 {
		ui.PrintInfo("Not attempted", fmt.Sprintf("%d (run was interrupted)", s.Cancelled))
	}
	ui.PrintInfo("Elapsed", s.Elapsed.Round(time.Second).String())
	ui.PrintInfo("Output", dirs.mainDocPath)
	if s.Failed == 0 && s.Succeeded+s.Skipped == s.TotalPages {
		ui.PrintSuccess("All pages up to date")
	}
}
