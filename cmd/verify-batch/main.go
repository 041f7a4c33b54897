package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/ocr"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		manifest = flag.String("manifest", "", "CSV of image,last_name,birthday,student_id (required)")
		out      = flag.String("out", "", "output XLSX path (default: verification-results.xlsx next to the manifest)")
		workers  = flag.Int("workers", 0, "worker count (default WORKER_COUNT)")
		timeout  = flag.Duration("timeout", 30*time.Minute, "overall deadline for the batch")
	)
	flag.Parse()

	if *manifest == "" {
		printError("Error: --manifest is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*manifest), "verification-results.xlsx")
	}

	_ = common.LoadEnvFile(".env")
	cfg := common.LoadConfig()
	if *workers > 0 {
		cfg.Queue.Workers = *workers
	}
	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	f, err := os.Open(*manifest)
	if err != nil {
		logger.Error("open manifest", zap.Error(err))
		os.Exit(1)
	}
	rows, err := readManifest(f, filepath.Dir(*manifest))
	_ = f.Close()
	if err != nil {
		logger.Error("parse manifest", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("manifest loaded", zap.String("manifest", *manifest), zap.Int("rows", len(rows)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	engine := ocr.NewTesseractFromConfig(cfg.OCR, logger)
	extractor := ocr.NewExtractor(engine, ocr.ExtractorConfig(cfg.OCR), logger)

	start := time.Now()
	summary, err := runBatch(ctx, rows, extractor, batchOptions{
		Workers:     cfg.Queue.Workers,
		TaskTimeout: cfg.Queue.TaskTimeout,
	}, logger)
	if err != nil {
		logger.Error("batch failed", zap.Error(err))
		os.Exit(1)
	}

	if err := os.WriteFile(*out, summary.XLSX, 0o644); err != nil {
		logger.Error("failed to write output file", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		zap.Int("rows", summary.Rows),
		zap.Int("submitted", summary.Submitted),
		zap.Int("verified", summary.Verified),
		zap.Int("failed", summary.Failed),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		zap.String("output_file", *out),
	)

	fmt.Printf("Batch verification complete!\n")
	fmt.Printf("- Rows: %d (rejected %d)\n", summary.Rows, summary.Rejected)
	fmt.Printf("- Verified: %d\n", summary.Verified)
	fmt.Printf("- Not verified: %d\n", summary.NotVerified)
	fmt.Printf("- Failed: %d\n", summary.Failed)
	fmt.Printf("- Output: %s\n", *out)
}
