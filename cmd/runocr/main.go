package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/ocr"
)

func main() {
	var (
		profilesFlag = flag.String("profiles", "", "comma separated profiles (block, column, sparse); default from OCR_PROFILES")
		timeout      = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runocr [-profiles block,sparse] <image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = common.LoadEnvFile(".env")
	cfg := common.LoadConfig()
	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if *profilesFlag != "" {
		profiles, unknown := constants.ParseProfiles(*profilesFlag)
		if len(unknown) > 0 || len(profiles) == 0 {
			logger.Error("invalid -profiles", zap.Strings("unknown", unknown))
			os.Exit(2)
		}
		cfg.OCR.Profiles = profiles
	}
	if !constants.IsAllowedFilename(path) {
		logger.Warn("extension is not accepted by the service, trying anyway", zap.String("file", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read image", zap.String("file", path), zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := ocr.NewTesseractFromConfig(cfg.OCR, logger)
	extractor := ocr.NewExtractor(engine, ocr.ExtractorConfig(cfg.OCR), logger)

	res := extractor.Extract(ctx, data)
	if res.Kind != ocr.KindOK {
		logger.Error("text extraction failed",
			zap.String("kind", string(res.Kind)),
			zap.Strings("warnings", res.Warnings),
			zap.Int64("duration_ms", res.Duration.Milliseconds()),
			zap.Error(res.Err),
		)
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		zap.String("kind", string(res.Kind)),
		zap.Strings("profiles", constants.AsStringSlice(res.Profiles)),
		zap.Int("bytes", len(res.Text)),
		zap.Int64("duration_ms", res.Duration.Milliseconds()),
	)
	fmt.Println(res.Text)
}
