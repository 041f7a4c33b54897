package ocr

import (
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/internal/common"
)

// NewTesseractFromConfig resolves the tesseract installation described by cfg.
// A missing binary is logged, not fatal: the engine then reports itself
// unavailable and tasks fail with ENGINE_UNAVAILABLE until it is installed.
func NewTesseractFromConfig(cfg common.OCRConfig, logger *zap.Logger) *Tesseract {
	if logger == nil {
		logger = zap.NewNop()
	}
	binary, err := DiscoverBinary(cfg.TesseractCmd)
	if err != nil {
		logger.Warn("tesseract not found, OCR will be unavailable",
			zap.String("configured", cfg.TesseractCmd),
			zap.Error(err),
		)
	}
	tessdata := DiscoverTessdata(cfg.TessdataDir, cfg.Language)
	logger.Info("ocr engine configured",
		zap.String("binary", binary),
		zap.String("tessdata", tessdata),
		zap.String("language", cfg.Language),
	)
	return NewTesseract(TesseractConfig{
		Binary:      binary,
		TessdataDir: tessdata,
		Language:    cfg.Language,
	}, NewExecRunner(logger), logger)
}

// ExtractorConfig maps the OCR section of the service configuration.
func ExtractorConfig(cfg common.OCRConfig) Config {
	return Config{
		Profiles:       cfg.Profiles,
		ProfileTimeout: cfg.ProfileTimeout,
		WorkingWidth:   cfg.WorkingWidth,
	}
}
