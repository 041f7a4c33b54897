package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
)

// Engine recognizes text in a preprocessed PNG image under one segmentation profile.
// Implementations must be safe for concurrent use.
type Engine interface {
	Recognize(ctx context.Context, image []byte, profile constants.Profile) (string, error)
	// Probe is a cheap usability check backing health endpoints.
	Probe(ctx context.Context) error
	Info(ctx context.Context) EngineInfo
}

// EngineInfo describes the engine installation for diagnostics.
type EngineInfo struct {
	Name        string   `json:"name"`
	Binary      string   `json:"binary"`
	Version     string   `json:"version,omitempty"`
	TessdataDir string   `json:"tessdata_dir,omitempty"`
	Language    string   `json:"language"`
	Languages   []string `json:"languages,omitempty"`
	Available   bool     `json:"available"`
	Error       string   `json:"error,omitempty"`
}

// TesseractConfig configures the tesseract engine.
type TesseractConfig struct {
	Binary      string // resolved path; empty means the engine is unavailable
	TessdataDir string
	Language    string // default "eng"
	OEM         int    // default 3, the engine's own choice
	ProbeWait   time.Duration
}

// Tesseract runs the tesseract CLI once per Recognize call, feeding the image on stdin.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *zap.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *zap.Logger) *Tesseract {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.ProbeWait <= 0 {
		cfg.ProbeWait = 5 * time.Second
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger.Named("tesseract")}
}

// Recognize runs: tesseract stdin stdout --oem N --psm N -l lang [--tessdata-dir D]
func (t *Tesseract) Recognize(ctx context.Context, image []byte, profile constants.Profile) (string, error) {
	if t.cfg.Binary == "" {
		return "", common.NewAppError(constants.ErrCodeEngineUnavailable, "tesseract binary not found", common.ErrEngineUnavailable)
	}
	psm := profile.PSM()
	if psm == 0 {
		return "", common.NewAppError(constants.ErrCodeExtractionFailed, fmt.Sprintf("unknown profile %q", profile), common.ErrExtractionFailed)
	}

	args := []string{
		"stdin", "stdout",
		"--oem", strconv.Itoa(t.cfg.OEM),
		"--psm", strconv.Itoa(psm),
		"-l", t.cfg.Language,
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, image, t.cfg.Binary, args...)
	if err != nil {
		return "", classifyRunError(ctx, err, errb, fmt.Sprintf("tesseract psm %d", psm))
	}
	return string(out), nil
}

// Probe runs tesseract --version under a short deadline.
func (t *Tesseract) Probe(ctx context.Context) error {
	_, err := t.version(ctx)
	return err
}

func (t *Tesseract) Info(ctx context.Context) EngineInfo {
	info := EngineInfo{
		Name:        "tesseract",
		Binary:      t.cfg.Binary,
		TessdataDir: t.cfg.TessdataDir,
		Language:    t.cfg.Language,
	}
	version, err := t.version(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Version = version
	info.Available = true

	langs, err := t.languages(ctx)
	if err != nil {
		t.logger.Warn("listing languages failed", zap.Error(err))
	}
	info.Languages = langs
	return info
}

func (t *Tesseract) version(ctx context.Context) (string, error) {
	if t.cfg.Binary == "" {
		return "", common.NewAppError(constants.ErrCodeEngineUnavailable, "tesseract binary not found", common.ErrEngineUnavailable)
	}
	pctx, cancel := context.WithTimeout(ctx, t.cfg.ProbeWait)
	defer cancel()

	out, errb, err := t.runner.Run(pctx, nil, t.cfg.Binary, "--version")
	if err != nil {
		return "", classifyRunError(pctx, err, errb, "tesseract --version")
	}
	// older releases print the banner on stderr
	return firstLine(string(out) + "\n" + string(errb)), nil
}

func (t *Tesseract) languages(ctx context.Context) ([]string, error) {
	pctx, cancel := context.WithTimeout(ctx, t.cfg.ProbeWait)
	defer cancel()

	args := []string{"--list-langs"}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(pctx, nil, t.cfg.Binary, args...)
	if err != nil {
		return nil, classifyRunError(pctx, err, errb, "tesseract --list-langs")
	}
	var langs []string
	for i, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue // header: List of available languages ...
		}
		langs = append(langs, line)
	}
	return langs, nil
}

// classifyRunError separates "engine unusable" from "engine ran and failed".
func classifyRunError(ctx context.Context, err error, stderr []byte, what string) error {
	var execErr *exec.Error
	switch {
	case errors.As(err, &execErr), errors.Is(err, exec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return common.NewAppError(constants.ErrCodeEngineUnavailable, what+": binary not runnable",
			fmt.Errorf("%w: %w", common.ErrEngineUnavailable, err))
	case ctx.Err() != nil:
		return common.NewAppError(constants.ErrCodeEngineUnavailable, what+": timed out",
			fmt.Errorf("%w: %w", common.ErrEngineUnavailable, ctx.Err()))
	case missingLanguageData(stderr):
		return common.NewAppError(constants.ErrCodeEngineUnavailable, what+": language data missing",
			fmt.Errorf("%w: %s", common.ErrEngineUnavailable, truncate(string(stderr), 512)))
	default:
		return common.NewAppError(constants.ErrCodeExtractionFailed, what+": "+truncate(strings.TrimSpace(string(stderr)), 512),
			fmt.Errorf("%w: %w", common.ErrExtractionFailed, err))
	}
}

func missingLanguageData(stderr []byte) bool {
	return bytes.Contains(stderr, []byte("Failed loading language")) ||
		bytes.Contains(stderr, []byte("Error opening data file"))
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// IsUnavailable reports whether err means the engine cannot be used at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, common.ErrEngineUnavailable)
}
