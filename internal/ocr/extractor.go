package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
)

// Kind classifies an extraction so callers can tell "no text" from "OCR unusable".
type Kind string

const (
	KindOK          Kind = "ok"
	KindEmpty       Kind = "empty"
	KindUnavailable Kind = "unavailable"
	KindFailed      Kind = "failed"
)

// Config controls how an Extractor drives the engine.
type Config struct {
	Profiles       []constants.Profile // default: block, column, sparse
	ProfileTimeout time.Duration       // per engine call, default 30s
	WorkingWidth   int                 // default 2000
}

// Extraction is the typed outcome of Extract.
type Extraction struct {
	Kind     Kind
	Text     string              // deduplicated lines, first-seen order
	Profiles []constants.Profile // profiles that produced text
	Warnings []string
	Duration time.Duration
	Err      error // set unless Kind is KindOK
}

// ProfileObserver is told how each engine call went; outcome is one of
// "ok", "empty", "unavailable" or "error".
type ProfileObserver func(profile constants.Profile, outcome string, took time.Duration)

type Option func(*Extractor)

// WithProfileObserver registers fn to be called after every engine call.
func WithProfileObserver(fn ProfileObserver) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.observe = fn
		}
	}
}

type Extractor struct {
	engine  Engine
	cfg     Config
	logger  *zap.Logger
	observe ProfileObserver
}

func NewExtractor(engine Engine, cfg Config, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = constants.DefaultProfiles
	}
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = 30 * time.Second
	}
	if cfg.WorkingWidth <= 0 {
		cfg.WorkingWidth = DefaultWorkingWidth
	}
	e := &Extractor{
		engine:  engine,
		cfg:     cfg,
		logger:  logger.Named("extractor"),
		observe: func(constants.Profile, string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract preprocesses image and runs the engine once per profile, merging
// the non-empty outputs into one deduplicated text blob.
func (e *Extractor) Extract(ctx context.Context, image []byte) Extraction {
	start := time.Now()
	done := func(x Extraction) Extraction {
		x.Duration = time.Since(start)
		return x
	}

	prepared, err := Preprocess(image, e.cfg.WorkingWidth)
	if err != nil {
		return done(Extraction{Kind: KindFailed, Err: err})
	}

	var (
		outputs        []string
		produced       []constants.Profile
		warnings       []string
		unavailableErr error
		failedErr      error
	)
	for _, profile := range e.cfg.Profiles {
		if ctx.Err() != nil {
			break
		}
		text, outcome, err := e.recognize(ctx, prepared, profile)
		if err != nil {
			warnings = append(warnings, err.Error())
			if outcome == "unavailable" && unavailableErr == nil {
				unavailableErr = err
			} else if outcome == "error" && failedErr == nil {
				failedErr = err
			}
			continue
		}
		if text == "" {
			continue
		}
		outputs = append(outputs, text)
		produced = append(produced, profile)
	}

	if len(outputs) > 0 {
		return done(Extraction{
			Kind:     KindOK,
			Text:     DedupeLines(outputs...),
			Profiles: produced,
			Warnings: warnings,
		})
	}

	switch {
	case ctx.Err() != nil:
		return done(Extraction{Kind: KindFailed, Warnings: warnings, Err: fmt.Errorf("extraction interrupted: %w", ctx.Err())})
	case unavailableErr != nil:
		return done(Extraction{Kind: KindUnavailable, Warnings: warnings, Err: unavailableErr})
	case failedErr != nil:
		return done(Extraction{Kind: KindFailed, Warnings: warnings, Err: failedErr})
	default:
		err := common.NewAppError(constants.ErrCodeExtractionEmpty,
			fmt.Sprintf("no text found with profiles %v", constants.AsStringSlice(e.cfg.Profiles)), common.ErrExtractionEmpty)
		return done(Extraction{Kind: KindEmpty, Warnings: warnings, Err: err})
	}
}

// recognize runs one profile under its own deadline. A profile that runs out
// of time counts as unavailable for that profile only.
func (e *Extractor) recognize(ctx context.Context, image []byte, profile constants.Profile) (string, string, error) {
	pctx, cancel := context.WithTimeout(ctx, e.cfg.ProfileTimeout)
	defer cancel()

	start := time.Now()
	raw, err := e.engine.Recognize(pctx, image, profile)
	took := time.Since(start)

	var outcome string
	switch {
	case err == nil:
		raw = Normalize(raw)
		outcome = "ok"
		if raw == "" {
			outcome = "empty"
		}
	case IsUnavailable(err):
		outcome = "unavailable"
	case errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome = "unavailable"
		err = common.NewAppError(constants.ErrCodeEngineUnavailable,
			fmt.Sprintf("profile %s timed out after %s", profile, e.cfg.ProfileTimeout),
			fmt.Errorf("%w: %w", common.ErrEngineUnavailable, err))
	default:
		outcome = "error"
	}
	e.observe(profile, outcome, took)

	fields := []zap.Field{
		zap.String("task_id", common.TaskIDFromContext(ctx)),
		zap.String("profile", string(profile)),
		zap.Int("psm", profile.PSM()),
		zap.String("outcome", outcome),
		zap.Int64("duration_ms", took.Milliseconds()),
	}
	if err != nil {
		e.logger.Warn("engine call failed", append(fields, zap.Error(err))...)
		return "", outcome, err
	}
	e.logger.Debug("engine call finished", append(fields, zap.Int("chars", len(raw)))...)
	return raw, outcome, nil
}
