package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/match"
	"github.com/joseph-ayodele/idverify/internal/ocr"
)

// State is a step of a verification run.
type State string

const (
	StateCreated    State = "created"
	StateExtracting State = "extracting"
	StateMatching   State = "matching"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// TextExtractor is the part of ocr.Extractor a task needs.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) ocr.Extraction
}

type matcherFunc func(claim, text string) bool

type fieldMatchers struct {
	name, date, id matcherFunc
}

var defaultMatchers = fieldMatchers{
	name: match.MatchName,
	date: match.MatchDate,
	id:   match.MatchIDNumber,
}

// Task verifies one request. A Task is single use and owned by one goroutine.
type Task struct {
	ID string

	req       Request
	extractor TextExtractor
	matchers  fieldMatchers
	logger    *zap.Logger

	state   State
	history []State
}

func NewTask(id string, req Request, extractor TextExtractor, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		ID:        id,
		req:       req,
		extractor: extractor,
		matchers:  defaultMatchers,
		logger:    logger,
		state:     StateCreated,
		history:   []State{StateCreated},
	}
}

func (t *Task) State() State { return t.state }

// History lists every state the task has been in, oldest first.
func (t *Task) History() []State {
	return append([]State(nil), t.history...)
}

func (t *Task) enter(s State) {
	t.state = s
	t.history = append(t.history, s)
}

// Run extracts the document text and matches the claimed fields against it.
// A returned error is always an *common.AppError carrying a task error code;
// a claim that does not match is a successful run with Verified=false.
func (t *Task) Run(ctx context.Context) (*Outcome, error) {
	if t.state != StateCreated {
		return nil, common.NewAppError(constants.ErrCodeInternal, fmt.Sprintf("task already ran (state %s)", t.state),
			causeWith(common.ErrInternal, common.ErrInvalidTransition))
	}
	start := time.Now()

	t.enter(StateExtracting)
	x := t.extractor.Extract(ctx, t.req.Image)
	if x.Kind != ocr.KindOK {
		err := extractionError(ctx, x)
		t.enter(StateFailed)
		t.logger.Warn("extraction did not produce text",
			zap.String("kind", string(x.Kind)),
			zap.String("error_code", common.ErrorCode(err, constants.ErrCodeInternal)),
			zap.Strings("warnings", x.Warnings),
			zap.Error(x.Err),
		)
		return nil, err
	}
	t.logger.Debug("text extracted",
		zap.Int("chars", len(x.Text)),
		zap.Strings("profiles", constants.AsStringSlice(x.Profiles)),
		zap.Int64("duration_ms", x.Duration.Milliseconds()),
	)

	t.enter(StateMatching)
	outcome := t.match(x)
	outcome.DurationMS = time.Since(start).Milliseconds()

	if err := ValidateOutcome(outcome); err != nil {
		t.enter(StateFailed)
		return nil, common.NewAppError(constants.ErrCodeInternal, "invalid outcome", causeWith(common.ErrInternal, err))
	}
	t.enter(StateSucceeded)
	t.logger.Info("verification finished",
		zap.Bool("verified", outcome.Verified),
		zap.Bool("last_name", outcome.Verification.LastName.Verified),
		zap.Bool("birthday", outcome.Verification.Birthday.Verified),
		zap.Bool("student_id", outcome.Verification.StudentID.Verified),
		zap.Int64("duration_ms", outcome.DurationMS),
	)
	return outcome, nil
}

func (t *Task) match(x ocr.Extraction) *Outcome {
	text := x.Text

	lastName := t.field("last_name", t.req.LastName, text, false, t.matchers.name)
	birthday := t.field("birthday", t.req.Birthday, text, true, t.matchers.date)
	birthday.Normalized = match.NormalizeDate(t.req.Birthday)
	studentID := t.field("student_id", t.req.StudentID, text, false, t.matchers.id)

	profiles := constants.AsStringSlice(x.Profiles)
	return &Outcome{
		Verified: lastName.Verified && birthday.Verified && studentID.Verified,
		Verification: Fields{
			LastName:  lastName,
			Birthday:  birthday,
			StudentID: studentID,
		},
		ExtractedText: text,
		Profiles:      profiles,
		Warnings:      x.Warnings,
	}
}

// field runs one matcher in isolation: a panic costs only this field's verdict.
func (t *Task) field(name, claim, text string, date bool, matcher matcherFunc) (res FieldResult) {
	res.Provided = claim
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("matcher panicked", zap.String("field", name), zap.Any("panic", r))
			res.Verified = false
			res.Match, res.FoundIn = "", ""
			res.Error = fmt.Sprintf("matcher failed: %v", r)
		}
	}()

	res.Verified = matcher(claim, text)
	if loc, ok := match.Locate(claim, text, date); ok {
		res.Match = loc.Match
		res.FoundIn = loc.FoundIn
	}
	return res
}

// extractionError maps a non-ok extraction to the error recorded on the task.
func extractionError(ctx context.Context, x ocr.Extraction) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return common.NewAppError(constants.ErrCodeTimeout, "verification timed out", ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return common.NewAppError(constants.ErrCodeShuttingDown, "verification cancelled", common.ErrShuttingDown)
	}

	switch x.Kind {
	case ocr.KindUnavailable:
		return common.NewAppError(constants.ErrCodeEngineUnavailable, "ocr engine unavailable", causeWith(common.ErrEngineUnavailable, x.Err))
	case ocr.KindEmpty:
		return common.NewAppError(constants.ErrCodeExtractionEmpty, "no text could be extracted from the document", causeWith(common.ErrExtractionEmpty, x.Err))
	default:
		if errors.Is(x.Err, common.ErrInvalidImage) {
			return common.NewAppError(constants.ErrCodeInvalidImage, "image is unreadable or too large", x.Err)
		}
		return common.NewAppError(constants.ErrCodeExtractionFailed, "text extraction failed", causeWith(common.ErrExtractionFailed, x.Err))
	}
}

func causeWith(sentinel, err error) error {
	switch {
	case err == nil:
		return sentinel
	case errors.Is(err, sentinel):
		return err
	default:
		return fmt.Errorf("%w: %w", sentinel, err)
	}
}
