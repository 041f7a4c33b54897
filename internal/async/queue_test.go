package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/ocr"
	"github.com/joseph-ayodele/idverify/internal/store"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

const studentCard = "STUDENT ID: S12345678\nLast Name: Doe\nFirst Name: John\nDate of Birth: 1990-01-15"

type extractorFunc func(ctx context.Context, image []byte) ocr.Extraction

func (f extractorFunc) Extract(ctx context.Context, image []byte) ocr.Extraction {
	return f(ctx, image)
}

func documentExtractor(text string) extractorFunc {
	return func(ctx context.Context, image []byte) ocr.Extraction {
		return ocr.Extraction{Kind: ocr.KindOK, Text: text, Profiles: []constants.Profile{constants.ProfileBlock}}
	}
}

func request(studentID string) verify.Request {
	return verify.Request{
		Image:     []byte("image"),
		Filename:  "card.png",
		LastName:  "Doe",
		Birthday:  "1990-01-15",
		StudentID: studentID,
	}
}

func newTestQueue(t *testing.T, extractor verify.TextExtractor, opts ...Option) (*Queue, *store.Store) {
	t.Helper()
	st := store.New(zap.NewNop())
	q := NewQueue(st, extractor, zap.NewNop(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q, st
}

func waitTerminal(t *testing.T, q *Queue, id string) store.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := q.Poll(id)
		if err != nil {
			t.Fatalf("Poll(%s): %v", id, err)
		}
		if rec.Status.IsTerminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return store.TaskRecord{}
}

func TestQueueVerifiesEndToEnd(t *testing.T) {
	q, _ := newTestQueue(t, documentExtractor(studentCard))
	q.Start()

	good, err := q.Submit(context.Background(), request("S12345678"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	bad, err := q.Submit(context.Background(), request("ZZZZZZZZ"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec := waitTerminal(t, q, good)
	if rec.Status != constants.TaskStatusCompleted || rec.Result == nil || !rec.Result.Verified {
		t.Fatalf("expected verified completion, got %+v", rec)
	}
	v := rec.Result.Verification
	if !v.LastName.Verified || !v.Birthday.Verified || !v.StudentID.Verified {
		t.Fatalf("expected all fields verified: %+v", v)
	}

	rec = waitTerminal(t, q, bad)
	if rec.Status != constants.TaskStatusCompleted || rec.Result == nil {
		t.Fatalf("mismatch must still complete, got %+v", rec)
	}
	v = rec.Result.Verification
	if rec.Result.Verified || v.StudentID.Verified || !v.LastName.Verified || !v.Birthday.Verified {
		t.Fatalf("unexpected verdicts: verified=%v %+v", rec.Result.Verified, v)
	}
}

func TestQueueIssuesDistinctIDs(t *testing.T) {
	q, _ := newTestQueue(t, documentExtractor(studentCard))
	q.Start()

	const n = 40
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := q.Submit(context.Background(), request("S12345678"))
			if err != nil {
				t.Error(err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("id %q is not a uuid", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("got %d ids, want %d", len(seen), n)
	}
	for id := range seen {
		if rec := waitTerminal(t, q, id); rec.ID != id {
			t.Fatalf("poll for %s returned record %s", id, rec.ID)
		}
	}
}

func TestQueuePollBeforeCompletion(t *testing.T) {
	release := make(chan struct{})
	slow := extractorFunc(func(ctx context.Context, image []byte) ocr.Extraction {
		<-release
		return documentExtractor(studentCard)(ctx, image)
	})
	q, _ := newTestQueue(t, slow, WithWorkers(1))
	q.Start()

	id, err := q.Submit(context.Background(), request("S12345678"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec, err := q.Poll(id)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != constants.TaskStatusQueued && rec.Status != constants.TaskStatusProcessing {
		t.Fatalf("status = %s, want queued or processing", rec.Status)
	}
	close(release)
	if rec := waitTerminal(t, q, id); rec.Status != constants.TaskStatusCompleted {
		t.Fatalf("status = %s", rec.Status)
	}
}

func TestQueueRejectsInvalidRequests(t *testing.T) {
	q, st := newTestQueue(t, documentExtractor(studentCard))
	req := request("S1")
	req.LastName = ""
	if _, err := q.Submit(context.Background(), req); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if st.Len() != 0 {
		t.Fatal("invalid request must not create a record")
	}
}

func TestQueueBackpressure(t *testing.T) {
	q, st := newTestQueue(t, documentExtractor(studentCard), WithCapacity(2))

	for i := 0; i < 2; i++ {
		if _, err := q.Submit(context.Background(), request("S1")); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	_, err := q.Submit(context.Background(), request("S1"))
	if !errors.Is(err, common.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if st.Len() != 2 {
		t.Fatalf("rejected submission must not create a record, have %d", st.Len())
	}
	if stats := q.Stats(); stats.Queued != 2 || stats.Capacity != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	q.Start()
	for _, rec := range st.List() {
		waitTerminal(t, q, rec.ID)
	}
	if _, err := q.Submit(context.Background(), request("S1")); err != nil {
		t.Fatalf("queue should accept again once drained: %v", err)
	}
}

func TestQueueProcessesFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	recorder := extractorFunc(func(ctx context.Context, image []byte) ocr.Extraction {
		mu.Lock()
		order = append(order, string(image))
		mu.Unlock()
		return documentExtractor(studentCard)(ctx, image)
	})
	q, _ := newTestQueue(t, recorder, WithWorkers(1))

	var ids []string
	for i := 0; i < 5; i++ {
		req := request("S12345678")
		req.Image = []byte(fmt.Sprintf("img-%d", i))
		id, err := q.Submit(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	q.Start()
	for _, id := range ids {
		waitTerminal(t, q, id)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if want := fmt.Sprintf("img-%d", i); got != want {
			t.Fatalf("position %d processed %s, want %s", i, got, want)
		}
	}
}

func TestQueueWorkerSurvivesPanicsAndFailures(t *testing.T) {
	flaky := extractorFunc(func(ctx context.Context, image []byte) ocr.Extraction {
		switch string(image) {
		case "panic":
			panic("decoder exploded")
		case "offline":
			return ocr.Extraction{Kind: ocr.KindUnavailable, Err: common.ErrEngineUnavailable}
		default:
			return documentExtractor(studentCard)(ctx, image)
		}
	})
	q, _ := newTestQueue(t, flaky, WithWorkers(1))
	q.Start()

	submit := func(image string) string {
		req := request("S12345678")
		req.Image = []byte(image)
		id, err := q.Submit(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	panicked := submit("panic")
	offline := submit("offline")
	healthy := submit("ok")

	if rec := waitTerminal(t, q, panicked); rec.Status != constants.TaskStatusFailed || rec.ErrorCode != constants.ErrCodeInternal {
		t.Fatalf("panicking task: %+v", rec)
	}
	if rec := waitTerminal(t, q, offline); rec.Status != constants.TaskStatusFailed || rec.ErrorCode != constants.ErrCodeEngineUnavailable {
		t.Fatalf("offline task: %+v", rec)
	}
	if rec := waitTerminal(t, q, healthy); rec.Status != constants.TaskStatusCompleted {
		t.Fatalf("healthy task after failures: %+v", rec)
	}
}

func TestQueueTaskTimeout(t *testing.T) {
	stuck := extractorFunc(func(ctx context.Context, image []byte) ocr.Extraction {
		<-ctx.Done()
		return ocr.Extraction{Kind: ocr.KindFailed, Err: ctx.Err()}
	})
	q, _ := newTestQueue(t, stuck, WithTaskTimeout(20*time.Millisecond))
	q.Start()

	id, err := q.Submit(context.Background(), request("S1"))
	if err != nil {
		t.Fatal(err)
	}
	if rec := waitTerminal(t, q, id); rec.ErrorCode != constants.ErrCodeTimeout {
		t.Fatalf("expected timeout failure, got %+v", rec)
	}
}

func TestQueueShutdownDrains(t *testing.T) {
	q, st := newTestQueue(t, documentExtractor(studentCard), WithWorkers(2))
	for i := 0; i < 6; i++ {
		if _, err := q.Submit(context.Background(), request("S12345678")); err != nil {
			t.Fatal(err)
		}
	}
	q.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, rec := range st.List() {
		if rec.Status != constants.TaskStatusCompleted {
			t.Fatalf("task %s left in %s", rec.ID, rec.Status)
		}
	}
	if _, err := q.Submit(context.Background(), request("S1")); !errors.Is(err, common.ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown after shutdown, got %v", err)
	}
}

func TestQueueShutdownDeadlineFailsPending(t *testing.T) {
	started := make(chan struct{}, 1)
	blocking := extractorFunc(func(ctx context.Context, image []byte) ocr.Extraction {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ocr.Extraction{Kind: ocr.KindFailed, Err: ctx.Err()}
	})
	q, _ := newTestQueue(t, blocking, WithWorkers(1))
	q.Start()

	first, err := q.Submit(context.Background(), request("S1"))
	if err != nil {
		t.Fatal(err)
	}
	<-started
	var queued []string
	for i := 0; i < 2; i++ {
		id, err := q.Submit(context.Background(), request("S1"))
		if err != nil {
			t.Fatal(err)
		}
		queued = append(queued, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	for _, id := range queued {
		rec, err := q.Poll(id)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status != constants.TaskStatusFailed || rec.ErrorCode != constants.ErrCodeShuttingDown {
			t.Fatalf("queued task after forced shutdown: %+v", rec)
		}
	}
	if st := q.Stats(); st.InFlight != 0 || st.Queued != 0 {
		t.Fatalf("workers still busy after Shutdown returned: %+v", st)
	}
	rec, err := q.Poll(first)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != constants.TaskStatusFailed || rec.ErrorCode != constants.ErrCodeShuttingDown {
		t.Fatalf("in-flight task after forced shutdown: %+v", rec)
	}
}

func TestQueueShutdownWithoutStart(t *testing.T) {
	q, _ := newTestQueue(t, documentExtractor(studentCard))
	id, err := q.Submit(context.Background(), request("S1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	rec, err := q.Poll(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != constants.TaskStatusFailed {
		t.Fatalf("never-started task should fail on shutdown, got %s", rec.Status)
	}
}
