package kiosk

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/match"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
)

type fakeFrame struct {
	closed bool
}

func (f *fakeFrame) Bounds() image.Rectangle     { return image.Rect(0, 0, 640, 480) }
func (f *fakeFrame) Image() (image.Image, error) { return image.NewRGBA(f.Bounds()), nil }
func (f *fakeFrame) Close()                      { f.closed = true }

type fakeSource struct {
	openErr error
	opened  bool
}

func (s *fakeSource) Open() error          { s.opened = true; return s.openErr }
func (s *fakeSource) Read() (Frame, error) { return &fakeFrame{}, nil }
func (s *fakeSource) Close() error         { return nil }

type fakeDetector struct {
	count int
}

func (d *fakeDetector) DetectSingle(frame Frame) (*Detection, int, error) {
	if d.count == 0 {
		return nil, 0, nil
	}
	return &Detection{
		Crop:       &fakeFrame{},
		Box:        image.Rect(100, 100, 200, 200),
		Confidence: 0.95,
	}, d.count, nil
}

type fakeLandmarker struct {
	pts []liveness.Point
	err error
}

func (l *fakeLandmarker) Landmarks(frame Frame, box image.Rectangle) ([]liveness.Point, error) {
	return l.pts, l.err
}

type fakeEmbedder struct {
	sig []float32
	err error
}

func (e *fakeEmbedder) Generate(crop Frame) ([]float32, error) { return e.sig, e.err }
func (e *fakeEmbedder) Dim() int                               { return len(e.sig) }

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// eyePoints builds a 68-point landmark set with the given lid opening.
func eyePoints(lidGap float64) []liveness.Point {
	pts := make([]liveness.Point, 68)
	place := func(eye [6]int, cx float64) {
		pts[eye[0]] = liveness.Point{X: cx, Y: 0.5}
		pts[eye[3]] = liveness.Point{X: cx + 0.1, Y: 0.5}
		pts[eye[1]] = liveness.Point{X: cx + 0.03, Y: 0.5 - lidGap/2}
		pts[eye[2]] = liveness.Point{X: cx + 0.07, Y: 0.5 - lidGap/2}
		pts[eye[4]] = liveness.Point{X: cx + 0.07, Y: 0.5 + lidGap/2}
		pts[eye[5]] = liveness.Point{X: cx + 0.03, Y: 0.5 + lidGap/2}
	}
	place(liveness.LeftEye, 0.3)
	place(liveness.RightEye, 0.6)
	return pts
}

func testKioskConfig() config.KioskConfig {
	return config.KioskConfig{
		BlinkCooldown: 2 * time.Second,
		ResultDwell:   2 * time.Second,
		MaxProcessing: 1500 * time.Millisecond,
		FrameInterval: 10 * time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, deps Deps) (*Orchestrator, *memory.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)}

	st := memory.New()
	st.Now = func() time.Time { return clock.now }

	if deps.Source == nil {
		deps.Source = &fakeSource{}
	}
	if deps.Detector == nil {
		deps.Detector = &fakeDetector{count: 1}
	}
	if deps.Landmarker == nil {
		deps.Landmarker = &fakeLandmarker{pts: eyePoints(0.002)}
	}
	if deps.Embedder == nil {
		deps.Embedder = &fakeEmbedder{sig: []float32{1, 0, 0}}
	}
	if deps.Matcher == nil {
		deps.Matcher = match.NewMatcher(0.80)
	}
	if deps.Monitor == nil {
		deps.Monitor = liveness.NewMonitor(3, 0.0005, 0.001, 0.20, 2*time.Second)
	}
	deps.Signatures = st
	deps.Log = st
	deps.Clock = clock

	return New(deps, testKioskConfig()), st, clock
}

func TestMatchedAttemptAppendsOneRow(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{})
	ctx := context.Background()

	sig := []float32{1, 0, 0}
	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: sig}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var got Result
	orch.deps.OnResult = func(r Result) { got = r }

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	if orch.State() != StateResultDisplay {
		t.Errorf("state = %s, want RESULT_DISPLAY", orch.State())
	}
	if got.Outcome != store.OutcomeMatched || got.DisplayName != "Alice" {
		t.Errorf("unexpected result: %+v", got)
	}

	attempts, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected exactly 1 attempt row, got %d", len(attempts))
	}
	a := attempts[0]
	if a.Outcome != store.OutcomeMatched || a.IdentityID != "alice" {
		t.Errorf("unexpected attempt: %+v", a)
	}
	if a.Score == nil || *a.Score < 0.99 {
		t.Errorf("expected score near 1.0, got %v", a.Score)
	}
}

func TestNoMatchRecordsBestScore(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		Embedder: &fakeEmbedder{sig: []float32{0.6, 0.8, 0}},
	})
	ctx := context.Background()

	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	a := attempts[0]
	if a.Outcome != store.OutcomeNoMatch {
		t.Errorf("outcome = %s, want NO_MATCH", a.Outcome)
	}
	if a.Score == nil || *a.Score < 0.59 || *a.Score > 0.61 {
		t.Errorf("best score should be recorded even on no-match, got %v", a.Score)
	}
	if a.IdentityID != "" {
		t.Errorf("no-match row must not carry an identity, got %q", a.IdentityID)
	}
}

func TestMultipleFacesOutcome(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		Detector: &fakeDetector{count: 2},
	})
	ctx := context.Background()

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 || attempts[0].Outcome != store.OutcomeMultiFace {
		t.Fatalf("expected one MULTI_FACE attempt, got %+v", attempts)
	}
	if attempts[0].Score != nil {
		t.Error("score must stay nil when matching never ran")
	}
}

func TestEmbeddingFailureOutcome(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		Embedder: &fakeEmbedder{err: errors.New("inference failed")},
	})
	ctx := context.Background()

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 || attempts[0].Outcome != store.OutcomeEmbeddingFailed {
		t.Fatalf("expected one EMBEDDING_FAILED attempt, got %+v", attempts)
	}
}

func TestLivenessFailedOutcome(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		LivenessEnabled: true,
	})
	ctx := context.Background()

	// first frame already triggers but the observation window is not full,
	// so the verdict is not live
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 || attempts[0].Outcome != store.OutcomeLivenessFailed {
		t.Fatalf("expected one LIVENESS_FAILED attempt, got %+v", attempts)
	}
}

func TestNoFaceFramesDoNothing(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		Detector: &fakeDetector{count: 0},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := orch.Step(ctx, &fakeFrame{}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	if orch.State() != StateIdle {
		t.Errorf("state = %s, want IDLE", orch.State())
	}
	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 0 {
		t.Errorf("frames without a trigger must not append rows, got %d", len(attempts))
	}
}

func TestResultDwellSuppressesProcessing(t *testing.T) {
	orch, st, clock := newTestOrchestrator(t, Deps{})
	ctx := context.Background()

	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if orch.State() != StateResultDisplay {
		t.Fatalf("state = %s, want RESULT_DISPLAY", orch.State())
	}

	// within the dwell nothing happens, even with a blinking face present
	clock.advance(500 * time.Millisecond)
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Fatalf("dwell period must not process attempts, got %d rows", len(attempts))
	}

	// after the dwell the cooldown restarts, so the immediate next blink
	// is still suppressed
	clock.advance(2 * time.Second)
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	attempts, _ = st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Fatalf("blink right after dwell must be suppressed by cooldown, got %d rows", len(attempts))
	}

	// once the cooldown elapses a new attempt runs
	clock.advance(3 * time.Second)
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	attempts, _ = st.Recent(ctx, 10)
	if len(attempts) != 2 {
		t.Fatalf("expected a second attempt after cooldown, got %d rows", len(attempts))
	}
}

func TestSubjectAlreadyPresentSkipsPipeline(t *testing.T) {
	orch, st, clock := newTestOrchestrator(t, Deps{
		Subject: "alice",
	})
	ctx := context.Background()

	score := 0.95
	if err := st.Append(ctx, store.Attempt{
		ID:         "earlier",
		IdentityID: "alice",
		Outcome:    store.OutcomeMatched,
		Score:      &score,
		CreatedAt:  clock.now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	var got Result
	orch.deps.OnResult = func(r Result) { got = r }

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	if got.Outcome != store.OutcomeMatched {
		t.Errorf("expected matched display for present subject, got %+v", got)
	}
	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Errorf("already-present short circuit must not append a row, got %d", len(attempts))
	}
	if orch.State() != StateResultDisplay {
		t.Errorf("state = %s, want RESULT_DISPLAY", orch.State())
	}
}

func TestIndexedMatchingFindsIdentity(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{
		UseIndex:    true,
		IndexCutoff: 0,
	})
	ctx := context.Background()

	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.Upsert(ctx, store.Identity{ID: "bob", DisplayName: "Bob", Signature: []float32{0, 1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Outcome != store.OutcomeMatched || attempts[0].IdentityID != "alice" {
		t.Errorf("indexed match failed: %+v", attempts[0])
	}
}

func TestIndexedMatchRefreshesAfterReenroll(t *testing.T) {
	orch, st, clock := newTestOrchestrator(t, Deps{
		UseIndex:    true,
		IndexCutoff: 0,
	})
	ctx := context.Background()

	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{0, 1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// first attempt builds the index against the old signature
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 || attempts[0].Outcome != store.OutcomeNoMatch {
		t.Fatalf("expected NO_MATCH before re-enrollment, got %+v", attempts)
	}

	// re-enroll alice with the signature the embedder emits
	clock.advance(2500 * time.Millisecond)
	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// dwell expiry restarts the cooldown, so step through it
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	clock.advance(2500 * time.Millisecond)
	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ = st.Recent(ctx, 10)
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	a := attempts[0]
	if a.Outcome != store.OutcomeMatched || a.IdentityID != "alice" {
		t.Errorf("index served a stale signature after re-enrollment: %+v", a)
	}
}

func TestGalleryLoadFailureRecordsNoMatch(t *testing.T) {
	orch, st, _ := newTestOrchestrator(t, Deps{})
	ctx := context.Background()

	st.GetAllError = errors.New("connection refused")

	if err := orch.Step(ctx, &fakeFrame{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	attempts, _ := st.Recent(ctx, 10)
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	a := attempts[0]
	if a.Outcome != store.OutcomeNoMatch {
		t.Errorf("outcome = %s, want NO_MATCH", a.Outcome)
	}
	if a.Score != nil {
		t.Error("score must stay nil when the gallery could not be loaded")
	}
	if a.IdentityID != "" {
		t.Errorf("unexpected identity on failed gallery load: %q", a.IdentityID)
	}
}

func TestRunWrapsOpenFailure(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Deps{
		Source: &fakeSource{openErr: errors.New("device busy")},
	})

	err := orch.Run(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Deps{
		Detector: &fakeDetector{count: 0},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
