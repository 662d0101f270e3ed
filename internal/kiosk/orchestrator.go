package kiosk

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/match"
	"github.com/kozaktomas/face-attend/internal/store"
)

// State of the kiosk loop.
type State int

const (
	StateIdle State = iota
	StateTriggered
	StateProcessing
	StateResultDisplay
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTriggered:
		return "TRIGGERED"
	case StateProcessing:
		return "PROCESSING"
	case StateResultDisplay:
		return "RESULT_DISPLAY"
	}
	return "UNKNOWN"
}

// Clock abstracts time for the loop so tests can drive transitions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Result is what one completed attempt produced, handed to OnResult for
// display.
type Result struct {
	Outcome     store.Outcome
	DisplayName string
	Score       float64
	Latency     time.Duration
}

// Deps wires the orchestrator to its collaborators. Matcher and Signatures
// feed identification; Log receives exactly one row per completed attempt.
type Deps struct {
	Source     FrameSource
	Detector   Detector
	Landmarker Landmarker
	Embedder   Embedder
	Matcher    *match.Matcher
	Signatures store.SignatureReader
	Log        store.AttendanceLog
	Monitor    *liveness.Monitor
	Clock      Clock
	Snapshots  *SnapshotWriter

	// Subject, when set, restricts the kiosk to one expected identity and
	// skips the pipeline entirely once that identity is already present today.
	Subject string

	// LivenessEnabled gates the multi-frame liveness verdict.
	LivenessEnabled bool

	// UseIndex enables the approximate HNSW pre-filter once the gallery
	// grows past IndexCutoff. Brute force stays the default since only it
	// guarantees the true best match.
	UseIndex    bool
	IndexCutoff int

	// OnResult is called after each attempt with the display payload.
	// Optional.
	OnResult func(Result)
}

// Orchestrator drives the kiosk state machine over a frame stream.
type Orchestrator struct {
	deps Deps
	cfg  config.KioskConfig

	state      State
	resultTime time.Time

	index      *match.Index
	indexStamp galleryStamp
}

// galleryStamp fingerprints the gallery for index invalidation. Upserts
// refresh EnrolledAt, so both re-enrollments and size changes move the
// stamp.
type galleryStamp struct {
	size   int
	latest time.Time
}

func stampGallery(gallery []store.Identity) galleryStamp {
	s := galleryStamp{size: len(gallery)}
	for _, id := range gallery {
		if id.EnrolledAt.After(s.latest) {
			s.latest = id.EnrolledAt
		}
	}
	return s
}

// indexSearchK is how many approximate neighbors are rescored exactly.
const indexSearchK = 16

// New creates an orchestrator. A nil Clock defaults to the wall clock.
func New(deps Deps, cfg config.KioskConfig) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	return &Orchestrator{deps: deps, cfg: cfg, state: StateIdle}
}

// State returns the current loop state.
func (o *Orchestrator) State() State { return o.state }

// Run opens the frame source and processes frames until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.deps.Source.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer o.deps.Source.Close()

	ticker := time.NewTicker(o.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := o.deps.Source.Read()
		if err != nil {
			log.Printf("frame read failed: %v", err)
			continue
		}
		if err := o.Step(ctx, frame); err != nil {
			log.Printf("kiosk step failed: %v", err)
		}
		frame.Close()
	}
}

// Step advances the state machine with one frame. Exported so tests and
// alternate loops can drive the machine without a live camera.
func (o *Orchestrator) Step(ctx context.Context, frame Frame) error {
	now := o.deps.Clock.Now()

	if o.state == StateResultDisplay {
		if now.Sub(o.resultTime) < o.cfg.ResultDwell {
			return nil
		}
		o.deps.Monitor.ResetCooldown(now)
		o.state = StateIdle
	}

	det, count, err := o.deps.Detector.DetectSingle(frame)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	if det == nil {
		// nothing to observe; triggers require a tracked face
		return nil
	}
	defer det.Crop.Close()

	pts, err := o.deps.Landmarker.Landmarks(frame, det.Box)
	if err != nil {
		// keep scanning, landmarks recover on the next frame
		return nil
	}

	if !o.deps.Monitor.Observe(pts, now) {
		return nil
	}
	o.state = StateTriggered

	if o.deps.Subject != "" {
		present, err := o.deps.Log.HasMatchedToday(ctx, o.deps.Subject)
		if err != nil {
			return fmt.Errorf("check presence: %w", err)
		}
		if present {
			// already recorded today, show the result without a pipeline
			// run and without a log row
			o.showResult(Result{Outcome: store.OutcomeMatched, DisplayName: o.deps.Subject}, now)
			return nil
		}
	}

	o.state = StateProcessing
	result := o.process(ctx, frame, det, count, now)
	o.showResult(result, o.deps.Clock.Now())
	return nil
}

// process runs the identification pipeline for one triggered attempt and
// appends exactly one attendance row.
func (o *Orchestrator) process(ctx context.Context, frame Frame, det *Detection, count int, start time.Time) Result {
	attempt := store.Attempt{
		ID:        uuid.NewString(),
		CreatedAt: start,
	}

	result := o.classify(ctx, det, count, &attempt)

	attempt.LatencyMS = o.deps.Clock.Now().Sub(start).Milliseconds()
	result.Latency = time.Duration(attempt.LatencyMS) * time.Millisecond
	if attempt.LatencyMS > o.cfg.MaxProcessing.Milliseconds() {
		log.Printf("attempt %s took %dms, exceeds %dms target",
			attempt.ID, attempt.LatencyMS, o.cfg.MaxProcessing.Milliseconds())
	}

	if err := o.deps.Log.Append(ctx, attempt); err != nil {
		log.Printf("failed to append attempt %s: %v", attempt.ID, err)
	}

	if o.deps.Snapshots != nil {
		if err := o.deps.Snapshots.Save(frame, det.Box, attempt.ID); err != nil {
			log.Printf("failed to save snapshot for %s: %v", attempt.ID, err)
		}
	}

	return result
}

// classify decides the attempt outcome, filling attempt as a side effect.
// The face count comes from the same detection pass that produced det.
func (o *Orchestrator) classify(ctx context.Context, det *Detection, count int, attempt *store.Attempt) Result {
	if count == 0 {
		attempt.Outcome = store.OutcomeNoFace
		return Result{Outcome: store.OutcomeNoFace}
	}
	if count > 1 {
		attempt.Outcome = store.OutcomeMultiFace
		return Result{Outcome: store.OutcomeMultiFace}
	}

	if o.deps.LivenessEnabled {
		verdict := o.deps.Monitor.Evaluate()
		if !verdict.Live {
			attempt.Outcome = store.OutcomeLivenessFailed
			return Result{Outcome: store.OutcomeLivenessFailed}
		}
	}

	signature, err := o.deps.Embedder.Generate(det.Crop)
	if err != nil {
		attempt.Outcome = store.OutcomeEmbeddingFailed
		return Result{Outcome: store.OutcomeEmbeddingFailed}
	}

	// a gallery load failure is not an embedder fault; record NO_MATCH
	// with no score so the row is distinguishable from a scored miss
	gallery, err := o.deps.Signatures.GetAll(ctx)
	if err != nil {
		log.Printf("failed to load gallery: %v", err)
		attempt.Outcome = store.OutcomeNoMatch
		return Result{Outcome: store.OutcomeNoMatch}
	}

	m := o.matchGallery(signature, gallery)
	score := m.Best
	attempt.Score = &score

	if !m.Matched() {
		attempt.Outcome = store.OutcomeNoMatch
		return Result{Outcome: store.OutcomeNoMatch, Score: m.Best}
	}

	attempt.Outcome = store.OutcomeMatched
	attempt.IdentityID = m.Identity.ID
	return Result{
		Outcome:     store.OutcomeMatched,
		DisplayName: m.Identity.DisplayName,
		Score:       m.Best,
	}
}

// matchGallery picks the comparison strategy: exhaustive scan, or the
// HNSW pre-filter once the gallery is large enough. The index is rebuilt
// whenever the gallery stamp moves, so re-enrollments never serve stale
// signatures.
func (o *Orchestrator) matchGallery(signature []float32, gallery []store.Identity) match.Result {
	if !o.deps.UseIndex || len(gallery) <= o.deps.IndexCutoff {
		return o.deps.Matcher.Match(signature, gallery)
	}

	stamp := stampGallery(gallery)
	if o.index == nil || o.indexStamp != stamp {
		ix := match.NewIndex()
		if err := ix.Build(gallery); err != nil {
			log.Printf("failed to build match index, falling back to scan: %v", err)
			return o.deps.Matcher.Match(signature, gallery)
		}
		o.index = ix
		o.indexStamp = stamp
	}

	result, err := o.deps.Matcher.MatchIndexed(signature, o.index, indexSearchK)
	if err != nil {
		log.Printf("index search failed, falling back to scan: %v", err)
		return o.deps.Matcher.Match(signature, gallery)
	}
	return result
}

func (o *Orchestrator) showResult(r Result, now time.Time) {
	o.state = StateResultDisplay
	o.resultTime = now
	if o.deps.OnResult != nil {
		o.deps.OnResult(r)
	}
}
