// Package worker implements the lifecycle controller and the job
// executor. One Worker value owns the process-wide state: which phase
// the lifecycle is in and, once ready, the handle to the exclusive
// compute resource. A job either runs to completion or degrades to a
// typed failure response; nothing a job does may take the process down.
package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/luminaforge/headshotd/internal/gpu"
	"github.com/luminaforge/headshotd/internal/joberr"
	"github.com/luminaforge/headshotd/internal/journal"
	"github.com/luminaforge/headshotd/internal/storage"
	"github.com/luminaforge/headshotd/internal/validate"
)

const artifactContentType = "image/png"

// reclaimTimeout bounds the post-job reclaim. The reclaim never runs on
// the job's context: by the time a job unwinds that context may already
// be canceled, and a canceled reclaim would leak the capacity it exists
// to give back.
const reclaimTimeout = 30 * time.Second

// ResourceGuard is the slice of the gpu guard the worker depends on,
// abstracted so tests can count acquisitions and reclaims.
type ResourceGuard interface {
	Acquire(ctx context.Context) (*gpu.Handle, error)
	Reclaim(ctx context.Context, h *gpu.Handle)
}

// Options configures a Worker.
type Options struct {
	Guard           ResourceGuard
	Journal         journal.Journal // optional; job outcomes are not recorded when nil
	Logger          *slog.Logger
	Bucket          string
	GenerationSteps int
	PresignTTL      time.Duration
	StorageTimeout  time.Duration
}

// Worker holds the process-wide lifecycle state and executes jobs one at
// a time. All state transitions happen under mu at a job boundary, so a
// concurrent host cannot race two initializations. The phase itself sits
// behind its own read lock: health checks read it while a job holds mu.
type Worker struct {
	guard          ResourceGuard
	journal        journal.Journal
	logger         *slog.Logger
	bucket         string
	steps          int
	presignTTL     time.Duration
	storageTimeout time.Duration

	mu            sync.Mutex
	handle        *gpu.Handle
	lastInitErr   *joberr.Error
	reclaimOnWarm bool

	phaseMu sync.RWMutex
	phase   string
}

// New creates a worker in the Uninitialized phase. Cold start happens on
// the first job's readiness check, not here.
func New(opts Options) *Worker {
	return &Worker{
		guard:          opts.Guard,
		journal:        opts.Journal,
		logger:         opts.Logger,
		bucket:         opts.Bucket,
		steps:          opts.GenerationSteps,
		presignTTL:     opts.PresignTTL,
		storageTimeout: opts.StorageTimeout,
		phase:          PhaseUninitialized,
	}
}

// Phase returns the current lifecycle phase. It never waits on a running
// job, so a liveness probe stays answerable through a long inference pass.
func (w *Worker) Phase() string {
	w.phaseMu.RLock()
	defer w.phaseMu.RUnlock()
	return w.phase
}

// EnsureReady drives the lifecycle toward Ready and returns the resource
// handle, or the recorded initialization failure while Degraded.
func (w *Worker) EnsureReady(ctx context.Context) (*gpu.Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, jerr := w.ensureReadyLocked(ctx)
	if jerr != nil {
		return nil, jerr
	}
	return h, nil
}

// ensureReadyLocked performs at most one acquisition attempt. Ready is
// sticky: a warm worker returns its handle without touching the guard.
func (w *Worker) ensureReadyLocked(ctx context.Context) (*gpu.Handle, *joberr.Error) {
	if w.phase == PhaseReady {
		// A job canceled from outside may have left transient capacity
		// behind; give it back before handing out the warm handle.
		if w.reclaimOnWarm {
			w.reclaimOnWarm = false
			rctx, cancel := context.WithTimeout(context.Background(), reclaimTimeout)
			w.guard.Reclaim(rctx, w.handle)
			cancel()
		}
		return w.handle, nil
	}

	w.transitionLocked(PhaseInitializing)
	h, err := w.guard.Acquire(ctx)
	if err != nil {
		jerr := joberr.Wrap(joberr.KindInitialization, err)
		w.lastInitErr = jerr
		w.transitionLocked(PhaseDegraded)
		w.logger.Error("initialization failed", "error", jerr, "phase", w.phase)
		return nil, jerr
	}

	w.handle = h
	w.lastInitErr = nil
	w.transitionLocked(PhaseReady)
	w.logger.Info("worker ready")
	return h, nil
}

// transitionLocked moves the phase, enforcing the transition table.
func (w *Worker) transitionLocked(to string) {
	if !ValidTransition(w.phase, to) {
		// The controller is the only writer, so an invalid transition
		// is a programming error; log it loudly rather than panic.
		w.logger.Error("invalid phase transition", "from", w.phase, "to", to)
		return
	}
	w.phaseMu.Lock()
	w.phase = to
	w.phaseMu.Unlock()
	phaseTransitions.WithLabelValues(to).Inc()
}

// Execute runs one job end to end and always returns the uniform
// response map: no error, panic, or collaborator failure escapes.
func (w *Worker) Execute(ctx context.Context, payload map[string]any) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	jobID := ulid.Make().String()
	start := time.Now().UTC()

	outcome := w.run(ctx, jobID, payload)
	duration := time.Since(start)

	if outcome.Err == nil {
		jobsTotal.WithLabelValues(journal.StatusSucceeded).Inc()
		w.logger.Info("job succeeded", "job_id", jobID, "duration_ms", duration.Milliseconds())
	} else {
		jobsTotal.WithLabelValues(journal.StatusFailed).Inc()
		w.logger.Error("job failed",
			"job_id", jobID,
			"error_type", string(outcome.Err.Kind),
			"error", outcome.Err.Message,
			"duration_ms", duration.Milliseconds(),
		)
	}
	jobDuration.Observe(duration.Seconds())

	w.record(jobID, outcome, start, duration)

	return BuildResponse(outcome)
}

// run executes the job protocol. Each step gates on the previous one and
// short-circuits to a typed failure; once the compute resource has been
// handed to the job, exactly one reclaim happens on every exit path.
func (w *Worker) run(ctx context.Context, jobID string, payload map[string]any) Outcome {
	outcome := Outcome{JobID: jobID}

	// Readiness precedes validation: a degraded worker reports its
	// initialization failure for every job, malformed payloads included,
	// and a warm worker pays nothing here.
	handle, jerr := w.ensureReadyLocked(ctx)
	if jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	input, jerr := extractInput(payload)
	if jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	cmd, err := validate.Request(input)
	if err != nil {
		outcome.Err = joberr.Wrap(joberr.KindValidation, err)
		return outcome
	}
	outcome.UserID = cmd.UserID

	// From here on the job may consume transient device capacity. The
	// reclaim runs on its own bounded context so that a caller canceling
	// the job cannot cancel the cleanup with it; a canceled job is also
	// flagged for one more best-effort reclaim on the next job's
	// readiness check, in case the sidecar was wedged during this one.
	defer func() {
		if ctx.Err() != nil {
			w.reclaimOnWarm = true
		}
		rctx, cancel := context.WithTimeout(context.Background(), reclaimTimeout)
		defer cancel()
		w.guard.Reclaim(rctx, handle)
	}()

	var img image.Image
	if jerr := step(joberr.KindGeneration, func() error {
		var genErr error
		img, genErr = handle.Pipeline.Generate(ctx, cmd.Prompt, w.steps)
		return genErr
	}); jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	var artifact bytes.Buffer
	if jerr := step(joberr.KindEncoding, func() error {
		return png.Encode(&artifact, img)
	}); jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	var objectPath string
	if jerr := step(joberr.KindPathValidation, func() error {
		var pathErr error
		objectPath, pathErr = storage.ObjectPath(cmd.UserID)
		return pathErr
	}); jerr != nil {
		outcome.Err = jerr
		return outcome
	}
	outcome.ObjectPath = objectPath

	if jerr := step(joberr.KindUpload, func() error {
		putCtx, cancel := context.WithTimeout(ctx, w.storageTimeout)
		defer cancel()
		return timeoutAware(handle.Store.Put(putCtx, w.bucket, objectPath, artifact.Bytes(), artifactContentType))
	}); jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	var imageURL string
	if jerr := step(joberr.KindReference, func() error {
		presignCtx, cancel := context.WithTimeout(ctx, w.storageTimeout)
		defer cancel()
		var presignErr error
		imageURL, presignErr = handle.Store.Presign(presignCtx, w.bucket, objectPath, w.presignTTL)
		return timeoutAware(presignErr)
	}); jerr != nil {
		outcome.Err = jerr
		return outcome
	}

	outcome.ImageURL = imageURL
	return outcome
}

// step runs one executor stage, converting both errors and panics into a
// typed failure of the stage's kind. A more specific kind assigned
// closer to the failure wins over the stage default.
func step(kind joberr.Kind, fn func() error) (jerr *joberr.Error) {
	defer func() {
		if r := recover(); r != nil {
			jerr = joberr.Newf(kind, "unexpected fault: %v", r)
		}
	}()
	if err := fn(); err != nil {
		return joberr.Wrap(kind, err)
	}
	return nil
}

// timeoutAware retags a deadline-exceeded storage failure so callers can
// distinguish a hung dependency from a rejected operation.
func timeoutAware(err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return joberr.Wrap(joberr.KindTimeout, err)
	}
	return err
}

// extractInput pulls the free-form input object out of the harness
// payload. The untyped form never flows past this point.
func extractInput(payload map[string]any) (map[string]any, *joberr.Error) {
	raw, ok := payload["input"]
	if !ok || raw == nil {
		return nil, joberr.New(joberr.KindMissingField, `payload is missing the "input" object`).
			With("field", "input")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, joberr.New(joberr.KindInvalidType, `payload field "input" must be an object`).
			With("field", "input").
			With("expected", "object")
	}
	return m, nil
}

// record persists the job outcome to the journal, best effort. A journal
// failure is logged and never fails the job.
func (w *Worker) record(jobID string, outcome Outcome, start time.Time, duration time.Duration) {
	if w.journal == nil {
		return
	}

	finished := start.Add(duration)
	j := &journal.Job{
		ID:         jobID,
		UserID:     outcome.UserID,
		Status:     journal.StatusSucceeded,
		ObjectPath: outcome.ObjectPath,
		DurationMS: int(duration.Milliseconds()),
		CreatedAt:  start,
		FinishedAt: &finished,
	}
	if outcome.Err != nil {
		j.Status = journal.StatusFailed
		j.ErrorKind = string(outcome.Err.Kind)
		j.Error = outcome.Err.Message
	}

	// Journal writes use a fresh context: the job is already over and
	// its outcome should be recorded even if the caller gave up.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.journal.RecordJob(ctx, j); err != nil {
		w.logger.Error("record job outcome", "job_id", jobID, "error", err)
	}
}
