package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deepdefender/internal/acquire"
	"deepdefender/internal/classifier"
	"deepdefender/internal/logging"
	"deepdefender/internal/preview"
)

// ErrClosed is returned by operations on a closed orchestrator.
var ErrClosed = errors.New("pipeline: orchestrator closed")

// ErrBusy is returned by the IfIdle variants while an attempt is in flight.
var ErrBusy = errors.New("pipeline: analysis in progress")

// ErrSuperseded is returned by AwaitSettled when another attempt replaced the
// awaited one before it settled.
var ErrSuperseded = errors.New("pipeline: attempt superseded")

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	// Estimate produces the placeholder processing time shown with a verdict.
	Estimate func() float64
	// NewToken produces attempt identifiers.
	NewToken func() string
}

// Orchestrator owns the analysis state machine: it turns acquired files into
// classification attempts and publishes snapshots to subscribers.
type Orchestrator struct {
	client   classifier.Client
	previews *preview.Registry
	logger   *zap.Logger
	estimate func() float64
	newToken func() string

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	subs    map[int]chan State
	nextSub int
	closed  bool

	wg sync.WaitGroup
}

// New creates an idle orchestrator.
func New(client classifier.Client, previews *preview.Registry, logger *zap.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if previews == nil {
		previews = preview.NewRegistry()
	}
	if opts.Estimate == nil {
		opts.Estimate = RandomEstimate
	}
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		client:     client,
		previews:   previews,
		logger:     logger.Named("pipeline"),
		estimate:   opts.Estimate,
		newToken:   opts.NewToken,
		baseCtx:    ctx,
		baseCancel: cancel,
		state:      State{Phase: PhaseIdle},
		subs:       make(map[int]chan State),
	}
}

// Previews returns the registry preview handles are created in.
func (o *Orchestrator) Previews() *preview.Registry {
	return o.previews
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs source and starts an analysis for the file it yields. An
// acquisition without a file is a no-op and returns the unchanged state.
func (o *Orchestrator) Submit(ctx context.Context, source acquire.Source) (State, error) {
	file, err := source.Acquire(ctx)
	if errors.Is(err, acquire.ErrNoFile) {
		return o.Snapshot(), nil
	}
	if err != nil {
		return o.Snapshot(), err
	}
	return o.Acquire(file)
}

// SubmitIfIdle is Submit that refuses with ErrBusy instead of superseding an
// attempt in flight. The check and the start happen under one lock.
func (o *Orchestrator) SubmitIfIdle(ctx context.Context, source acquire.Source) (State, error) {
	if state := o.Snapshot(); state.InFlight {
		return state, ErrBusy
	}
	file, err := source.Acquire(ctx)
	if errors.Is(err, acquire.ErrNoFile) {
		return o.Snapshot(), nil
	}
	if err != nil {
		return o.Snapshot(), err
	}
	return o.AcquireIfIdle(file)
}

// Acquire makes file the active input and issues exactly one classification
// request for it. Any attempt still in flight is cancelled and its completion
// will be discarded. A nil file is a no-op.
func (o *Orchestrator) Acquire(file *acquire.InputFile) (State, error) {
	return o.acquire(file, false)
}

// AcquireIfIdle is Acquire that returns ErrBusy while an attempt is in flight.
func (o *Orchestrator) AcquireIfIdle(file *acquire.InputFile) (State, error) {
	return o.acquire(file, true)
}

func (o *Orchestrator) acquire(file *acquire.InputFile, onlyIfIdle bool) (State, error) {
	if file == nil {
		return o.Snapshot(), nil
	}
	req, err := classifier.NewRequest(file)
	if err != nil {
		return o.Snapshot(), err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return State{}, ErrClosed
	}
	if onlyIfIdle && o.state.InFlight {
		busy := o.state
		o.mu.Unlock()
		return busy, ErrBusy
	}

	superseded := o.state.Attempt
	o.abortLocked()
	o.releasePreviewLocked()

	token := o.newToken()
	attemptCtx, cancel := context.WithCancel(o.baseCtx)
	o.cancel = cancel
	o.state = State{
		Phase:    PhaseInFlight,
		Attempt:  token,
		File:     file,
		Preview:  o.previews.Create(file),
		Outcome:  Pending{},
		InFlight: true,
		Version:  o.state.Version,
	}
	o.publishLocked()
	snapshot := o.state
	o.wg.Add(1)
	o.mu.Unlock()

	logger := logging.WithOperation(o.logger, "pipeline.classify", token)
	fields := []zap.Field{
		zap.String("file", file.Name),
		zap.String("media_type", file.MediaType),
		zap.Int64("size", file.Size()),
	}
	if superseded != "" {
		fields = append(fields, zap.String("supersedes", superseded))
	}
	logger.Info("analysis started", fields...)

	go o.run(attemptCtx, token, req, logger)
	return snapshot, nil
}

// Reset returns the pipeline to Idle, cancelling any in-flight attempt and
// releasing the preview. Reset on Idle is a no-op.
func (o *Orchestrator) Reset() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Phase == PhaseIdle {
		return o.state
	}
	if o.state.InFlight {
		o.logger.Info("in-flight analysis abandoned by reset", zap.String("attempt", o.state.Attempt))
	}
	o.abortLocked()
	o.releasePreviewLocked()
	o.state = State{Phase: PhaseIdle, Version: o.state.Version}
	o.publishLocked()
	return o.state
}

func (o *Orchestrator) run(ctx context.Context, token string, req *classifier.Request, logger *zap.Logger) {
	defer o.wg.Done()

	start := time.Now()
	pred, err := o.client.Classify(ctx, req)
	elapsed := time.Since(start)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Attempt != token {
		logger.Debug("discarding stale completion", zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}

	var outcome Outcome
	if err != nil {
		failure := failureFrom(err)
		logger.Warn("analysis failed",
			zap.String("error_kind", string(failure.Kind)),
			zap.Int("status", failure.StatusCode),
			zap.Duration("elapsed", elapsed),
			zap.Error(logging.NewOperationError("classifier.classify", token, err)),
		)
		outcome = failure
	} else {
		verdict := DeriveVerdict(pred.DeepfakeProbability, o.estimate())
		logger.Info("analysis completed",
			zap.Float64("probability", verdict.Probability),
			zap.Bool("manipulated", verdict.IsManipulated),
			zap.Int("confidence", verdict.Confidence),
			zap.Duration("elapsed", elapsed),
		)
		outcome = verdict
	}

	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	next := o.state
	next.Phase = PhaseSettled
	next.Outcome = outcome
	next.InFlight = false
	o.state = next
	o.publishLocked()
}

func failureFrom(err error) Failure {
	failure := Failure{Message: classifier.UserMessage(err), Kind: classifier.KindTransport}
	var cerr *classifier.Error
	if errors.As(err, &cerr) {
		failure.Kind = cerr.Kind
		failure.StatusCode = cerr.StatusCode
	}
	return failure
}

func (o *Orchestrator) abortLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) releasePreviewLocked() {
	if o.state.Preview != nil {
		o.state.Preview.Release()
	}
}

// Subscribe registers for state snapshots. The current snapshot is delivered
// first. When a subscriber falls behind, older snapshots are dropped in favour
// of the latest. The returned function unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

func (o *Orchestrator) publishLocked() {
	o.state.Version++
	for _, ch := range o.subs {
		select {
		case ch <- o.state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- o.state:
		default:
		}
	}
}

// AwaitSettled blocks until the attempt identified by attempt settles, the
// attempt is superseded, or ctx is done.
func (o *Orchestrator) AwaitSettled(ctx context.Context, attempt string) (State, error) {
	updates, unsubscribe := o.Subscribe(4)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		case state, ok := <-updates:
			if !ok {
				return o.Snapshot(), ErrClosed
			}
			if state.Attempt != attempt {
				return state, ErrSuperseded
			}
			if state.Settled() {
				return state, nil
			}
		}
	}
}

// Wait blocks until no classification goroutine is running.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels any in-flight attempt, releases the preview and closes every
// subscription.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.abortLocked()
	o.releasePreviewLocked()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.mu.Unlock()

	o.baseCancel()
	o.wg.Wait()
}
