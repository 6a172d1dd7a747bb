package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"icongen/internal/backend"
	"icongen/internal/infra"
	"icongen/internal/postproc"
	"icongen/internal/prompt"
	"icongen/internal/storage"
)

// ErrQueueFull is returned when the submission queue cannot accept more work.
var ErrQueueFull = errors.New("job: worker queue is full")

// QuotaChecker decides whether a caller may submit a job. It stands in for
// the external account/subscription system.
type QuotaChecker func(ctx context.Context, req GenerationRequest) error

// Options tunes the orchestrator.
type Options struct {
	Backend backend.ID
	// Workers is the fixed worker-pool size. Defaults to 2.
	Workers int
	// QueueSize bounds pending submissions. Defaults to 64.
	QueueSize int
	// CallTimeout is the enforced upper bound per backend call.
	CallTimeout time.Duration
	// Retention is how long terminal jobs are kept before the sweeper
	// removes them. Zero disables sweeping.
	Retention     time.Duration
	SweepInterval time.Duration
	Quota         QuotaChecker
}

// Orchestrator owns the job table and runs generation work units on a fixed
// pool of workers. Submission never blocks the caller.
type Orchestrator struct {
	store  *Store
	port   backend.Port
	proc   *postproc.Processor
	files  *storage.FileStore
	logger infra.Logger
	opts   Options

	queue  chan string
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewOrchestrator wires the orchestrator. Start must be called before jobs
// are submitted.
func NewOrchestrator(store *Store, port backend.Port, proc *postproc.Processor, files *storage.FileStore, logger infra.Logger, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		store:  store,
		port:   port,
		proc:   proc,
		files:  files,
		logger: logger,
		opts:   opts,
		queue:  make(chan string, opts.QueueSize),
	}
}

// Start launches the worker pool and, when retention is configured, the
// sweeper.
func (o *Orchestrator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	group, ctx := errgroup.WithContext(ctx)
	o.group = group

	for i := 0; i < o.opts.Workers; i++ {
		group.Go(func() error {
			o.workerLoop(ctx)
			return nil
		})
	}

	if o.opts.Retention > 0 && o.opts.SweepInterval > 0 {
		group.Go(func() error {
			o.sweepLoop(ctx)
			return nil
		})
	}
}

// Shutdown stops the pool and waits for in-flight work, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel == nil {
		return nil
	}
	o.cancel()
	done := make(chan struct{})
	go func() {
		_ = o.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the request, registers a job, and enqueues its work unit.
// Validation failures surface synchronously; everything after submission is
// reported through the job's status fields.
func (o *Orchestrator) Submit(ctx context.Context, req GenerationRequest) (Snapshot, error) {
	if req.Variations == 0 {
		req.Variations = DefaultVariations
	}
	if req.Format == "" {
		req.Format = FormatIcon
	}
	if err := req.Validate(); err != nil {
		return Snapshot{}, err
	}
	if o.opts.Quota != nil {
		if err := o.opts.Quota(ctx, req); err != nil {
			return Snapshot{}, err
		}
	}

	snap := o.store.Create(req)
	select {
	case o.queue <- snap.ID:
	default:
		o.store.fail(snap.ID, "worker queue is full")
		return Snapshot{}, ErrQueueFull
	}
	o.logger.Info().
		Str("job_id", snap.ID).
		Str("style", string(req.Style)).
		Str("format", string(req.Format)).
		Int("variations", req.Variations).
		Msg("job: submitted")
	return snap, nil
}

// Job returns a snapshot of one job.
func (o *Orchestrator) Job(id string) (Snapshot, bool) {
	return o.store.Get(id)
}

// Jobs returns the most recent jobs, newest first.
func (o *Orchestrator) Jobs(limit int) []Snapshot {
	return o.store.List(limit)
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-o.queue:
			o.process(ctx, id)
		}
	}
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := o.store.Sweep(o.opts.Retention); removed > 0 {
				o.logger.Info().Int("removed", removed).Msg("job: swept expired jobs")
			}
		}
	}
}

// process is the top-level boundary of a job's work unit. Every error from
// validation, generation, or post-processing ends up in the FAILED
// transition; the job is never terminated silently.
func (o *Orchestrator) process(ctx context.Context, id string) {
	snap, ok := o.store.Get(id)
	if !ok {
		return
	}

	// Re-check the request shape so an invalid job fails before it ever
	// enters PROCESSING.
	if err := snap.Request.Validate(); err != nil {
		o.store.fail(id, err.Error())
		o.logger.Warn().Err(err).Str("job_id", id).Msg("job: rejected")
		return
	}

	o.store.markProcessing(id, 5, "Initializing generator...")

	variants, metadata, err := o.run(ctx, snap)
	if err != nil {
		o.store.fail(id, err.Error())
		o.logger.Error().Err(err).Str("job_id", id).Msg("job: failed")
		return
	}

	o.store.complete(id, variants, metadata, fmt.Sprintf("Successfully generated %d variants!", len(variants)))
	o.logger.Info().Str("job_id", id).Int("variants", len(variants)).Msg("job: completed")
}

func (o *Orchestrator) run(ctx context.Context, snap Snapshot) ([]Variant, map[string]any, error) {
	req := snap.Request

	caps, err := backend.Lookup(o.opts.Backend)
	if err != nil {
		return nil, nil, err
	}

	subject := prompt.EnhanceSubject(req.Subject)
	positive, negative, err := prompt.Build(subject, req.Style, prompt.Params{
		Color:       req.Color,
		CustomStyle: req.CustomStyle,
	})
	if err != nil {
		return nil, nil, err
	}

	width, height := 1024, 1024
	if req.Format == FormatSocialPost {
		width, height, err = req.AspectRatio.Dimensions()
		if err != nil {
			return nil, nil, err
		}
	}

	o.store.setProgress(snap.ID, 10, "Starting AI generation...")

	tun := backend.Tunables{Steps: req.Steps, Guidance: req.GuidanceScale}
	raws, params, err := o.generate(ctx, caps, positive, negative, width, height, req.Variations, tun)
	if err != nil {
		return nil, nil, fmt.Errorf("generation failed: %w", err)
	}

	o.store.setProgress(snap.ID, 60, fmt.Sprintf("Generated %d variations. Processing...", len(raws)))

	prefix := storage.OutputPrefix(req.Subject, snap.CreatedAt)
	variants := make([]Variant, 0, len(raws))
	for i, raw := range raws {
		variant, err := o.processVariant(ctx, prefix, i+1, raw, req)
		if err != nil {
			return nil, nil, fmt.Errorf("post-processing variant %d: %w", i+1, err)
		}
		variants = append(variants, variant)
	}

	metadata := o.buildMetadata(snap, positive, negative, params, len(variants))
	o.writeMetadata(ctx, snap.ID, prefix, metadata, positive)

	return variants, metadata, nil
}

// generate drives the backend. Backends without multi-output support are
// invoked once per requested variation, sequentially; each call carries its
// own timeout, and a failure on any call fails the whole job.
func (o *Orchestrator) generate(ctx context.Context, caps backend.Capabilities, positive, negative string, width, height, variations int, tun backend.Tunables) ([][]byte, backend.Params, error) {
	if caps.SupportsMultiOutput {
		params := backend.BuildParams(caps, positive, negative, width, height, variations, tun)
		raws, err := o.execute(ctx, params)
		if err != nil {
			return nil, params, err
		}
		if len(raws) > variations {
			raws = raws[:variations]
		}
		return raws, params, nil
	}

	params := backend.BuildParams(caps, positive, negative, width, height, 1, tun)
	raws := make([][]byte, 0, variations)
	for i := 0; i < variations; i++ {
		out, err := o.execute(ctx, params)
		if err != nil {
			return nil, params, fmt.Errorf("variation %d: %w", i+1, err)
		}
		raws = append(raws, out[0])
	}
	return raws, params, nil
}

func (o *Orchestrator) execute(ctx context.Context, params backend.Params) ([][]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	raws, err := o.port.Execute(callCtx, o.opts.Backend, params)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, errors.New("backend returned no images")
	}
	return raws, nil
}

func (o *Orchestrator) processVariant(ctx context.Context, prefix string, number int, raw []byte, req GenerationRequest) (Variant, error) {
	// Backend output encoding is not guaranteed; normalize to PNG first.
	normalized, err := postproc.EncodePNG(raw)
	if err != nil {
		return Variant{}, err
	}

	originalKey, err := o.files.Write(ctx, storage.OriginalKey(prefix, number), normalized)
	if err != nil {
		return Variant{}, err
	}

	var artifacts []postproc.Artifact
	switch req.Format {
	case FormatSocialPost:
		artifacts, err = o.proc.ProcessSocial(ctx, normalized, postproc.SocialProfile{
			Aspect:  req.AspectRatio,
			Overlay: req.Overlay,
			Card:    req.Card,
		})
	default:
		artifacts, err = o.proc.ProcessIcon(ctx, normalized, postproc.IconProfile{
			Sizes:            req.IconSizes,
			ApplyMask:        req.ApplyMask,
			RemoveBackground: req.RemoveBackground,
		})
	}
	if err != nil {
		return Variant{}, err
	}

	refs := make([]ArtifactRef, 0, len(artifacts))
	for _, artifact := range artifacts {
		key, err := o.files.Write(ctx, storage.ArtifactKey(prefix, number, artifact.Filename), artifact.Data)
		if err != nil {
			return Variant{}, err
		}
		refs = append(refs, ArtifactRef{
			Size:     artifact.Size,
			Label:    artifact.Label,
			Filename: artifact.Filename,
			Key:      key,
		})
	}

	return Variant{Number: number, OriginalKey: originalKey, Artifacts: refs}, nil
}

func (o *Orchestrator) buildMetadata(snap Snapshot, positive, negative string, params backend.Params, variants int) map[string]any {
	req := snap.Request
	metadata := map[string]any{
		"generated_at":    time.Now().Format(time.RFC3339),
		"subject":         req.Subject,
		"style":           string(req.Style),
		"format":          string(req.Format),
		"backend":         string(o.opts.Backend),
		"variations":      variants,
		"prompt":          positive,
		"negative_prompt": negative,
		"parameters":      params,
	}
	if req.Format == FormatSocialPost {
		metadata["aspect_ratio"] = string(req.AspectRatio)
	}
	return metadata
}

// writeMetadata persists the generation metadata document and the plain-text
// prompt next to the originals. Failures are logged, not fatal; the job
// already holds the same metadata in memory.
func (o *Orchestrator) writeMetadata(ctx context.Context, jobID, prefix string, metadata map[string]any, positive string) {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("job: encode metadata failed")
		return
	}
	if _, err := o.files.Write(ctx, storage.MetadataKey(prefix), data); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("job: persist metadata failed")
	}
	if _, err := o.files.Write(ctx, storage.PromptKey(prefix), []byte(positive)); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("job: persist prompt failed")
	}
}
