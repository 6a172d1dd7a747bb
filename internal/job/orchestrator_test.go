package job

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"icongen/internal/backend"
	"icongen/internal/infra"
	"icongen/internal/postproc"
	"icongen/internal/prompt"
	"icongen/internal/storage"
)

func testPNG(t *testing.T, size int, fill color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// stubPort returns one canned image per call and records every invocation.
type stubPort struct {
	mu     sync.Mutex
	image  []byte
	images [][]byte
	err    error
	calls  int
	params []backend.Params
}

func (s *stubPort) Execute(ctx context.Context, id backend.ID, params backend.Params) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	if s.images != nil {
		return s.images, nil
	}
	return [][]byte{s.image}, nil
}

func (s *stubPort) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestOrchestrator(t *testing.T, port backend.Port, opts Options) (*Orchestrator, *storage.FileStore) {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	proc, err := postproc.New(postproc.Options{})
	if err != nil {
		t.Fatalf("postproc.New: %v", err)
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	orch := NewOrchestrator(NewStore(), port, proc, files, logger, opts)
	orch.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return orch, files
}

func waitTerminal(t *testing.T, orch *Orchestrator, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := orch.Job(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return Snapshot{}
}

func TestOrchestratorHappyPath(t *testing.T) {
	port := &stubPort{images: [][]byte{
		testPNG(t, 96, color.NRGBA{R: 220, G: 140, B: 20, A: 255}),
		testPNG(t, 96, color.NRGBA{R: 20, G: 140, B: 220, A: 255}),
	}}
	orch, files := newTestOrchestrator(t, port, Options{Backend: backend.SDXL, Workers: 1})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject:    "happy cat",
		Style:      prompt.StyleIOS,
		Variations: 2,
		ApplyMask:  true,
		Format:     FormatIcon,
		IconSizes:  []int{1024, 180},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap.Status != StatusPending {
		t.Fatalf("status = %q, want pending", snap.Status)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q (error: %s), want completed", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Fatalf("progress = %d, want 100", done.Progress)
	}
	if len(done.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(done.Variants))
	}
	for i, variant := range done.Variants {
		if variant.Number != i+1 {
			t.Fatalf("variant number = %d, want %d", variant.Number, i+1)
		}
		if variant.OriginalKey == "" {
			t.Fatalf("variant %d has no original key", variant.Number)
		}
		if len(variant.Artifacts) != 2 {
			t.Fatalf("variant %d artifacts = %d, want 2", variant.Number, len(variant.Artifacts))
		}
		if variant.Artifacts[0].Filename != "AppIcon-1024.png" || variant.Artifacts[1].Filename != "AppIcon-180.png" {
			t.Fatalf("variant %d filenames = %q, %q", variant.Number,
				variant.Artifacts[0].Filename, variant.Artifacts[1].Filename)
		}
	}
	if done.Metadata["prompt"] == "" {
		t.Fatalf("metadata missing prompt")
	}
	if done.Metadata["backend"] != "sdxl" {
		t.Fatalf("metadata backend = %v", done.Metadata["backend"])
	}

	// The positive prompt is persisted as plain text next to the metadata.
	prefix := strings.SplitN(done.Variants[0].OriginalKey, "/", 2)[0]
	text, err := files.Read(context.Background(), storage.PromptKey(prefix))
	if err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	if !strings.Contains(string(text), "happy cat") {
		t.Fatalf("prompt.txt = %q, want it to mention the subject", text)
	}
	if string(text) != done.Metadata["prompt"] {
		t.Fatalf("prompt.txt = %q, metadata prompt = %q", text, done.Metadata["prompt"])
	}

	// SDXL batches, so two variations still mean one backend call.
	if port.callCount() != 1 {
		t.Fatalf("backend calls = %d, want 1", port.callCount())
	}
}

func TestOrchestratorFansOutSingleOutputBackend(t *testing.T) {
	port := &stubPort{image: testPNG(t, 64, color.NRGBA{B: 200, A: 255})}
	orch, _ := newTestOrchestrator(t, port, Options{Backend: backend.FluxPro, Workers: 1})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject:    "rocket",
		Style:      prompt.StyleVector,
		Variations: 3,
		Format:     FormatIcon,
		IconSizes:  []int{40},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q (error: %s)", done.Status, done.Error)
	}
	if len(done.Variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(done.Variants))
	}
	if port.callCount() != 3 {
		t.Fatalf("backend calls = %d, want 3 (one per variation)", port.callCount())
	}
	for _, params := range port.params {
		if params.NumOutputs != 0 {
			t.Fatalf("single-output backend got num_outputs = %d", params.NumOutputs)
		}
	}
}

func TestOrchestratorSyntheticEndToEnd(t *testing.T) {
	orch, _ := newTestOrchestrator(t, backend.NewExecutor(nil), Options{Backend: backend.Synthetic, Workers: 2})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject:    "coffee cup",
		Style:      prompt.StyleFlat,
		Variations: 2,
		ApplyMask:  true,
		Format:     FormatIcon,
		IconSizes:  []int{120, 40},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q (error: %s)", done.Status, done.Error)
	}
	if len(done.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(done.Variants))
	}
}

func TestOrchestratorSocialPost(t *testing.T) {
	port := &stubPort{image: testPNG(t, 128, color.NRGBA{R: 90, G: 160, B: 220, A: 255})}
	orch, _ := newTestOrchestrator(t, port, Options{Backend: backend.FluxDev, Workers: 1})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject:     "coffee shop interior",
		Style:       prompt.StyleVector,
		Variations:  1,
		Format:      FormatSocialPost,
		AspectRatio: postproc.AspectSquare,
		Overlay: &postproc.TextOverlay{
			Text:     "Grand Opening",
			Position: postproc.PositionBottom,
			Color:    color.NRGBA{R: 255, G: 255, B: 255, A: 255},
			Style:    postproc.OverlayBold,
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q (error: %s)", done.Status, done.Error)
	}
	variant := done.Variants[0]
	if len(variant.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(variant.Artifacts))
	}
	if variant.Artifacts[0].Filename != "instagram-square.png" {
		t.Fatalf("filename = %q", variant.Artifacts[0].Filename)
	}
	if done.Metadata["aspect_ratio"] != "square" {
		t.Fatalf("metadata aspect_ratio = %v", done.Metadata["aspect_ratio"])
	}
	// Aspect-ratio backends get the named ratio, not explicit dimensions.
	if got := port.params[0].AspectRatio; got != "1:1" {
		t.Fatalf("aspect_ratio param = %q, want 1:1", got)
	}
}

func TestSubmitValidationFailsFast(t *testing.T) {
	port := &stubPort{image: testPNG(t, 32, color.NRGBA{A: 255})}
	orch, _ := newTestOrchestrator(t, port, Options{Backend: backend.SDXL, Workers: 1})

	_, err := orch.Submit(context.Background(), GenerationRequest{
		Style:  prompt.StyleIOS,
		Format: FormatIcon,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if port.callCount() != 0 {
		t.Fatalf("backend was called for an invalid request")
	}
	if jobs := orch.Jobs(0); len(jobs) != 0 {
		t.Fatalf("invalid request should not register a job, got %d", len(jobs))
	}
}

func TestSubmitAppliesDefaults(t *testing.T) {
	port := &stubPort{image: testPNG(t, 32, color.NRGBA{A: 255})}
	orch, _ := newTestOrchestrator(t, port, Options{Backend: backend.SDXL, Workers: 1})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject:   "rocket",
		Style:     prompt.StyleIOS,
		IconSizes: []int{20},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap.Request.Variations != DefaultVariations {
		t.Fatalf("variations = %d, want default %d", snap.Request.Variations, DefaultVariations)
	}
	if snap.Request.Format != FormatIcon {
		t.Fatalf("format = %q, want icon", snap.Request.Format)
	}
	waitTerminal(t, orch, snap.ID)
}

func TestSubmitQueueFull(t *testing.T) {
	// The orchestrator is never started, so nothing drains the queue.
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	proc, err := postproc.New(postproc.Options{})
	if err != nil {
		t.Fatalf("postproc.New: %v", err)
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	orch := NewOrchestrator(NewStore(), &stubPort{}, proc, files, logger, Options{
		Backend:   backend.SDXL,
		QueueSize: 1,
	})

	req := GenerationRequest{Subject: "rocket", Style: prompt.StyleIOS, Variations: 1, Format: FormatIcon}
	if _, err := orch.Submit(context.Background(), req); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err = orch.Submit(context.Background(), req)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	// The rejected job is visible and failed rather than silently dropped.
	var failed int
	for _, snap := range orch.Jobs(0) {
		if snap.Status == StatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed jobs = %d, want 1", failed)
	}
}

func TestSubmitQuotaRejection(t *testing.T) {
	quotaErr := errors.New("quota exceeded")
	port := &stubPort{image: testPNG(t, 32, color.NRGBA{A: 255})}
	orch, _ := newTestOrchestrator(t, port, Options{
		Backend: backend.SDXL,
		Workers: 1,
		Quota: func(ctx context.Context, req GenerationRequest) error {
			return quotaErr
		},
	})

	_, err := orch.Submit(context.Background(), GenerationRequest{
		Subject: "rocket", Style: prompt.StyleIOS, Variations: 1, Format: FormatIcon,
	})
	if !errors.Is(err, quotaErr) {
		t.Fatalf("err = %v, want quota error", err)
	}
}

func TestBackendFailureFailsJob(t *testing.T) {
	port := &stubPort{err: errors.New("model overloaded")}
	orch, _ := newTestOrchestrator(t, port, Options{Backend: backend.SDXL, Workers: 1})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject: "rocket", Style: prompt.StyleIOS, Variations: 1, Format: FormatIcon,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Progress != 0 {
		t.Fatalf("progress = %d, want 0 after failure", done.Progress)
	}
	if done.Error == "" {
		t.Fatalf("expected the backend error to be recorded")
	}
}

// hangingPort blocks until the per-call deadline cancels it.
type hangingPort struct{}

func (hangingPort) Execute(ctx context.Context, id backend.ID, params backend.Params) ([][]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBackendTimeoutFailsJob(t *testing.T) {
	orch, _ := newTestOrchestrator(t, hangingPort{}, Options{
		Backend:     backend.SDXL,
		Workers:     1,
		CallTimeout: 50 * time.Millisecond,
	})

	snap, err := orch.Submit(context.Background(), GenerationRequest{
		Subject: "rocket", Style: prompt.StyleIOS, Variations: 1, Format: FormatIcon,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitTerminal(t, orch, snap.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %q, want failed after backend timeout", done.Status)
	}
	if done.Progress != 0 {
		t.Fatalf("progress = %d, want 0 after failure", done.Progress)
	}
	if !strings.Contains(done.Error, context.DeadlineExceeded.Error()) {
		t.Fatalf("error = %q, want a deadline cause", done.Error)
	}
}
