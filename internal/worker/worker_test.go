package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storyreel/backend/internal/db"
	"github.com/storyreel/backend/internal/models"
	"github.com/storyreel/backend/internal/queue"
	"github.com/storyreel/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Fakes
// The store fake mirrors the real database layer: reads return copies, writes
// apply the same field updates the SQL statements do.
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*models.Video
}

func newFakeStore(videos ...*models.Video) *fakeStore {
	s := &fakeStore{videos: make(map[uuid.UUID]*models.Video)}
	for _, v := range videos {
		s.videos[v.ID] = cloneVideo(v)
	}
	return s
}

func cloneVideo(v *models.Video) *models.Video {
	c := *v
	if v.Scenes != nil {
		c.Scenes = make(models.Scenes, len(v.Scenes))
		copy(c.Scenes, v.Scenes)
	}
	if v.ImageURLs != nil {
		c.ImageURLs = append(pq.StringArray(nil), v.ImageURLs...)
	}
	return &c
}

func (s *fakeStore) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneVideo(v), nil
}

func (s *fakeStore) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = status
		v.ErrorMessage = nil
	}
	return nil
}

func (s *fakeStore) UpdateVideoError(ctx context.Context, id uuid.UUID, status models.VideoStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = status
		v.ErrorMessage = &errorMessage
	}
	return nil
}

func (s *fakeStore) SetVideoScript(ctx context.Context, id uuid.UUID, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Script = &script
		v.Status = models.StatusScriptGenerated
		v.Scenes = nil
		v.ImageURLs = nil
		v.AudioURL = nil
		v.CaptionsURL = nil
		v.FinalVideoURL = nil
		v.TotalDurationSeconds = nil
		v.UploadProgressPercent = nil
		v.CaptionsOmitted = false
		v.ErrorMessage = nil
	}
	return nil
}

func (s *fakeStore) SetVideoStoryboard(ctx context.Context, id uuid.UUID, scenes models.Scenes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Scenes = scenes
		v.Status = models.StatusStoryboardGenerated
		v.ImageURLs = nil
		v.AudioURL = nil
		v.CaptionsURL = nil
		v.FinalVideoURL = nil
		v.TotalDurationSeconds = nil
		v.UploadProgressPercent = nil
		v.CaptionsOmitted = false
		v.ErrorMessage = nil
	}
	return nil
}

func (s *fakeStore) UpdateVideoScenes(ctx context.Context, id uuid.UUID, scenes models.Scenes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Scenes = make(models.Scenes, len(scenes))
		copy(v.Scenes, scenes)
	}
	return nil
}

func (s *fakeStore) SetVideoAudio(ctx context.Context, id uuid.UUID, audioURL string, durationSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.AudioURL = &audioURL
		v.TotalDurationSeconds = &durationSeconds
	}
	return nil
}

func (s *fakeStore) SetVideoCaptions(ctx context.Context, id uuid.UUID, captionsURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.CaptionsURL = &captionsURL
	}
	return nil
}

func (s *fakeStore) UpdateVideoUploadProgress(ctx context.Context, id uuid.UUID, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.UploadProgressPercent = &percent
	}
	return nil
}

func (s *fakeStore) SetVideoAssetsGenerated(ctx context.Context, id uuid.UUID, imageURLs pq.StringArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = models.StatusAssetsGenerated
		v.ImageURLs = imageURLs
		v.FinalVideoURL = nil
		v.CaptionsOmitted = false
		v.ErrorMessage = nil
	}
	return nil
}

func (s *fakeStore) SetVideoCompleted(ctx context.Context, id uuid.UUID, finalVideoURL string, totalDurationSeconds float64, captionsOmitted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = models.StatusCompleted
		v.FinalVideoURL = &finalVideoURL
		v.TotalDurationSeconds = &totalDurationSeconds
		v.CaptionsOmitted = captionsOmitted
		v.ErrorMessage = nil
	}
	return nil
}

func (s *fakeStore) add(v *models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = cloneVideo(v)
}

// setStatus simulates a concurrent writer, e.g. a cancel landing mid-stage.
func (s *fakeStore) setStatus(id uuid.UUID, status models.VideoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = status
	}
}

func (s *fakeStore) mustGet(t *testing.T, id uuid.UUID) *models.Video {
	t.Helper()
	v, err := s.GetVideo(context.Background(), id)
	if err != nil {
		t.Fatalf("expected video %s in store, got %v", id, err)
	}
	return v
}

type fakeBlobs struct {
	mu          sync.Mutex
	objects     map[string][]byte
	downloads   []string
	uploadErr   func(path string) error
	downloadErr func(path string) error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		if err := b.uploadErr(path); err != nil {
			return err
		}
	}
	b.objects[path] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBlobs) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return b.Upload(ctx, storagePath, data, contentType)
}

func (b *fakeBlobs) Download(ctx context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads = append(b.downloads, path)
	if b.downloadErr != nil {
		if err := b.downloadErr(path); err != nil {
			return nil, err
		}
	}
	data, ok := b.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return append([]byte(nil), data...), nil
}

func (b *fakeBlobs) downloadCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.downloads {
		if p == path {
			n++
		}
	}
	return n
}

func (b *fakeBlobs) GetPublicURL(path string) string {
	return "https://blob.test/" + path
}

func (b *fakeBlobs) seed(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = data
}

func (b *fakeBlobs) has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

func (b *fakeBlobs) object(t *testing.T, path string) []byte {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		t.Fatalf("expected object %s in blob store", path)
	}
	return data
}

type fakeScripter struct {
	mu     sync.Mutex
	script string
	err    error
	calls  int
	hook   func()
}

func (f *fakeScripter) GenerateScript(ctx context.Context, topic string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.script, nil
}

type fakeStoryboarder struct {
	mu    sync.Mutex
	plans []services.ScenePlan
	err   error
	calls int
}

func (f *fakeStoryboarder) GenerateStoryboard(ctx context.Context, script string) ([]services.ScenePlan, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.plans, nil
}

// fakeImages delegates to fn with a 1-based call number so tests can fail
// specific calls. A nil fn always succeeds.
type fakeImages struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, prompt string) ([]byte, error)
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(call, prompt)
	}
	return []byte(fmt.Sprintf("png-%d", call)), nil
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTTS struct {
	mu    sync.Mutex
	resp  *services.TTSResponse
	errs  []error // consumed one per call, nil entries succeed
	calls int
}

func (f *fakeTTS) GenerateSpeech(ctx context.Context, text string) (*services.TTSResponse, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.resp, nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	segments []services.CaptionSegment
	err      error
	calls    int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) ([]services.CaptionSegment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

// fakeCompositor records every invocation. Successful runs write the output
// file so the publish step has something to upload.
type fakeCompositor struct {
	mu          sync.Mutex
	runs        [][]string
	duration    float64
	durationErr error
	failRun     func(args []string) (string, error)
}

func (c *fakeCompositor) Run(ctx context.Context, args []string) (string, error) {
	c.mu.Lock()
	c.runs = append(c.runs, append([]string(nil), args...))
	fail := c.failRun
	c.mu.Unlock()

	if fail != nil {
		if out, err := fail(args); err != nil {
			return out, err
		}
	}

	outputPath := args[len(args)-1]
	if err := os.WriteFile(outputPath, []byte("encoded-video"), 0644); err != nil {
		return "", err
	}
	return "frames encoded", nil
}

func (c *fakeCompositor) AudioDuration(ctx context.Context, path string) (float64, error) {
	if c.durationErr != nil {
		return 0, c.durationErr
	}
	return c.duration, nil
}

func (c *fakeCompositor) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	err      error
}

func (q *fakeQueue) EnqueueRender(ctx context.Context, videoID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, videoID)
	return nil
}

func (q *fakeQueue) DequeueRender(ctx context.Context, timeout time.Duration) (*queue.RenderJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.enqueued) == 0 {
		return nil, nil
	}
	id := q.enqueued[0]
	q.enqueued = q.enqueued[1:]
	return &queue.RenderJob{VideoID: id, EnqueuedAt: time.Now()}, nil
}

func (q *fakeQueue) enqueuedIDs() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.enqueued...)
}

// ---------------------------------------------------------------------------
// Test wiring
// ---------------------------------------------------------------------------

type testEnv struct {
	store       *fakeStore
	blobs       *fakeBlobs
	scripts     *fakeScripter
	boards      *fakeStoryboarder
	images      *fakeImages
	tts         *fakeTTS
	transcriber *fakeTranscriber
	comp        *fakeCompositor
	tempRoot    string
	worker      *Worker
}

func newTestWorker(t *testing.T, videos ...*models.Video) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   newFakeStore(videos...),
		blobs:   newFakeBlobs(),
		scripts: &fakeScripter{script: "Lighthouses have guided sailors home for two thousand years."},
		boards:  &fakeStoryboarder{plans: testPlans()},
		images:  &fakeImages{},
		tts: &fakeTTS{resp: &services.TTSResponse{
			AudioData:       []byte("narration-bytes"),
			DurationSeconds: 12,
			Format:          "mp3",
		}},
		transcriber: &fakeTranscriber{segments: []services.CaptionSegment{
			{Start: 0, End: 6, Text: "Lighthouses have guided sailors home"},
			{Start: 6, End: 12, Text: "for two thousand years"},
		}},
		comp:     &fakeCompositor{duration: 12},
		tempRoot: t.TempDir(),
	}
	env.worker = New(env.store, nil, env.blobs, env.scripts, env.boards, env.images, nil,
		env.tts, env.transcriber, env.comp, env.tempRoot)
	return env
}

func testPlans() []services.ScenePlan {
	return []services.ScenePlan{
		{Narration: "Lighthouses began as open fires on hilltops.", ImagePrompt: "an ancient fire beacon on a cliff"},
		{Narration: "The Romans built towers that burned through the night.", ImagePrompt: "a roman stone lighthouse at dusk"},
		{Narration: "Today their lamps are automated, but the towers remain.", ImagePrompt: "a modern lighthouse under the stars"},
	}
}

func newVideo(status models.VideoStatus) *models.Video {
	return &models.Video{
		ID:        uuid.New(),
		Status:    status,
		InputText: "the history of lighthouses",
	}
}

func storyboardedVideo() *models.Video {
	v := newVideo(models.StatusStoryboardGenerated)
	v.Script = strPtr("Lighthouses have guided sailors home for two thousand years.")
	plans := testPlans()
	scenes := make(models.Scenes, 0, len(plans))
	for i, p := range plans {
		scenes = append(scenes, models.Scene{Index: i, NarrationText: p.Narration, ImagePrompt: p.ImagePrompt})
	}
	v.Scenes = scenes
	return v
}

func f64Ptr(f float64) *float64 { return &f }

func requireKind(t *testing.T, err error, kind services.ErrorKind) *services.Error {
	t.Helper()
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected a classified error, got %v", err)
	}
	if svcErr.Kind != kind {
		t.Fatalf("expected %s error, got %s: %s", kind, svcErr.Kind, svcErr.Message)
	}
	return svcErr
}

// ---------------------------------------------------------------------------
// Script stage
// ---------------------------------------------------------------------------

func TestGenerateScript(t *testing.T) {
	video := newVideo(models.StatusCreated)
	env := newTestWorker(t, video)

	got, err := env.worker.GenerateScript(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.Status != models.StatusScriptGenerated {
		t.Errorf("expected status script_generated, got %s", got.Status)
	}
	if got.Script == nil || *got.Script != env.scripts.script {
		t.Errorf("expected script saved, got %v", got.Script)
	}
	if env.scripts.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", env.scripts.calls)
	}
}

func TestGenerateScriptProviderFailure(t *testing.T) {
	video := newVideo(models.StatusCreated)
	env := newTestWorker(t, video)
	env.scripts.err = &services.Error{Kind: services.ErrQuotaExceeded, Provider: "openai", Message: "billing limit"}

	got, err := env.worker.GenerateScript(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected recorded failure without an error, got %v", err)
	}

	// Verify the video fell back to created so the stage can be re-triggered.
	if got.Status != models.StatusCreated {
		t.Errorf("expected status created, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "script generation failed") {
		t.Errorf("expected recorded error message, got %v", got.ErrorMessage)
	}
}

func TestGenerateScriptRejectsBusyVideo(t *testing.T) {
	video := newVideo(models.StatusAssetsGenerating)
	env := newTestWorker(t, video)

	_, err := env.worker.GenerateScript(context.Background(), video.ID)
	svcErr := requireKind(t, err, services.ErrInvalidInput)
	if !strings.Contains(svcErr.Message, "busy") {
		t.Errorf("expected busy rejection, got %q", svcErr.Message)
	}
	if env.scripts.calls != 0 {
		t.Errorf("expected no provider calls, got %d", env.scripts.calls)
	}
	if got := env.store.mustGet(t, video.ID); got.Status != models.StatusAssetsGenerating {
		t.Errorf("expected status untouched, got %s", got.Status)
	}
}

func TestGenerateScriptRejectsCancelledVideo(t *testing.T) {
	video := newVideo(models.StatusCancelled)
	env := newTestWorker(t, video)

	_, err := env.worker.GenerateScript(context.Background(), video.ID)
	svcErr := requireKind(t, err, services.ErrInvalidInput)
	if svcErr.Message != "video generation was cancelled" {
		t.Errorf("expected cancelled rejection, got %q", svcErr.Message)
	}
}

func TestGenerateScriptDiscardsResultAfterCancel(t *testing.T) {
	video := newVideo(models.StatusCreated)
	env := newTestWorker(t, video)
	env.scripts.hook = func() {
		env.store.setStatus(video.ID, models.StatusCancelled)
	}

	got, err := env.worker.GenerateScript(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}
	if got.Script != nil {
		t.Errorf("expected script discarded after cancel, got %q", *got.Script)
	}
}

func TestGenerateScriptUnknownVideo(t *testing.T) {
	env := newTestWorker(t)

	_, err := env.worker.GenerateScript(context.Background(), uuid.New())
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Storyboard stage
// ---------------------------------------------------------------------------

func TestGenerateStoryboard(t *testing.T) {
	video := newVideo(models.StatusScriptGenerated)
	video.Script = strPtr("Lighthouses have guided sailors home for two thousand years.")
	env := newTestWorker(t, video)

	got, err := env.worker.GenerateStoryboard(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.Status != models.StatusStoryboardGenerated {
		t.Errorf("expected status storyboard_generated, got %s", got.Status)
	}
	if len(got.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(got.Scenes))
	}
	for i, scene := range got.Scenes {
		if scene.Index != i {
			t.Errorf("expected scene %d index %d, got %d", i, i, scene.Index)
		}
		if scene.NarrationText != testPlans()[i].Narration {
			t.Errorf("expected scene %d narration from the plan, got %q", i, scene.NarrationText)
		}
		if scene.ImagePrompt == "" {
			t.Errorf("expected scene %d to carry an image prompt", i)
		}
		if scene.ImageURL != nil {
			t.Errorf("expected scene %d without an image yet, got %v", i, *scene.ImageURL)
		}
	}
}

func TestGenerateStoryboardRequiresScript(t *testing.T) {
	video := newVideo(models.StatusCreated)
	env := newTestWorker(t, video)

	_, err := env.worker.GenerateStoryboard(context.Background(), video.ID)
	svcErr := requireKind(t, err, services.ErrInvalidInput)
	if svcErr.Message != "video has no script" {
		t.Errorf("expected missing-script rejection, got %q", svcErr.Message)
	}
	if env.boards.calls != 0 {
		t.Errorf("expected no provider calls, got %d", env.boards.calls)
	}
}

func TestGenerateStoryboardProviderFailure(t *testing.T) {
	video := newVideo(models.StatusScriptGenerated)
	video.Script = strPtr("a script")
	env := newTestWorker(t, video)
	env.boards.err = &services.Error{Kind: services.ErrContentPolicy, Provider: "openai", Message: "flagged"}

	got, err := env.worker.GenerateStoryboard(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected recorded failure without an error, got %v", err)
	}
	if got.Status != models.StatusStoryboardFailed {
		t.Errorf("expected status storyboard_failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "storyboard generation failed") {
		t.Errorf("expected recorded error message, got %v", got.ErrorMessage)
	}
}

func TestGenerateStoryboardRetryAfterFailure(t *testing.T) {
	// storyboard_failed is terminal until a retry comes in; the stage must
	// accept that retry.
	video := newVideo(models.StatusStoryboardFailed)
	video.Script = strPtr("a script")
	video.ErrorMessage = strPtr("storyboard generation failed: flagged")
	env := newTestWorker(t, video)

	got, err := env.worker.GenerateStoryboard(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected retry to run, got %v", err)
	}
	if got.Status != models.StatusStoryboardGenerated {
		t.Errorf("expected status storyboard_generated, got %s", got.Status)
	}
	if got.ErrorMessage != nil {
		t.Errorf("expected stale error cleared, got %q", *got.ErrorMessage)
	}
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestCancelVideo(t *testing.T) {
	video := newVideo(models.StatusAssetsGenerating)
	env := newTestWorker(t, video)

	got, err := env.worker.Cancel(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}
}

func TestCancelVideoIdempotent(t *testing.T) {
	video := newVideo(models.StatusCancelled)
	env := newTestWorker(t, video)

	got, err := env.worker.Cancel(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected cancelling twice to be a no-op, got %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}
}

func TestCancelVideoRejectsCompleted(t *testing.T) {
	video := newVideo(models.StatusCompleted)
	env := newTestWorker(t, video)

	_, err := env.worker.Cancel(context.Background(), video.ID)
	svcErr := requireKind(t, err, services.ErrInvalidInput)
	if !strings.Contains(svcErr.Message, "completed") {
		t.Errorf("expected completed rejection, got %q", svcErr.Message)
	}
	if got := env.store.mustGet(t, video.ID); got.Status != models.StatusCompleted {
		t.Errorf("expected status untouched, got %s", got.Status)
	}
}

func TestCancelVideoBeforeStart(t *testing.T) {
	video := newVideo(models.StatusCreated)
	env := newTestWorker(t, video)

	got, err := env.worker.Cancel(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", got.Status)
	}
}
