package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/probe"
	"captionclip/internal/progress"
	"captionclip/internal/resolver"
	"captionclip/internal/util"
)

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	results []progress.Result
}

func (r *recordingReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}
func (r *recordingReporter) Log(progress.Log) {}
func (r *recordingReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingReporter) resultsFor(jobID string) []progress.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Result
	for _, res := range r.results {
		if res.JobID == jobID {
			out = append(out, res)
		}
	}
	return out
}

// fakeEngine plays ffmpeg by writing the output file. With fail set it
// writes a partial file and returns an engine error. block waits for ctx.
type fakeEngine struct {
	mu    sync.Mutex
	invs  []encoder.Invocation
	fail  bool
	block bool
	onRun func()
}

func (f *fakeEngine) Run(ctx context.Context, inv encoder.Invocation, obs encoder.Observer) error {
	f.mu.Lock()
	f.invs = append(f.invs, inv)
	onRun := f.onRun
	f.mu.Unlock()
	if onRun != nil {
		onRun()
	}
	if err := os.WriteFile(inv.OutputPath, []byte("media:"+filepath.Base(inv.InputPath)), 0o644); err != nil {
		return err
	}
	if f.block {
		<-ctx.Done()
		return &encoder.EngineError{Code: -1, Message: "ffmpeg interrupted: " + ctx.Err().Error(), Err: ctx.Err()}
	}
	if f.fail {
		return &encoder.EngineError{Code: 1, Message: "Invalid data found when processing input"}
	}
	if obs.Reporter != nil {
		obs.Reporter.Update(progress.Update{JobID: obs.JobID, Stage: obs.Stage, Percent: -1, Message: "00:00:01.0"})
	}
	return nil
}

func (f *fakeEngine) last() encoder.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invs[len(f.invs)-1]
}

type stubProber struct {
	info probe.Info
	err  error
}

func (s stubProber) Probe(context.Context, string) (probe.Info, error) { return s.info, s.err }

type harness struct {
	c   *Coordinator
	ws  *util.Workspace
	eng *fakeEngine
	rep *recordingReporter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	ws, err := util.OpenWorkspace(filepath.Join(t.TempDir(), "ws"))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{ws: ws, eng: &fakeEngine{}, rep: &recordingReporter{}}
	base := []Option{
		WithWorkspace(ws),
		WithEngine(h.eng),
		WithReporter(h.rep),
		WithProber(stubProber{info: probe.Info{Width: 1920, Height: 1080, DurationSec: 2}}),
		WithFont("Impact"),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	h.c = c
	return h
}

func (h *harness) workspaceFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.ws.Dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func writeFile(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("%s should exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("%s should be gone (stat err %v)", path, err)
	}
}

func TestNew_RequiresWorkspaceAndEngine(t *testing.T) {
	if _, err := New(WithEngine(&fakeEngine{})); err == nil {
		t.Error("missing workspace accepted")
	}
	ws, _ := util.OpenWorkspace(t.TempDir())
	if _, err := New(WithWorkspace(ws)); err == nil {
		t.Error("missing engine accepted")
	}
}

func TestAcquire_LocalGifKeepsUserFile(t *testing.T) {
	h := newHarness(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "cat.gif"))

	res, err := h.c.Acquire(context.Background(), src)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	mustExist(t, src)
	mustExist(t, res.CanonicalMediaPath)
	if !h.ws.Owns(res.CanonicalMediaPath) || filepath.Ext(res.CanonicalMediaPath) != encoder.CanonicalExt {
		t.Errorf("canonical = %s", res.CanonicalMediaPath)
	}
	if res.Kind != model.KindGif || res.Width != 1920 || res.Height != 1080 {
		t.Errorf("result = %+v", res)
	}
	inv := h.eng.last()
	if inv.InputPath != src || len(inv.InputOptions) == 0 || inv.InputOptions[0] != "-ignore_loop" {
		t.Errorf("normalize invocation = %+v", inv)
	}
	if files := h.workspaceFiles(t); len(files) != 1 {
		t.Errorf("workspace = %v, want only the canonical file", files)
	}
	snap, err := h.c.Jobs().Get(res.JobID)
	if err != nil || snap.State != model.StateSucceeded || snap.OutputPath != res.CanonicalMediaPath || len(snap.TempAssets) != 0 {
		t.Errorf("snapshot = %+v, %v", snap, err)
	}
	if got := h.rep.resultsFor(res.JobID); len(got) != 1 || got[0].Err != nil {
		t.Errorf("results = %+v", got)
	}
}

func TestAcquire_MissingLocalFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Acquire(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	if model.KindOf(err) != model.ErrKindTranscode {
		t.Fatalf("err = %v, want transcode failure", err)
	}
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v", files)
	}
}

func TestAcquire_EmptyReference(t *testing.T) {
	h := newHarness(t)
	if _, err := h.c.Acquire(context.Background(), "  "); model.KindOf(err) != model.ErrKindInvalidRequest {
		t.Fatalf("err = %v", err)
	}
	if jobs := h.c.Jobs().List(); len(jobs) != 0 {
		t.Errorf("validation failure created jobs: %+v", jobs)
	}
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/clip.mp4", "/cat.gif":
			w.Write([]byte("bytes"))
		case "/cut.mp4":
			w.Header().Set("Content-Length", "1000")
			w.Write([]byte("partial"))
		case "/view/cat":
			fmt.Fprintf(w, `<html><img class="Gif" src="%s/cat.gif"></html>`, srv.URL)
		case "/view/empty":
			w.Write([]byte(`<html></html>`))
		default:
			http.NotFound(w, req)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquire_RemoteDeletesDownloadAfterNormalize(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, WithHTTPClient(srv.Client()))

	res, err := h.c.Acquire(context.Background(), srv.URL+"/clip.mp4")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	inv := h.eng.last()
	if !strings.HasPrefix(filepath.Base(inv.InputPath), "source-") {
		t.Fatalf("normalize input = %s, want downloaded source", inv.InputPath)
	}
	mustNotExist(t, inv.InputPath)
	if files := h.workspaceFiles(t); len(files) != 1 || files[0] != filepath.Base(res.CanonicalMediaPath) {
		t.Errorf("workspace = %v", files)
	}

	var stages []progress.Stage
	for _, u := range h.rep.updates {
		if u.JobID == res.JobID {
			stages = append(stages, u.Stage)
		}
	}
	order := []progress.Stage{progress.StageResolving, progress.StageFetching, progress.StageNormalizing}
	i := 0
	for _, s := range stages {
		if i < len(order) && s == order[i] {
			i++
		}
	}
	if i != len(order) {
		t.Errorf("stages = %v, want %v in order", stages, order)
	}
}

func TestAcquire_IndirectionPage(t *testing.T) {
	srv := mediaServer(t)
	r := resolver.New(resolver.WithHTTPClient(srv.Client()), resolver.WithIndirectionHosts([]string{"127.0.0.1"}))
	h := newHarness(t, WithHTTPClient(srv.Client()), WithResolver(r))

	res, err := h.c.Acquire(context.Background(), srv.URL+"/view/cat")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Kind != model.KindGif || res.Source != srv.URL+"/cat.gif" {
		t.Errorf("result = %+v", res)
	}
	if inv := h.eng.last(); filepath.Ext(inv.InputPath) != ".gif" || len(inv.InputOptions) == 0 {
		t.Errorf("normalize invocation = %+v", inv)
	}

	_, err = h.c.Acquire(context.Background(), srv.URL+"/view/empty")
	if model.KindOf(err) != model.ErrKindNoMediaURLFound {
		t.Fatalf("err = %v, want no media url", err)
	}
}

func TestAcquire_FailuresLeaveNoTempAssets(t *testing.T) {
	srv := mediaServer(t)
	tests := []struct {
		name     string
		ref      string
		fail     bool
		wantKind model.ErrorKind
	}{
		{"download status", "/missing.mp4", false, model.ErrKindDownload},
		{"normalize failure", "/clip.mp4", true, model.ErrKindTranscode},
		{"download cut off mid-body", "/cut.mp4", false, model.ErrKindDownload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithHTTPClient(srv.Client()))
			h.eng.fail = tt.fail

			res, err := h.c.Acquire(context.Background(), srv.URL+tt.ref)
			if model.KindOf(err) != tt.wantKind {
				t.Fatalf("err = %v (%s), want %s", err, model.KindOf(err), tt.wantKind)
			}
			if files := h.workspaceFiles(t); len(files) != 0 {
				t.Errorf("workspace = %v, want empty", files)
			}
			snap, _ := h.c.Jobs().Get(res.JobID)
			if snap.State != model.StateFailed || snap.ErrorKind != tt.wantKind {
				t.Errorf("snapshot = %+v", snap)
			}
			if got := h.rep.resultsFor(res.JobID); len(got) != 1 || got[0].Err == nil {
				t.Errorf("results = %+v", got)
			}
		})
	}
}

func TestAcquire_CancelRunsCleanup(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, WithHTTPClient(srv.Client()))
	h.eng.block = true
	h.eng.onRun = func() {
		for _, s := range h.c.Jobs().List() {
			if err := h.c.Jobs().Cancel(s.ID); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		}
	}

	res, err := h.c.Acquire(context.Background(), srv.URL+"/clip.mp4")
	if model.KindOf(err) != model.ErrKindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v", files)
	}
	if err := h.c.Jobs().Cancel(res.JobID); !errors.Is(err, ErrJobFinished) {
		t.Errorf("second cancel = %v, want ErrJobFinished", err)
	}
}

func TestAcquire_EngineTimeout(t *testing.T) {
	h := newHarness(t, WithTimeouts(Timeouts{Engine: 20 * time.Millisecond}))
	h.eng.block = true
	src := writeFile(t, filepath.Join(t.TempDir(), "clip.mp4"))

	_, err := h.c.Acquire(context.Background(), src)
	if model.KindOf(err) != model.ErrKindTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
	mustExist(t, src)
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v", files)
	}
}

func TestAcquire_ConcurrentJobsUseDistinctNames(t *testing.T) {
	h := newHarness(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "clip.mp4"))

	const n = 16
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.c.Acquire(context.Background(), src)
			paths[i], errs[i] = res.CanonicalMediaPath, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, p := range paths {
		if errs[i] != nil {
			t.Fatalf("job %d: %v", i, errs[i])
		}
		if seen[p] {
			t.Fatalf("duplicate canonical path %s", p)
		}
		seen[p] = true
	}
	if files := h.workspaceFiles(t); len(files) != n {
		t.Errorf("workspace has %d files, want %d", len(files), n)
	}
}

func TestFinish_TerminalTransitionHappensOnce(t *testing.T) {
	h := newHarness(t)
	job, _ := h.c.start(context.Background(), model.JobRender)
	asset := writeFile(t, h.ws.NewPath("x", ".webm"))
	job.own(asset)
	job.own(asset)
	if got := job.Snapshot().TempAssets; len(got) != 1 || got[0] != (model.TempAsset{Path: asset, Owner: job.ID}) {
		t.Fatalf("assets = %+v", got)
	}

	first := errors.New("first")
	if err := h.c.fail(job, first); err != first {
		t.Fatalf("fail must return the original error, got %v", err)
	}
	h.c.fail(job, errors.New("duplicate"))
	h.c.succeed(job, "/elsewhere")

	mustNotExist(t, asset)
	if got := h.rep.resultsFor(job.ID); len(got) != 1 || got[0].Err != first {
		t.Fatalf("results = %+v", got)
	}
	if snap := job.Snapshot(); snap.State != model.StateFailed || len(snap.TempAssets) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := job.advance(model.StateExporting); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("advance after terminal = %v", err)
	}
}

func TestJob_ForwardOnly(t *testing.T) {
	j := newJob(model.JobAcquire, nil)
	if err := j.advance(model.StateNormalizing); err != nil {
		t.Fatal(err)
	}
	if err := j.advance(model.StateFetching); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("backwards advance = %v", err)
	}
	if err := j.advance(model.StateSucceeded); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("terminal states are reached through terminate, got %v", err)
	}
}

func TestRegistry_UnknownJob(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get = %v", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel = %v", err)
	}
}

func TestRegistry_PrunesFinishedJobs(t *testing.T) {
	r := NewRegistry()
	var first *Job
	for i := 0; i < maxFinished+10; i++ {
		j := newJob(model.JobExport, nil)
		j.terminate("", nil)
		if first == nil {
			first = j
		}
		r.add(j)
	}
	if n := len(r.List()); n != maxFinished {
		t.Errorf("kept %d jobs, want %d", n, maxFinished)
	}
	if _, err := r.Get(first.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("oldest job should be pruned")
	}
}
