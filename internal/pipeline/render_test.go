package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/probe"
)

func argsOf(inv encoder.Invocation) string {
	return strings.Join(encoder.BuildArgs(inv, false), " ")
}

func TestRender_ScalesCaptionsToIntrinsicWidth(t *testing.T) {
	h := newHarness(t)
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	res, err := h.c.Render(context.Background(), RenderRequest{
		CanonicalMediaPath: canonical,
		IntrinsicWidth:     1920,
		DisplayWidth:       960,
		Captions:           []model.CaptionSpec{{Text: "Hello", X: 100, Y: 50, FontSize: 24}},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	args := argsOf(h.eng.last())
	for _, want := range []string{"text=Hello", "fontsize=50.4", "x=200", "y=100", "font=Impact"} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	mustNotExist(t, canonical)
	mustExist(t, res.OutputPath)
	if filepath.Dir(res.OutputPath) != filepath.Dir(canonical) || !strings.HasPrefix(filepath.Base(res.OutputPath), "render-") {
		t.Errorf("output = %s", res.OutputPath)
	}
	if files := h.workspaceFiles(t); len(files) != 1 {
		t.Errorf("workspace = %v", files)
	}
}

func TestRender_ProbesMissingIntrinsicWidth(t *testing.T) {
	h := newHarness(t, WithProber(stubProber{info: probe.Info{Width: 640, Height: 360}}))
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	_, err := h.c.Render(context.Background(), RenderRequest{
		CanonicalMediaPath: canonical,
		DisplayWidth:       320,
		Captions:           []model.CaptionSpec{{Text: "hi", X: 10, Y: 10, FontSize: 20}},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if args := argsOf(h.eng.last()); !strings.Contains(args, "fontsize=42") || !strings.Contains(args, "x=20") {
		t.Errorf("args = %s", args)
	}
}

func TestRender_ProbeFailureWithoutIntrinsicWidth(t *testing.T) {
	h := newHarness(t, WithProber(stubProber{err: errors.New("moov atom not found")}))
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	_, err := h.c.Render(context.Background(), RenderRequest{CanonicalMediaPath: canonical, DisplayWidth: 320})
	if model.KindOf(err) != model.ErrKindRender {
		t.Fatalf("err = %v", err)
	}
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v", files)
	}
}

func TestRender_NoCaptionsCopiesThrough(t *testing.T) {
	h := newHarness(t)
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	if _, err := h.c.Render(context.Background(), RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: 100, DisplayWidth: 100}); err != nil {
		t.Fatal(err)
	}
	if args := argsOf(h.eng.last()); strings.Contains(args, "drawtext") {
		t.Errorf("unexpected caption filter: %s", args)
	}
}

func TestRender_CenteredText(t *testing.T) {
	h := newHarness(t)
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	if _, err := h.c.Render(context.Background(), RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: 100, DisplayWidth: 100, CenteredText: "LOL"}); err != nil {
		t.Fatal(err)
	}
	args := argsOf(h.eng.last())
	for _, want := range []string{"text=LOL", "fontsize=48", "x=(w-text_w)/2"} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
}

func TestRender_UserFileIsNotConsumed(t *testing.T) {
	h := newHarness(t)
	outside := writeFile(t, filepath.Join(t.TempDir(), "mine.webm"))

	res, err := h.c.Render(context.Background(), RenderRequest{CanonicalMediaPath: outside, IntrinsicWidth: 100, DisplayWidth: 50})
	if err != nil {
		t.Fatal(err)
	}
	mustExist(t, outside)
	mustExist(t, res.OutputPath)
}

func TestRender_FailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.eng.fail = true
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	res, err := h.c.Render(context.Background(), RenderRequest{
		CanonicalMediaPath: canonical,
		IntrinsicWidth:     200,
		DisplayWidth:       100,
		Captions:           []model.CaptionSpec{{Text: "x", X: 1, Y: 1, FontSize: 10}},
	})
	var re *model.RenderError
	if !errors.As(err, &re) || !strings.Contains(re.Message, "Invalid data") {
		t.Fatalf("err = %v, want RenderError with engine message", err)
	}
	if res.OutputPath != "" {
		t.Errorf("failed render returned output %s", res.OutputPath)
	}
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v, want empty", files)
	}
	if got := h.rep.resultsFor(res.JobID); len(got) != 1 {
		t.Errorf("results = %+v", got)
	}
}

func TestRender_Validation(t *testing.T) {
	h := newHarness(t)
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))
	tests := []struct {
		name string
		req  RenderRequest
	}{
		{"zero display width", RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: 100}},
		{"negative intrinsic width", RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: -1, DisplayWidth: 100}},
		{"missing media", RenderRequest{IntrinsicWidth: 100, DisplayWidth: 100}},
		{"zero font size", RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: 100, DisplayWidth: 100,
			Captions: []model.CaptionSpec{{Text: "a", FontSize: 0}}}},
		{"centered plus positioned", RenderRequest{CanonicalMediaPath: canonical, IntrinsicWidth: 100, DisplayWidth: 100,
			CenteredText: "a", Captions: []model.CaptionSpec{{Text: "b", FontSize: 10}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.c.Render(context.Background(), tt.req)
			if model.KindOf(err) != model.ErrKindInvalidRequest {
				t.Fatalf("err = %v, want invalid request", err)
			}
		})
	}
	mustExist(t, canonical)
	if jobs := h.c.Jobs().List(); len(jobs) != 0 {
		t.Errorf("rejected requests created jobs: %+v", jobs)
	}
}

func TestRender_IntrinsicWidthRequiredWithoutProber(t *testing.T) {
	h := newHarness(t, WithProber(nil))
	_, err := h.c.Render(context.Background(), RenderRequest{CanonicalMediaPath: "x.webm", DisplayWidth: 10})
	if model.KindOf(err) != model.ErrKindInvalidRequest {
		t.Fatalf("err = %v", err)
	}
}

func TestPlanRender_DoesNotRun(t *testing.T) {
	h := newHarness(t)
	canonical := writeFile(t, h.ws.NewPath("canonical", encoder.CanonicalExt))

	inv, err := h.c.PlanRender(context.Background(), RenderRequest{
		CanonicalMediaPath: canonical,
		IntrinsicWidth:     1000,
		DisplayWidth:       500,
		Captions:           []model.CaptionSpec{{Text: "a:b", X: 1, Y: 2, FontSize: 10}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.eng.invs) != 0 || len(h.c.Jobs().List()) != 0 {
		t.Fatal("plan must not run the engine or create jobs")
	}
	if !strings.Contains(argsOf(inv), `text=a\\:b`) {
		t.Errorf("args = %s", argsOf(inv))
	}
	mustExist(t, canonical)
}

func TestExport_GIFLivesUntilRelease(t *testing.T) {
	h := newHarness(t)
	media := writeFile(t, h.ws.NewPath("render", encoder.CanonicalExt))

	gif, err := h.c.Export(context.Background(), media)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	inv := h.eng.last()
	args := argsOf(inv)
	if !strings.Contains(args, "-vf fps=25,scale=iw:ih") || !strings.Contains(args, "-f gif") {
		t.Errorf("args = %s", args)
	}
	if filepath.Ext(gif.Path) != ".gif" || !h.ws.Owns(gif.Path) {
		t.Errorf("gif path = %s", gif.Path)
	}
	mustExist(t, media)

	var buf bytes.Buffer
	if _, err := gif.WriteTo(&buf); err != nil || buf.Len() == 0 {
		t.Fatalf("WriteTo: %d bytes, %v", buf.Len(), err)
	}
	gif.Release()
	gif.Release()
	mustNotExist(t, gif.Path)
}

func TestExport_Failure(t *testing.T) {
	h := newHarness(t)
	if _, err := h.c.Export(context.Background(), filepath.Join(t.TempDir(), "gone.webm")); model.KindOf(err) != model.ErrKindTranscode {
		t.Fatalf("missing media err = %v", err)
	}

	h.eng.fail = true
	media := writeFile(t, filepath.Join(t.TempDir(), "in.webm"))
	if _, err := h.c.Export(context.Background(), media); model.KindOf(err) != model.ErrKindTranscode {
		t.Fatalf("engine failure err = %v", err)
	}
	if files := h.workspaceFiles(t); len(files) != 0 {
		t.Errorf("workspace = %v", files)
	}
	if _, err := os.Stat(media); err != nil {
		t.Errorf("input removed: %v", err)
	}
}
