package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/backmassage/darfix/internal/config"
	"github.com/backmassage/darfix/internal/ffmpeg"
	"github.com/backmassage/darfix/internal/logging"
	"github.com/backmassage/darfix/internal/probe"
)

// --- Fakes ---

// fakeProber answers by file basename. Unknown names fail to probe.
type fakeProber struct {
	mu     sync.Mutex
	infos  map[string]probe.VideoInfo
	probed []string
}

func newFakeProber() *fakeProber {
	return &fakeProber{infos: map[string]probe.VideoInfo{}}
}

func (f *fakeProber) set(name string, w, h int, dar string) {
	f.infos[name] = probe.VideoInfo{Width: w, Height: h, DeclaredDAR: dar}
}

func (f *fakeProber) Probe(_ context.Context, path string) (*probe.VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, path)
	info, ok := f.infos[filepath.Base(path)]
	if !ok {
		return nil, &probe.ProbeError{Path: path, Err: probe.ErrMalformedOutput}
	}
	info.Path = path
	return &info, nil
}

// fakeRemuxer writes "remuxed:<aspect>:" followed by the input bytes.
type fakeRemuxer struct {
	mu       sync.Mutex
	requests []ffmpeg.RemuxRequest
	inputs   map[string][]byte // input bytes as seen at remux time
	fail     map[string]bool   // by input basename
}

func newFakeRemuxer() *fakeRemuxer {
	return &fakeRemuxer{inputs: map[string][]byte{}, fail: map[string]bool{}}
}

func (f *fakeRemuxer) Remux(_ context.Context, req ffmpeg.RemuxRequest) ffmpeg.ExecResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	in, err := os.ReadFile(req.InputPath)
	if err != nil {
		return ffmpeg.ExecResult{Err: err}
	}
	f.inputs[req.InputPath] = in
	if f.fail[filepath.Base(req.InputPath)] {
		// Leave a partial temp behind like a crashed ffmpeg would.
		_ = os.WriteFile(req.OutputPath, []byte("partial"), 0o644)
		return ffmpeg.ExecResult{
			Stderr: "Invalid data found when processing input",
			Err:    &ffmpeg.RemuxError{Path: req.InputPath, Err: errors.New("exit status 1")},
		}
	}
	out := append([]byte("remuxed:"+req.Aspect+":"), in...)
	if err := os.WriteFile(req.OutputPath, out, 0o644); err != nil {
		return ffmpeg.ExecResult{Err: err}
	}
	return ffmpeg.ExecResult{}
}

type fakePublisher struct {
	mu   sync.Mutex
	rels []string
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, localPath, rel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	f.rels = append(f.rels, filepath.ToSlash(rel))
	return "https://videos.s3.amazonaws.com/" + filepath.ToSlash(rel), nil
}

// --- Helpers ---

func touch(t *testing.T, dir, name string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, name), "")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RootDir = root
	cfg.FfprobePath = "ffprobe"
	cfg.FfmpegPath = "ffmpeg"
	cfg.ColorMode = config.ColorNever
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &cfg
}

func testLogger(t *testing.T, cfg *config.Config) (*logging.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logging.NewWithWriters(cfg, &buf, &buf)
	if err != nil {
		t.Fatalf("NewWithWriters: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log, &buf
}

// --- Discover tests ---

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "clip.mp4")
	touch(t, dir, "intro.avi")
	touch(t, dir, "movie.mkv")
	touch(t, dir, "readme.txt")
	touch(t, dir, "LOUD.MP4")
	touch(t, dir, "Mixed.Avi")

	files, _, err := Discover(dir, []string{"fixed"}, []string{".mp4", ".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"LOUD.MP4", "Mixed.Avi", "clip.mp4", "intro.avi"}
	if got := relAll(t, dir, files); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover_PrunesFixedAndMarquee(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "top.mp4")
	writeFile(t, filepath.Join(dir, "fixed", "old.mp4"), "")
	writeFile(t, filepath.Join(dir, "games", "marquee", "m.mp4"), "")
	writeFile(t, filepath.Join(dir, "games", "snap", "s.mp4"), "")
	writeFile(t, filepath.Join(dir, "games", "marquee-old", "keep.mp4"), "")
	writeFile(t, filepath.Join(dir, "deep", "a", "fixed", "x.avi"), "")

	files, _, err := Discover(dir, []string{"fixed", "marquee"}, []string{".mp4", ".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"games/marquee-old/keep.mp4", "games/snap/s.mp4", "top.mp4"}
	if got := relAll(t, dir, files); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v (pruning is exact-name at any depth)", got, want)
	}
}

func TestDiscover_RootNamedLikePrunedDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fixed")
	writeFile(t, filepath.Join(root, "clip.mp4"), "")

	files, _, err := Discover(root, []string{"fixed"}, []string{".mp4"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("got %v, the root itself must not be pruned", files)
	}
}

func TestDiscover_RecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "2.mp4"), "")
	writeFile(t, filepath.Join(dir, "a", "z.mp4"), "")
	writeFile(t, filepath.Join(dir, "a", "y.avi"), "")

	files, _, err := Discover(dir, nil, []string{".mp4", ".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"a/y.avi", "a/z.mp4", "b/2.mp4"}
	if got := relAll(t, dir, files); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover_SkipsDirectoriesWithVideoExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "folder.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}
	files, _, err := Discover(dir, nil, []string{".mp4"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %v, want no files", files)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, _, err := Discover(filepath.Join(t.TempDir(), "nope"), nil, []string{".mp4"}); err == nil {
		t.Error("expected error for missing root")
	}
}

// lockDir makes dir unreadable for the test's duration.
func lockDir(t *testing.T, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	if err := os.Chmod(dir, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
}

func TestDiscover_UnreadableSubdirSkipped(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "clip.mp4")
	writeFile(t, filepath.Join(dir, "locked", "hidden.mp4"), "")
	writeFile(t, filepath.Join(dir, "open", "seen.avi"), "")
	lockDir(t, filepath.Join(dir, "locked"))

	files, skipped, err := Discover(dir, nil, []string{".mp4", ".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"clip.mp4", "open/seen.avi"}
	if got := relAll(t, dir, files); !slices.Equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if got := relAll(t, dir, skipped); !slices.Equal(got, []string{"locked"}) {
		t.Errorf("skipped = %v, want [locked]", got)
	}
}

func TestDiscover_UnreadableRootFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "root")
	writeFile(t, filepath.Join(dir, "clip.mp4"), "")
	lockDir(t, dir)

	if _, _, err := Discover(dir, nil, []string{".mp4"}); err == nil {
		t.Error("expected error for unreadable root")
	}
}

// --- ProcessFile tests ---

func TestProcessFile_CorrectsMismatchPair(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a", "clip.mp4")
	writeFile(t, src, "original-bytes")

	cfg := testConfig(t, root)
	log, out := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "4:3")
	remuxer := newFakeRemuxer()

	res := NewCorrector(cfg, log, prober, remuxer, nil).ProcessFile(context.Background(), src)
	if res.Err != nil || res.Status != StatusCorrected {
		t.Fatalf("status %s err %v\n%s", res.Status, res.Err, out)
	}

	copyPath := filepath.Join(root, "fixed", "a", "clip.mp4")
	finalPath := filepath.Join(root, "fixed", "a", "clip.mp4_corrected.mp4")
	tempPath := filepath.Join(root, "fixed", "a", "clip.mp4_temp.mp4")

	if got := readFile(t, copyPath); got != "original-bytes" {
		t.Errorf("copy = %q, want byte-identical source", got)
	}
	if got := readFile(t, finalPath); got != "remuxed:16:9:original-bytes" {
		t.Errorf("corrected = %q", got)
	}
	if exists(tempPath) {
		t.Error("temp file should be renamed away")
	}
	if got := readFile(t, src); got != "original-bytes" {
		t.Error("source must never be modified")
	}

	if len(remuxer.requests) != 1 {
		t.Fatalf("remux calls = %d", len(remuxer.requests))
	}
	req := remuxer.requests[0]
	if req.InputPath != copyPath || req.OutputPath != tempPath || req.Aspect != "16:9" {
		t.Errorf("request = %+v", req)
	}
	if string(remuxer.inputs[copyPath]) != "original-bytes" {
		t.Error("copy must be complete before remux starts")
	}
	if res.Output != finalPath || res.BytesCopied != int64(len("original-bytes")) {
		t.Errorf("result = %+v", res)
	}

	logText := out.String()
	for _, want := range []string{"Copying to: " + copyPath, "Correcting DAR for: clip.mp4 to 16:9", "Finished processing: " + finalPath} {
		if !strings.Contains(logText, want) {
			t.Errorf("log missing %q:\n%s", want, logText)
		}
	}
}

func TestProcessFile_ReplaceMode(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "clip.avi")
	writeFile(t, src, "raw")

	cfg := testConfig(t, root)
	cfg.OutputMode = config.OutputReplace
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.avi", 720, 480, "4:3")

	res := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).ProcessFile(context.Background(), src)
	if res.Status != StatusCorrected {
		t.Fatalf("status %s err %v", res.Status, res.Err)
	}

	fixed := filepath.Join(root, "fixed")
	entries, err := os.ReadDir(fixed)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "clip.avi" {
		t.Errorf("fixed/ should hold only the corrected clip.avi, got %v", entries)
	}
	if got := readFile(t, filepath.Join(fixed, "clip.avi")); got != "remuxed:3:2:raw" {
		t.Errorf("content = %q", got)
	}
}

func TestProcessFile_MatchWritesNothing(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "ok.mp4")
	writeFile(t, src, "x")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("ok.mp4", 1280, 720, "16:9")
	remuxer := newFakeRemuxer()

	res := NewCorrector(cfg, log, prober, remuxer, nil).ProcessFile(context.Background(), src)
	if res.Status != StatusMatched {
		t.Fatalf("status = %s", res.Status)
	}
	if exists(filepath.Join(root, "fixed")) {
		t.Error("a matched file must not create fixed/")
	}
	if len(remuxer.requests) != 0 {
		t.Error("a matched file must not be remuxed")
	}
}

func TestProcessFile_RemuxFailureCleansTemp(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "bad.mp4")
	writeFile(t, src, "broken")

	cfg := testConfig(t, root)
	log, out := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("bad.mp4", 1920, 1080, "4:3")
	remuxer := newFakeRemuxer()
	remuxer.fail["bad.mp4"] = true

	res := NewCorrector(cfg, log, prober, remuxer, nil).ProcessFile(context.Background(), src)
	if res.Failure != FailureRemux || res.Stage != StageRemux {
		t.Fatalf("failure %q stage %q", res.Failure, res.Stage)
	}
	var re *ffmpeg.RemuxError
	if !errors.As(res.Err, &re) {
		t.Errorf("err = %T, want *ffmpeg.RemuxError", res.Err)
	}
	if exists(filepath.Join(root, "fixed", "bad.mp4_temp.mp4")) {
		t.Error("temp file should be removed after a failed remux")
	}
	if !strings.Contains(out.String(), "Invalid data found") {
		t.Errorf("stderr tail should be logged:\n%s", out)
	}
}

func TestProcessFile_ProbeFailure(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "unknown.mp4")
	writeFile(t, src, "?")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)

	res := NewCorrector(cfg, log, newFakeProber(), newFakeRemuxer(), nil).ProcessFile(context.Background(), src)
	if res.Failure != FailureProbe || res.Plan != nil {
		t.Fatalf("result = %+v", res)
	}
	var pe *probe.ProbeError
	if !errors.As(res.Err, &pe) {
		t.Errorf("err = %T, want *probe.ProbeError", res.Err)
	}
}

func TestProcessFile_Publish(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a", "clip.mp4")
	writeFile(t, src, "v")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "N/A")
	pub := &fakePublisher{}

	res := NewCorrector(cfg, log, prober, newFakeRemuxer(), pub).ProcessFile(context.Background(), src)
	if res.Status != StatusCorrected {
		t.Fatalf("status %s err %v", res.Status, res.Err)
	}
	if !slices.Equal(pub.rels, []string{"fixed/a/clip.mp4_corrected.mp4"}) {
		t.Errorf("published %v", pub.rels)
	}
	if res.PublishedURL != "https://videos.s3.amazonaws.com/fixed/a/clip.mp4_corrected.mp4" {
		t.Errorf("url = %q", res.PublishedURL)
	}
}

func TestProcessFile_PublishFailureKeepsLocalFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "clip.mp4")
	writeFile(t, src, "v")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "4:3")

	res := NewCorrector(cfg, log, prober, newFakeRemuxer(), &fakePublisher{err: errors.New("access denied")}).
		ProcessFile(context.Background(), src)
	if res.Failure != FailurePublish {
		t.Fatalf("failure = %q", res.Failure)
	}
	if res.Output == "" || !exists(res.Output) {
		t.Error("corrected file must stay on disk when the upload fails")
	}
}

// --- Run tests ---

func TestRun_ContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp4"), "a")
	writeFile(t, filepath.Join(root, "b.mp4"), "b") // not known to the prober
	writeFile(t, filepath.Join(root, "c.avi"), "c")
	writeFile(t, filepath.Join(root, "d.mp4"), "d")
	writeFile(t, filepath.Join(root, "notes.txt"), "n")
	writeFile(t, filepath.Join(root, "marquee", "m.mp4"), "m")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("a.mp4", 1920, 1080, "16:9")
	prober.set("c.avi", 640, 480, "1:1")
	prober.set("d.mp4", 1920, 1080, "4:3")
	prober.set("m.mp4", 1920, 1080, "4:3")

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := report.Summary
	if s.Total != 4 || s.Current != 4 || s.Matched != 1 || s.Corrected != 2 || s.Failed != 1 || s.ProbeFailures != 1 {
		t.Errorf("summary = %+v", s)
	}
	if report.HasFailures() != true {
		t.Error("a probe failure should make the run fail")
	}
	for _, p := range prober.probed {
		if strings.HasSuffix(p, ".txt") || strings.Contains(p, "marquee") {
			t.Errorf("%s must never be probed", p)
		}
	}
	if !exists(filepath.Join(root, "fixed", "c.avi_corrected.avi")) || !exists(filepath.Join(root, "fixed", "d.mp4_corrected.mp4")) {
		t.Error("files after the failure should still be corrected")
	}
}

func TestRun_SecondRunSkipsFixed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "v")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "4:3")
	prober.set("clip.mp4_corrected.mp4", 1920, 1080, "4:3")

	c := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil)
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	prober.probed = nil
	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.Total != 1 || len(prober.probed) != 1 {
		t.Errorf("second run should only see clip.mp4, probed %v", prober.probed)
	}
}

func TestRun_FailFast(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp4"), "a") // unknown: probe fails
	writeFile(t, filepath.Join(root, "b.mp4"), "b")

	cfg := testConfig(t, root)
	cfg.FailFast = true
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("b.mp4", 1920, 1080, "4:3")

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Aborted || report.Summary.Current != 1 {
		t.Errorf("fail-fast should stop after a.mp4: %+v aborted=%v", report.Summary, report.Aborted)
	}
	if exists(filepath.Join(root, "fixed")) {
		t.Error("b.mp4 must not be processed")
	}
}

func TestRun_DryRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp4"), "a")
	writeFile(t, filepath.Join(root, "b.mp4"), "b")

	cfg := testConfig(t, root)
	cfg.DryRun = true
	log, out := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("a.mp4", 1920, 1080, "4:3")
	prober.set("b.mp4", 1920, 1080, "16:9")

	report, err := NewCorrector(cfg, log, prober, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.WouldCorrect != 1 || report.Summary.Matched != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if exists(filepath.Join(root, "fixed")) {
		t.Error("dry run must not write")
	}
	if !strings.Contains(out.String(), "[DRY] Would correct DAR for: a.mp4 to 16:9") {
		t.Errorf("log:\n%s", out)
	}
}

func TestRun_Workers(t *testing.T) {
	root := t.TempDir()
	prober := newFakeProber()
	var want []string
	for _, name := range []string{"1.mp4", "2.mp4", "3.avi", "4.mp4", "5.avi", "6.mp4", "7.mp4"} {
		writeFile(t, filepath.Join(root, "d", name), name)
		prober.set(name, 1920, 1080, "4:3")
		want = append(want, filepath.Join(root, "d", name))
	}

	cfg := testConfig(t, root)
	cfg.Workers = 3
	log, _ := testLogger(t, cfg)

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.Corrected != 7 || report.Summary.Failed != 0 {
		t.Errorf("summary = %+v", report.Summary)
	}
	var got []string
	for _, it := range report.Items {
		got = append(got, it.Path)
	}
	if !slices.Equal(got, want) {
		t.Errorf("items not sorted by path: %v", got)
	}
	for _, p := range want {
		ext := filepath.Ext(p)
		corrected := filepath.Join(root, "fixed", "d", filepath.Base(p)+"_corrected"+ext)
		if got := readFile(t, corrected); got != "remuxed:16:9:"+filepath.Base(p) {
			t.Errorf("%s = %q", corrected, got)
		}
	}
}

func TestRun_WorkersFailFast(t *testing.T) {
	root := t.TempDir()
	prober := newFakeProber()
	for i := 0; i < 20; i++ {
		name := string(rune('a'+i)) + ".mp4"
		writeFile(t, filepath.Join(root, name), name)
		if i != 0 {
			prober.set(name, 1920, 1080, "16:9")
		}
	}

	cfg := testConfig(t, root)
	cfg.Workers = 2
	cfg.FailFast = true
	log, _ := testLogger(t, cfg)

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Aborted || report.Summary.Failed != 1 {
		t.Errorf("aborted=%v summary=%+v", report.Aborted, report.Summary)
	}
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp4"), "a")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("a.mp4", 1920, 1080, "4:3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Interrupted || report.Summary.Current != 0 || !report.HasFailures() {
		t.Errorf("interrupted=%v summary=%+v", report.Interrupted, report.Summary)
	}
}

func TestRun_UnreadableSubdirDoesNotStopRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "clip")
	writeFile(t, filepath.Join(root, "locked", "hidden.mp4"), "hidden")
	lockDir(t, filepath.Join(root, "locked"))

	cfg := testConfig(t, root)
	log, out := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "4:3")

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary.Corrected != 1 || report.Summary.SkippedDirs != 1 || report.HasFailures() {
		t.Errorf("summary = %+v", report.Summary)
	}
	if !exists(filepath.Join(root, "fixed", "clip.mp4_corrected.mp4")) {
		t.Error("clip.mp4 was not corrected")
	}
	if !strings.Contains(out.String(), "Skipping unreadable path") {
		t.Errorf("no warning logged:\n%s", out.String())
	}
}

// gatedProber fails bad.mp4 only once slow.mp4 is in flight; slow.mp4
// then blocks until its context is cancelled.
type gatedProber struct {
	started chan struct{}
}

func (g *gatedProber) Probe(ctx context.Context, path string) (*probe.VideoInfo, error) {
	if filepath.Base(path) == "slow.mp4" {
		close(g.started)
		<-ctx.Done()
		return nil, &probe.ProbeError{Path: path, Err: ctx.Err()}
	}
	<-g.started
	return nil, &probe.ProbeError{Path: path, Err: probe.ErrMalformedOutput}
}

func TestRun_WorkersFailFastCancelledFileIsInterrupted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.mp4"), "bad")
	writeFile(t, filepath.Join(root, "slow.mp4"), "slow")

	cfg := testConfig(t, root)
	cfg.Workers = 2
	cfg.FailFast = true
	log, _ := testLogger(t, cfg)

	prober := &gatedProber{started: make(chan struct{})}
	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := report.Summary
	if !report.Aborted || s.Failed != 1 || s.ProbeFailures != 1 || s.Interrupted != 1 {
		t.Errorf("aborted=%v summary=%+v", report.Aborted, s)
	}
	if report.Interrupted {
		t.Error("fail-fast abort is not an external interrupt")
	}
	if len(report.Items) != 2 || report.Items[1].Status != string(StatusInterrupted) || report.Items[1].Failure != "" {
		t.Errorf("items = %+v", report.Items)
	}
}

func TestProcessFile_FailureAfterCancelIsInterrupted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "x")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	remuxer := newFakeRemuxer()
	remuxer.fail["clip.mp4"] = true
	prober := newFakeProber()
	prober.set("clip.mp4", 1920, 1080, "4:3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewCorrector(cfg, log, prober, remuxer, nil).ProcessFile(ctx, filepath.Join(root, "clip.mp4"))
	if res.Status != StatusInterrupted || res.Failed() || res.Stage != StageRemux || res.Err == nil {
		t.Errorf("res = %+v", res)
	}

	var s RunStats
	s.add(&res)
	if s.Failed != 0 || s.RemuxFailures != 0 || s.Interrupted != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRun_DiscoverError(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	log, _ := testLogger(t, cfg)
	if _, err := NewCorrector(cfg, log, newFakeProber(), nil, nil).Run(context.Background()); err == nil {
		t.Error("expected discovery error")
	}
}

// --- Report tests ---

func TestReport_WriteFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.mp4"), "b")
	writeFile(t, filepath.Join(root, "a.mp4"), "a")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("a.mp4", 1920, 1080, "4:3")

	report, err := NewCorrector(cfg, log, prober, newFakeRemuxer(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := report.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got struct {
		RunID      string `json:"run_id"`
		OutputMode string `json:"output_mode"`
		StartedAt  string `json:"started_at"`
		Summary    struct {
			Corrected     int `json:"corrected"`
			ProbeFailures int `json:"probe_failures"`
		} `json:"summary"`
		Items []ItemResult `json:"items"`
	}
	if err := json.Unmarshal([]byte(readFile(t, path)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.RunID) != 36 {
		t.Errorf("run_id = %q", got.RunID)
	}
	if got.OutputMode != "pair" || !strings.HasSuffix(got.StartedAt, "Z") {
		t.Errorf("output_mode %q started_at %q", got.OutputMode, got.StartedAt)
	}
	if got.Summary.Corrected != 1 || got.Summary.ProbeFailures != 1 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %+v", got.Items)
	}
	a, b := got.Items[0], got.Items[1]
	if a.Status != "corrected" || a.ExpectedDAR != "16:9" || a.DeclaredDAR != "4:3" || a.Resolution != "1920x1080" {
		t.Errorf("a = %+v", a)
	}
	if b.Status != "failed" || b.Failure != "probe" || b.Stage != "probe" || b.ErrorMsg == "" {
		t.Errorf("b = %+v", b)
	}
}

// --- Analyze tests ---

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.mp4"), "")
	writeFile(t, filepath.Join(root, "sub", "bad.avi"), "")
	writeFile(t, filepath.Join(root, "broken.mp4"), "")

	cfg := testConfig(t, root)
	cfg.AnalyzeOnly = true
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set("good.mp4", 1280, 720, "16:9")
	prober.set("bad.avi", 720, 480, "4:3")

	var table bytes.Buffer
	res, err := Analyze(context.Background(), cfg, log, prober, &table)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res != (AnalyzeResult{Files: 3, Mismatched: 1, Failed: 1}) {
		t.Errorf("result = %+v", res)
	}

	text := table.String()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 5 {
		t.Fatalf("want header, rule and 3 rows:\n%s", text)
	}
	for _, want := range []string{"sub" + string(filepath.Separator) + "bad.avi", "720x480", "3:2", "mismatch", "probe failed", "good.mp4"} {
		if !strings.Contains(text, want) {
			t.Errorf("table missing %q:\n%s", want, text)
		}
	}
	if exists(filepath.Join(root, "fixed")) {
		t.Error("analyze must not write")
	}
}

func TestTruncateLeft(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.mp4", 20, "short.mp4"},
		{"abcdefgh.mp4", 8, "…fgh.mp4"},
		{"éééééééé.mp4", 8, "…ééé.mp4"},
		{"日本語のファイル.avi", 6, "…ル.avi"},
	}
	for _, tt := range tests {
		got := truncateLeft(tt.in, tt.width)
		if got != tt.want {
			t.Errorf("truncateLeft(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateLeft(%q, %d) is not valid UTF-8", tt.in, tt.width)
		}
	}
}

func TestAnalyze_LongNonASCIIName(t *testing.T) {
	root := t.TempDir()
	name := strings.Repeat("é", 60) + ".mp4"
	writeFile(t, filepath.Join(root, name), "")

	cfg := testConfig(t, root)
	log, _ := testLogger(t, cfg)
	prober := newFakeProber()
	prober.set(name, 1920, 1080, "16:9")

	var table bytes.Buffer
	if _, err := Analyze(context.Background(), cfg, log, prober, &table); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !utf8.Valid(table.Bytes()) {
		t.Fatalf("table is not valid UTF-8: %q", table.String())
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	header, row := lines[0], lines[2]
	if got, want := strings.Index(row, "1920x1080"), strings.Index(header, "Resolution"); utf8.RuneCountInString(row[:got]) != utf8.RuneCountInString(header[:want]) {
		t.Errorf("columns misaligned:\n%s\n%s", header, row)
	}
	if !strings.Contains(row, "…"+strings.Repeat("é", maxNameWidth-5)+".mp4") {
		t.Errorf("row = %q", row)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	log, out := testLogger(t, cfg)
	var table bytes.Buffer
	res, err := Analyze(context.Background(), cfg, log, newFakeProber(), &table)
	if err != nil || res.Files != 0 {
		t.Fatalf("res %+v err %v", res, err)
	}
	if table.Len() != 0 || !strings.Contains(out.String(), "No .mp4/.avi files found") {
		t.Errorf("table %q log %q", table.String(), out.String())
	}
}

func TestRunStats_Mismatched(t *testing.T) {
	s := RunStats{Corrected: 2, WouldCorrect: 1, RemuxFailures: 1, ProbeFailures: 5}
	if got := s.Mismatched(); got != 4 {
		t.Errorf("Mismatched = %d, want 4", got)
	}
}
