package subtitle

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/adeilh/go-niconvert/website"
)

func render(t *testing.T, comments []website.Comment, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, "测试视频", comments, opts); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func events(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "Dialogue: ") {
			out = append(out, line)
		}
	}
	return out
}

func scroll(at time.Duration, text string) website.Comment {
	return website.Comment{Start: at, Mode: website.ModeScroll, Size: 25, Color: 0xFFFFFF, Text: text}
}

func TestRenderWritesHeaderAndEvents(t *testing.T) {
	comments := []website.Comment{
		scroll(12500*time.Millisecond, "第二条"),
		{Start: 3 * time.Second, Mode: website.ModeTop, Size: 25, Color: 0xFF0000, Text: "顶部 & red"},
		scroll(1250*time.Millisecond, "first"),
	}
	out := render(t, comments, DefaultOptions())

	for _, want := range []string{
		"[Script Info]\nTitle: 测试视频\n",
		"PlayResX: 1920\nPlayResY: 1080\n",
		"Style: Danmaku,微软雅黑,36,",
		"[Events]\nFormat: Layer, Start, End, Style,",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("script missing %q:\n%s", want, out)
		}
	}

	got := events(out)
	want := []string{
		`Dialogue: 2,0:00:01.25,0:00:09.25,Danmaku,,0000,0000,0000,,{\move(1965,0,-45,0)}first`,
		`Dialogue: 3,0:00:03.00,0:00:07.00,Danmaku,,0000,0000,0000,,{\an8\pos(960,0)\c&H0000FF&}顶部 & red`,
		`Dialogue: 2,0:00:12.50,0:00:20.50,Danmaku,,0000,0000,0000,,{\move(1974,0,-54,0)}第二条`,
	}
	if len(got) != len(want) {
		t.Fatalf("events = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderAllocatesScrollRows(t *testing.T) {
	var comments []website.Comment
	for i := 0; i < 5; i++ {
		comments = append(comments, scroll(0, "a"))
	}
	got := events(render(t, comments, DefaultOptions()))
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	for i, y := range []string{",0,", ",36,", ",72,", ",108,", ",0,"} {
		if !strings.Contains(got[i], `\move(1929`+y) {
			t.Fatalf("event %d = %q, want row y%s", i, got[i], y)
		}
	}
}

func TestRenderAvoidsCatchingUpInSameRow(t *testing.T) {
	long := strings.Repeat("x", 40)
	comments := []website.Comment{
		scroll(0, "a"),
		scroll(time.Second, long),
		scroll(time.Second, "b"),
	}
	got := events(render(t, comments, DefaultOptions()))
	if !strings.Contains(got[1], `\move(2280,36,-360,36)`) {
		t.Fatalf("faster comment should take the next row: %q", got[1])
	}
	if !strings.Contains(got[2], `\move(1929,0,-9,0)`) {
		t.Fatalf("slow comment should reuse the first row: %q", got[2])
	}
}

func TestRenderStaticAndSpecialModes(t *testing.T) {
	comments := []website.Comment{
		{Start: 0, Mode: website.ModeBottom, Size: 25, Color: 0xFFFFFF, Text: "bottom"},
		{Start: 0, Mode: website.ModeBottom, Size: 25, Color: 0xFFFFFF, Text: "bottom2"},
		{Start: 0, Mode: website.ModeReverse, Size: 50, Color: 0x112233, Text: "rev"},
		{Start: 0, Mode: 7, Size: 25, Text: "advanced"},
	}
	got := events(render(t, comments, DefaultOptions()))
	if len(got) != 3 {
		t.Fatalf("expected unsupported mode to be skipped, got %q", got)
	}
	if !strings.Contains(got[0], `{\an2\pos(960,1026)}bottom`) {
		t.Fatalf("bottom event = %q", got[0])
	}
	if !strings.Contains(got[1], `{\an2\pos(960,990)}bottom2`) {
		t.Fatalf("second bottom event = %q", got[1])
	}
	if !strings.Contains(got[2], `{\move(-54,0,1974,0)\fs72\c&H332211&}rev`) {
		t.Fatalf("reverse event = %q", got[2])
	}
}

func TestRenderAppliesTuneSeconds(t *testing.T) {
	opts := DefaultOptions()
	opts.TuneSeconds = -2
	comments := []website.Comment{
		scroll(1250*time.Millisecond, "early"),
		{Start: 3 * time.Second, Mode: website.ModeTop, Size: 25, Color: 0xFFFFFF, Text: "late"},
	}
	got := events(render(t, comments, opts))
	if len(got) != 1 {
		t.Fatalf("expected comments shifted before zero to be dropped, got %q", got)
	}
	if !strings.HasPrefix(got[0], "Dialogue: 3,0:00:01.00,0:00:05.00,") {
		t.Fatalf("event = %q", got[0])
	}
}

func TestRenderEscapesText(t *testing.T) {
	opts := DefaultOptions()
	opts.FontName = "Font,Name"
	out := render(t, []website.Comment{scroll(0, "a{b}\\c\nd")}, opts)

	if !strings.Contains(out, `}a｛b｝＼c\Nd`) {
		t.Fatalf("text not escaped:\n%s", out)
	}
	if !strings.Contains(out, "Style: Danmaku,Font，Name,36,") {
		t.Fatalf("font name not sanitized:\n%s", out)
	}
}

func TestRenderRejectsInvalidOptions(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.LineCount = 0
	if err := Render(&buf, "t", nil, opts); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written for invalid options")
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	cases := map[string]func(*Options){
		"empty font":      func(o *Options) { o.FontName = "  " },
		"zero font size":  func(o *Options) { o.FontSize = 0 },
		"zero width":      func(o *Options) { o.Width = 0 },
		"negative height": func(o *Options) { o.Height = -1 },
		"negative margin": func(o *Options) { o.BottomMargin = -1 },
		"too many lines":  func(o *Options) { o.LineCount = 100 },
		"huge font":       func(o *Options) { o.FontSize = 1 << 62 },
		"huge height":     func(o *Options) { o.Height, o.FontSize, o.LineCount = 1<<36, 1, 1<<35 },
		"huge width":      func(o *Options) { o.Width = maxResolution + 1 },
		"margin too big":  func(o *Options) { o.BottomMargin = o.Height },
		"tune too late":   func(o *Options) { o.TuneSeconds = maxTuneSeconds + 1 },
		"tune too early":  func(o *Options) { o.TuneSeconds = -maxTuneSeconds - 1 },
	}
	for name, mutate := range cases {
		opts := DefaultOptions()
		mutate(&opts)
		if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("%s: expected ErrInvalidOptions, got %v", name, err)
		}
	}
}

func TestOptionsValidateFitCheckDoesNotOverflow(t *testing.T) {
	opts := Options{FontName: "x", FontSize: 1 << 62, Width: 100, Height: 100, LineCount: 4}
	if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}

	opts = Options{FontName: "x", FontSize: 1, Width: 100, Height: maxResolution, LineCount: maxResolution}
	if err := opts.Validate(); err != nil {
		t.Fatalf("largest layout rejected: %v", err)
	}
	if err := Render(io.Discard, "t", []website.Comment{scroll(0, "a")}, opts); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	opts.LineCount = maxResolution + 1
	if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestFormatTimeAndColor(t *testing.T) {
	if got := formatTime(3723450 * time.Millisecond); got != "1:02:03.45" {
		t.Fatalf("formatTime() = %q", got)
	}
	if got := formatTime(0); got != "0:00:00.00" {
		t.Fatalf("formatTime(0) = %q", got)
	}
	if got := assColor(0x112233); got != "&H332211&" {
		t.Fatalf("assColor() = %q", got)
	}
}
