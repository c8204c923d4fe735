// Package subtitle renders danmaku comments as an Advanced SubStation Alpha
// (ASS) script.
package subtitle

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/width"

	"github.com/adeilh/go-niconvert/website"
)

const (
	scrollDuration = 8 * time.Second
	staticDuration = 4 * time.Second

	// Comment feed sizes are relative to this value.
	feedBaseSize = 25

	scrollLayer = 2
	staticLayer = 3
)

var scriptHeader = template.Must(template.New("header").Parse(`[Script Info]
Title: {{.Title}}
ScriptType: v4.00+
Collisions: Normal
PlayResX: {{.Width}}
PlayResY: {{.Height}}
WrapStyle: 2
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Danmaku,{{.FontName}},{{.FontSize}},&H00FFFFFF,&H00FFFFFF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,1,0,8,0,0,0,0

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`))

var (
	textEscaper = strings.NewReplacer(
		`\`, "＼",
		"{", "｛",
		"}", "｝",
		"\r\n", `\N`,
		"\n", `\N`,
		"\r", `\N`,
	)
	lineFolder  = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	fieldFolder = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", ",", "，")
)

type headerData struct {
	Title    string
	Width    int
	Height   int
	FontName string
	FontSize int
}

// Render writes an ASS script for comments to w. Comments whose shifted start
// falls before zero, and comments in modes that cannot be laid out, are
// skipped.
func Render(w io.Writer, title string, comments []website.Comment, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	err := scriptHeader.Execute(bw, headerData{
		Title:    strings.TrimSpace(lineFolder.Replace(title)),
		Width:    opts.Width,
		Height:   opts.Height,
		FontName: strings.TrimSpace(fieldFolder.Replace(opts.FontName)),
		FontSize: opts.FontSize,
	})
	if err != nil {
		return fmt.Errorf("subtitle: write header: %w", err)
	}

	sorted := slices.Clone(comments)
	slices.SortStableFunc(sorted, func(a, b website.Comment) int {
		return cmp.Compare(a.Start, b.Start)
	})

	l := newLayout(opts)
	for _, c := range sorted {
		line, ok := l.place(c)
		if !ok {
			continue
		}
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("subtitle: write event: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("subtitle: flush: %w", err)
	}
	return nil
}

type lane struct {
	free time.Duration // tail of the last comment is on screen
	exit time.Duration // last comment has left the screen
}

type layout struct {
	opts   Options
	tune   time.Duration
	scroll []lane
	top    []time.Duration
	bottom []time.Duration
}

func newLayout(opts Options) *layout {
	return &layout{
		opts:   opts,
		tune:   time.Duration(opts.TuneSeconds) * time.Second,
		scroll: make([]lane, opts.LineCount),
		top:    make([]time.Duration, opts.LineCount),
		bottom: make([]time.Duration, opts.LineCount),
	}
}

func (l *layout) place(c website.Comment) (string, bool) {
	start := c.Start + l.tune
	if start < 0 {
		return "", false
	}
	text := textEscaper.Replace(strings.TrimSpace(c.Text))
	if text == "" {
		return "", false
	}
	size := l.fontSize(c.Size)

	var (
		override strings.Builder
		end      time.Duration
		layer    int
	)
	switch {
	case c.Mode.Scrolls() || c.Mode == website.ModeReverse:
		w := textWidth(c.Text, size)
		y := l.scrollRow(start, w) * l.opts.FontSize
		from, to := l.opts.Width+w/2, -w/2
		if c.Mode == website.ModeReverse {
			from, to = to, from
		}
		fmt.Fprintf(&override, `\move(%d,%d,%d,%d)`, from, y, to, y)
		end, layer = start+scrollDuration, scrollLayer
	case c.Mode == website.ModeTop:
		y := staticRow(l.top, start) * l.opts.FontSize
		fmt.Fprintf(&override, `\an8\pos(%d,%d)`, l.opts.Width/2, y)
		end, layer = start+staticDuration, staticLayer
	case c.Mode == website.ModeBottom:
		y := l.opts.Height - l.opts.BottomMargin - staticRow(l.bottom, start)*l.opts.FontSize
		fmt.Fprintf(&override, `\an2\pos(%d,%d)`, l.opts.Width/2, y)
		end, layer = start+staticDuration, staticLayer
	default:
		return "", false
	}
	if size != l.opts.FontSize {
		fmt.Fprintf(&override, `\fs%d`, size)
	}
	if color := c.Color & 0xFFFFFF; color != 0xFFFFFF {
		override.WriteString(`\c` + assColor(color))
	}

	return fmt.Sprintf("Dialogue: %d,%s,%s,Danmaku,,0000,0000,0000,,{%s}%s\n",
		layer, formatTime(start), formatTime(end), override.String(), text), true
}

func (l *layout) fontSize(feedSize int) int {
	if feedSize <= 0 || feedSize == feedBaseSize {
		return l.opts.FontSize
	}
	return max(1, l.opts.FontSize*feedSize/feedBaseSize)
}

// scrollRow picks the first row where a comment w pixels wide neither
// overlaps the previous comment on entry nor catches up with it before it
// leaves. When every row is busy the row that frees up first is reused.
func (l *layout) scrollRow(start time.Duration, w int) int {
	speed := float64(l.opts.Width+w) / scrollDuration.Seconds()
	enter := time.Duration(float64(w) / speed * float64(time.Second))
	reach := time.Duration(float64(l.opts.Width) / speed * float64(time.Second))

	row := -1
	for i, ln := range l.scroll {
		if ln.free <= start && start+reach >= ln.exit {
			row = i
			break
		}
	}
	if row < 0 {
		row = 0
		for i, ln := range l.scroll {
			if ln.free < l.scroll[row].free {
				row = i
			}
		}
	}
	l.scroll[row] = lane{free: start + enter, exit: start + scrollDuration}
	return row
}

func staticRow(rows []time.Duration, start time.Duration) int {
	row := -1
	for i, busy := range rows {
		if busy <= start {
			row = i
			break
		}
	}
	if row < 0 {
		row = 0
		for i, busy := range rows {
			if busy < rows[row] {
				row = i
			}
		}
	}
	rows[row] = start + staticDuration
	return row
}

// textWidth estimates the rendered width of the widest line of text:
// East Asian wide characters take a full em, everything else half.
func textWidth(text string, size int) int {
	half := max(1, size/2)
	widest := 0
	for _, line := range strings.Split(text, "\n") {
		w := 0
		for _, r := range line {
			switch width.LookupRune(r).Kind() {
			case width.EastAsianWide, width.EastAsianFullwidth:
				w += size
			default:
				w += half
			}
		}
		widest = max(widest, w)
	}
	return widest
}

// assColor converts 0xRRGGBB to the &HBBGGRR& form used by override tags.
func assColor(rgb uint32) string {
	r, g, b := rgb>>16&0xFF, rgb>>8&0xFF, rgb&0xFF
	return fmt.Sprintf("&H%02X%02X%02X&", b, g, r)
}

// formatTime renders d as H:MM:SS.cc.
func formatTime(d time.Duration) string {
	cs := int64(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}
