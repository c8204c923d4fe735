// Package website turns a video page URL into the video's title and its
// danmaku comments.
package website

import "time"

// Mode is the danmaku display mode as encoded by the comment feed.
type Mode int

const (
	ModeScroll  Mode = 1
	ModeBottom  Mode = 4
	ModeTop     Mode = 5
	ModeReverse Mode = 6
)

// Scrolls reports whether comments in this mode move across the screen.
func (m Mode) Scrolls() bool { return m >= 1 && m <= 3 }

// Static reports whether comments in this mode stay pinned to the top or
// bottom of the screen.
func (m Mode) Static() bool { return m == ModeTop || m == ModeBottom }

// Comment is a single danmaku line.
type Comment struct {
	Start time.Duration
	Mode  Mode
	Size  int
	Color uint32 // 0xRRGGBB
	Text  string
}

// Website is the resolved form of a video page. It is shared between
// requests once cached and must not be mutated.
type Website struct {
	URL        string
	Title      string
	CommentURL string
	Comments   []Comment
}
