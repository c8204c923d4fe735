package subtitle

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidOptions = errors.New("subtitle: invalid options")

const (
	DefaultFontName     = "微软雅黑"
	DefaultFontSize     = 36
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultLineCount    = 4
	DefaultBottomMargin = 54
)

// Upper bounds for user supplied options. Layout state grows with LineCount,
// which the fit check keeps below maxResolution.
const (
	maxFontSize    = 1024
	maxResolution  = 16384
	maxTuneSeconds = 24 * 60 * 60
)

// Options controls the layout of a rendered ASS script. Sizes are in script
// pixels (PlayResX/PlayResY).
type Options struct {
	FontName     string
	FontSize     int
	Width        int
	Height       int
	LineCount    int
	BottomMargin int
	TuneSeconds  int
}

func DefaultOptions() Options {
	return Options{
		FontName:     DefaultFontName,
		FontSize:     DefaultFontSize,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		LineCount:    DefaultLineCount,
		BottomMargin: DefaultBottomMargin,
	}
}

// Validate reports the first problem found, wrapped in ErrInvalidOptions.
func (o Options) Validate() error {
	switch {
	case strings.TrimSpace(o.FontName) == "":
		return fmt.Errorf("%w: font name is empty", ErrInvalidOptions)
	case o.FontSize <= 0 || o.FontSize > maxFontSize:
		return fmt.Errorf("%w: font size must be in 1..%d, got %d", ErrInvalidOptions, maxFontSize, o.FontSize)
	case o.Width <= 0 || o.Height <= 0 || o.Width > maxResolution || o.Height > maxResolution:
		return fmt.Errorf("%w: resolution must be within %dx%d, got %dx%d", ErrInvalidOptions,
			maxResolution, maxResolution, o.Width, o.Height)
	case o.LineCount <= 0:
		return fmt.Errorf("%w: line count must be positive, got %d", ErrInvalidOptions, o.LineCount)
	case o.BottomMargin < 0:
		return fmt.Errorf("%w: bottom margin must not be negative, got %d", ErrInvalidOptions, o.BottomMargin)
	case o.TuneSeconds < -maxTuneSeconds || o.TuneSeconds > maxTuneSeconds:
		return fmt.Errorf("%w: tune must be within %ds, got %d", ErrInvalidOptions, maxTuneSeconds, o.TuneSeconds)
	case o.FontSize > (o.Height-o.BottomMargin)/o.LineCount:
		return fmt.Errorf("%w: %d lines of %dpx do not fit in %dpx", ErrInvalidOptions,
			o.LineCount, o.FontSize, o.Height-o.BottomMargin)
	}
	return nil
}
