package website

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type commentFeed struct {
	Items []struct {
		Attr string `xml:"p,attr"`
		Text string `xml:",chardata"`
	} `xml:"d"`
}

// ParseComments decodes a bilibili XML comment feed. Each <d> element carries
// "start,mode,size,color,..." in its p attribute. Malformed entries are
// skipped; the result is ordered by start time.
func ParseComments(feed []byte) ([]Comment, error) {
	var doc commentFeed
	dec := xml.NewDecoder(bytes.NewReader(feed))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode comment feed: %w", err)
	}

	comments := make([]Comment, 0, len(doc.Items))
	for _, item := range doc.Items {
		c, ok := parseComment(item.Attr, item.Text)
		if ok {
			comments = append(comments, c)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Start < comments[j].Start
	})
	return comments, nil
}

func parseComment(attr, text string) (Comment, bool) {
	fields := strings.Split(attr, ",")
	if len(fields) < 4 {
		return Comment{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, false
	}
	start, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || start < 0 {
		return Comment{}, false
	}
	mode, err := strconv.Atoi(fields[1])
	if err != nil {
		return Comment{}, false
	}
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return Comment{}, false
	}
	color, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Comment{}, false
	}
	return Comment{
		Start: time.Duration(start * float64(time.Second)),
		Mode:  Mode(mode),
		Size:  size,
		Color: uint32(color) & 0xFFFFFF,
		Text:  text,
	}, true
}
