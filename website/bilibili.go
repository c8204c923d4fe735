package website

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/adeilh/go-niconvert/httpx"
)

const DefaultBilibiliCommentBase = "https://comment.bilibili.com"

var (
	bilibiliHosts = []string{"www.bilibili.com", "bilibili.com", "m.bilibili.com"}

	cidPattern = regexp.MustCompile(`"cid"\s*:\s*(\d+)|[?&]cid=(\d+)`)

	errNoCommentID = errors.New("comment id not found in page")
	errNoTitle     = errors.New("title not found in page")
)

// Bilibili resolves bilibili.com video pages.
type Bilibili struct {
	client      *httpx.Client
	hosts       map[string]struct{}
	commentBase string
}

type BilibiliOption func(*Bilibili)

// WithHosts replaces the host names the site answers for.
func WithHosts(hosts ...string) BilibiliOption {
	return func(b *Bilibili) {
		if len(hosts) == 0 {
			return
		}
		b.hosts = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			b.hosts[strings.ToLower(h)] = struct{}{}
		}
	}
}

// WithCommentBase sets where <cid>.xml comment feeds are fetched from.
func WithCommentBase(base string) BilibiliOption {
	return func(b *Bilibili) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			b.commentBase = base
		}
	}
}

func NewBilibili(client *httpx.Client, opts ...BilibiliOption) *Bilibili {
	b := &Bilibili{client: client, commentBase: DefaultBilibiliCommentBase}
	WithHosts(bilibiliHosts...)(b)
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Bilibili) Name() string { return "bilibili" }

func (b *Bilibili) Match(u *url.URL) bool {
	if _, ok := b.hosts[strings.ToLower(u.Hostname())]; !ok {
		return false
	}
	return strings.HasPrefix(u.Path, "/video/")
}

func (b *Bilibili) Resolve(ctx context.Context, u *url.URL) (*Website, error) {
	pageURL := u.String()
	resp, err := b.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: pageURL, Err: err}
	}
	page := resp.Body()

	title := trimSiteSuffix(pageTitle(page))
	if title == "" {
		return nil, &Error{Kind: KindParse, URL: pageURL, Err: errNoTitle}
	}
	cid := commentID(page)
	if cid == "" {
		return nil, &Error{Kind: KindParse, URL: pageURL, Err: errNoCommentID}
	}

	commentURL := b.commentBase + "/" + cid + ".xml"
	resp, err = b.client.Get(ctx, commentURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: commentURL, Err: err}
	}
	comments, err := ParseComments(resp.Body())
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: commentURL, Err: err}
	}

	return &Website{
		URL:        pageURL,
		Title:      title,
		CommentURL: commentURL,
		Comments:   comments,
	}, nil
}

func commentID(page []byte) string {
	m := cidPattern.FindSubmatch(page)
	if m == nil {
		return ""
	}
	if len(m[1]) > 0 {
		return string(m[1])
	}
	return string(m[2])
}

// trimSiteSuffix drops the "_哔哩哔哩_bilibili" style tail from page titles.
func trimSiteSuffix(title string) string {
	if i := strings.Index(title, "_哔哩哔哩"); i > 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
