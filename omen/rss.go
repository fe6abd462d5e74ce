package omen

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
)

const summaryRunes = 160

// RSSFetcher reads omens from an RSS or Atom feed.
type RSSFetcher struct {
	url   string
	limit int
}

// NewRSSFetcher returns a fetcher for url. A limit of zero or less keeps
// every item.
func NewRSSFetcher(url string, limit int) *RSSFetcher {
	return &RSSFetcher{url: url, limit: limit}
}

func (f *RSSFetcher) Fetch(ctx context.Context) ([]*Omen, error) {
	feed, err := gofeed.NewParser().ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	// newest first
	sort.SliceStable(feed.Items, func(i, j int) bool {
		it, jt := feed.Items[i].PublishedParsed, feed.Items[j].PublishedParsed
		if it == nil || jt == nil {
			return false
		}
		return it.After(*jt)
	})

	var omens []*Omen
	for _, item := range feed.Items {
		if f.limit > 0 && len(omens) >= f.limit {
			break
		}
		title := strings.TrimSpace(stripHTML(item.Title))
		if title == "" {
			continue
		}
		omens = append(omens, &Omen{
			Title:     title,
			Summary:   truncate(strings.TrimSpace(stripHTML(item.Description)), summaryRunes),
			SourceURL: item.Link,
		})
	}
	return omens, nil
}

var htmlTag = regexp.MustCompile("<[^>]*>")

func stripHTML(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
