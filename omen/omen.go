// Package omen turns external headlines into portents that can leak into a
// prompt.
package omen

import "context"

// Omen is one headline reduced to plain text.
type Omen struct {
	Title     string
	Summary   string
	SourceURL string
}

func (o *Omen) String() string {
	if o.Summary == "" {
		return o.Title
	}
	return o.Title + ": " + o.Summary
}

// Fetcher pulls omens from an external source.
type Fetcher interface {
	Fetch(ctx context.Context) ([]*Omen, error)
}
