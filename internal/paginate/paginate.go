// Package paginate walks page-numbered vendor listings.
package paginate

import (
	"context"
	"errors"
	"fmt"
)

const (
	defaultFirstPage = 1
	defaultMaxPages  = 1000
)

// ErrRunaway is returned when a listing never reports its last page.
var ErrRunaway = errors.New("pagination exceeded page cap")

// Page is one listing response. Next, when positive, names the following
// page explicitly; otherwise the page number is incremented unless Done.
type Page[T any] struct {
	Items []T
	Next  int
	Done  bool
}

// ListFunc fetches a single page.
type ListFunc[T any] func(ctx context.Context, page int) (Page[T], error)

type Options struct {
	FirstPage int
	MaxPages  int
}

func (o Options) withDefaults() Options {
	if o.FirstPage <= 0 {
		o.FirstPage = defaultFirstPage
	}
	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}
	return o
}

// FetchAll concatenates every page. On error it returns the items gathered
// before the failing page alongside the error.
func FetchAll[T any](ctx context.Context, list ListFunc[T], opts Options) ([]T, error) {
	opts = opts.withDefaults()
	var all []T
	page := opts.FirstPage
	for fetched := 0; ; fetched++ {
		if fetched >= opts.MaxPages {
			return all, fmt.Errorf("%w: stopped after %d pages", ErrRunaway, fetched)
		}
		if err := ctx.Err(); err != nil {
			return all, err
		}
		p, err := list(ctx, page)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, p.Items...)
		if p.Done {
			return all, nil
		}
		if p.Next > 0 {
			page = p.Next
		} else {
			page++
		}
	}
}
