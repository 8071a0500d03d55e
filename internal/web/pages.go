package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultPageSize is used by Pages when pageSize is not positive.
const DefaultPageSize = 100

// PageURL substitutes page, pageSize and the derived offset into template.
// Recognized placeholders are {page}, {page_size} and {offset};
// offset is (page-1)*pageSize.
func PageURL(template string, page, pageSize int) string {
	return strings.NewReplacer(
		"{page}", strconv.Itoa(page),
		"{page_size}", strconv.Itoa(pageSize),
		"{offset}", strconv.Itoa((page-1)*pageSize),
	).Replace(template)
}

// PageIterator walks a paginated API one page at a time.
//
// Pages are requested strictly in order, starting at page 1, and only when
// Next is called. The sequence ends at the first page that is out of scope,
// fails in transport, has a non-2xx status or is empty. A PageIterator is
// not restartable. Next must not be called concurrently; Close may be called
// from any goroutine.
type PageIterator struct {
	dispatcher *Dispatcher
	ctx        context.Context
	cancel     context.CancelFunc
	template   string
	pageSize   int
	jsonMode   bool
	maxPages   int
	pattern    *regexp.Regexp
	page       int
	done       bool
	closed     atomic.Bool
	err        error
}

// PageOption configures a PageIterator.
type PageOption func(*PageIterator)

// WithMaxPages stops the iteration after n pages. 0 means no limit.
func WithMaxPages(n int) PageOption {
	return func(it *PageIterator) {
		if n > 0 {
			it.maxPages = n
		}
	}
}

// WithBodyPattern ends a raw-mode iteration at the first body that does not
// match re. It has no effect in JSON mode.
func WithBodyPattern(re *regexp.Regexp) PageOption {
	return func(it *PageIterator) {
		it.pattern = re
	}
}

// Pages returns an iterator over template, which may contain the {page},
// {page_size} and {offset} placeholders.
//
// In raw mode a page is empty when its body is blank after trimming
// whitespace, or does not match the WithBodyPattern expression. In JSON mode
// a page is empty when the body is not valid JSON or decodes to null, an
// empty array, an empty object or an empty string; the decoded value of
// every yielded page is stored in Response.JSON.
//
// The iterator holds a context derived from ctx; call Close to release it.
func (d *Dispatcher) Pages(ctx context.Context, template string, pageSize int, jsonMode bool, opts ...PageOption) *PageIterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	ctx, cancel := context.WithCancel(ctx)
	it := &PageIterator{
		dispatcher: d,
		ctx:        ctx,
		cancel:     cancel,
		template:   template,
		pageSize:   pageSize,
		jsonMode:   jsonMode,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Next fetches the next page. It returns false once the sequence has ended
// or the iterator was closed; no request is made in that case.
func (it *PageIterator) Next() (*Response, bool) {
	if it.done || it.closed.Load() || it.ctx.Err() != nil {
		it.finish()
		return nil, false
	}
	if it.maxPages > 0 && it.page >= it.maxPages {
		it.finish()
		return nil, false
	}

	it.page++
	resp, err := it.dispatcher.Dispatch(it.ctx, Request{URL: PageURL(it.template, it.page, it.pageSize)})
	if err != nil {
		if !it.closed.Load() {
			it.err = err
		}
		it.finish()
		return nil, false
	}
	if !resp.OK() {
		it.finish()
		return nil, false
	}

	if it.jsonMode {
		if resp.Truncated {
			it.err = fmt.Errorf("%w: page %d of %s", ErrBodyTruncated, it.page, resp.URL)
			it.finish()
			return nil, false
		}
		var value any
		if err := json.Unmarshal(resp.Body, &value); err != nil || isEmptyJSON(value) {
			it.finish()
			return nil, false
		}
		resp.JSON = value
	} else {
		if len(bytes.TrimSpace(resp.Body)) == 0 {
			it.finish()
			return nil, false
		}
		if it.pattern != nil && !it.pattern.Match(resp.Body) {
			it.finish()
			return nil, false
		}
	}

	return resp, true
}

// Page returns the number of the last page requested, 0 before the first.
func (it *PageIterator) Page() int {
	return it.page
}

// Err returns the transport error that ended the sequence, if any, or
// ErrBodyTruncated for a JSON page over the body limit. Ending by Close, by
// an empty page or by a non-2xx status is not an error.
func (it *PageIterator) Err() error {
	if it.err != nil && it.closed.Load() && errors.Is(it.err, context.Canceled) {
		return nil
	}
	return it.err
}

// Close stops the iteration and abandons an in-flight request.
// It is idempotent and safe to call after the sequence has ended.
func (it *PageIterator) Close() {
	it.closed.Store(true)
	it.cancel()
}

// All returns the remaining pages as a range-over-func sequence.
// The iterator is closed when the loop ends, including on break.
func (it *PageIterator) All() iter.Seq[*Response] {
	return func(yield func(*Response) bool) {
		defer it.Close()
		for {
			resp, ok := it.Next()
			if !ok || !yield(resp) {
				return
			}
		}
	}
}

func (it *PageIterator) finish() {
	it.done = true
	it.cancel()
}

// isEmptyJSON reports whether v is null, "", [] or {}.
func isEmptyJSON(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}
