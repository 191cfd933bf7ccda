package pagination

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// PerPage is the fixed page size of paginated listings.
const PerPage = 10

// PageParam is the query parameter that selects the page.
const PageParam = "page"

// Params holds the requested page in the 1-based form clients send.
type Params struct {
	Page    int
	PerPage int
}

// MaxPage is the largest page whose offset still fits in an int.
const MaxPage = math.MaxInt/PerPage - 1

// ParsePage parses the page query value. Missing, unparsable and
// non-positive values select the first page; larger pages are capped at
// MaxPage.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return MaxPage
	}
	if err != nil || n < 1 {
		return 1
	}
	if n > MaxPage {
		return MaxPage
	}
	return n
}

// NewParams returns Params for the raw page value and the fixed page size.
func NewParams(rawPage string) Params {
	return Params{Page: ParsePage(rawPage), PerPage: PerPage}
}

// Limit returns the SQL LIMIT for the page.
func (p Params) Limit() int {
	return p.PerPage
}

// Offset returns the SQL OFFSET for the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// IsTruthy reports whether a boolean-ish query value is set.
func IsTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Page is a paginated listing with navigation links. Links carry every other
// query parameter of the originating request.
type Page[T any] struct {
	CurrentPage  int     `json:"current_page"`
	Data         []T     `json:"data"`
	FirstPageURL string  `json:"first_page_url"`
	From         *int    `json:"from"`
	LastPage     int     `json:"last_page"`
	LastPageURL  string  `json:"last_page_url"`
	NextPageURL  *string `json:"next_page_url"`
	Path         string  `json:"path"`
	PerPage      int     `json:"per_page"`
	PrevPageURL  *string `json:"prev_page_url"`
	To           *int    `json:"to"`
	Total        int     `json:"total"`
}

// NewPage builds the page for items, the rows of page p out of total.
// path is the absolute listing URL without a query string; query holds the
// request's query parameters.
func NewPage[T any](items []T, total int, p Params, path string, query url.Values) Page[T] {
	if items == nil {
		items = []T{}
	}
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = PerPage
	}

	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}

	page := Page[T]{
		CurrentPage:  p.Page,
		Data:         items,
		FirstPageURL: pageURL(path, query, 1),
		LastPage:     last,
		LastPageURL:  pageURL(path, query, last),
		Path:         path,
		PerPage:      perPage,
		Total:        total,
	}

	if n := len(items); n > 0 {
		from := (p.Page-1)*perPage + 1
		to := from + n - 1
		page.From, page.To = &from, &to
	}
	if p.Page < last {
		next := pageURL(path, query, p.Page+1)
		page.NextPageURL = &next
	}
	if p.Page > 1 {
		prev := pageURL(path, query, p.Page-1)
		page.PrevPageURL = &prev
	}
	return page
}

func pageURL(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, vs := range query {
		if k == PageParam {
			continue
		}
		q[k] = append([]string(nil), vs...)
	}
	q.Set(PageParam, strconv.Itoa(page))
	return path + "?" + q.Encode()
}
