package board

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mathclub/ideaboard/internal/model"
)

type SortKey string

const (
	SortRecent                SortKey = "recent"
	SortMostReviewedThenHard  SortKey = "mostReviewedThenHard"
	SortHardestFirst          SortKey = "hardestFirst"
	SortEasiestFirst          SortKey = "easiestFirst"
	SortMostReviewed          SortKey = "mostReviewed"
	SortLikes                 SortKey = "likes"
	SortMemberCountAsc        SortKey = "memberCountAsc"
	SortTimeConsumingHoursAsc SortKey = "timeConsumingHoursAsc"
	SortTimeToMakeDaysAsc     SortKey = "timeToMakeDaysAsc"
	SortRequiresFundsAsc      SortKey = "requiresFundsAsc"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ideaSortKeys = []SortKey{
	SortRecent,
	SortLikes,
	SortMemberCountAsc,
	SortTimeConsumingHoursAsc,
	SortTimeToMakeDaysAsc,
	SortRequiresFundsAsc,
}

var problemSortKeys = []SortKey{
	SortMostReviewedThenHard,
	SortHardestFirst,
	SortEasiestFirst,
	SortMostReviewed,
	SortRecent,
}

// SortKeysFor lists the orderings a board offers, default first.
func SortKeysFor(kind model.Kind) []SortKey {
	if kind == model.KindProblem {
		return append([]SortKey(nil), problemSortKeys...)
	}
	return append([]SortKey(nil), ideaSortKeys...)
}

func DefaultSort(kind model.Kind) SortKey {
	if kind == model.KindProblem {
		return SortMostReviewedThenHard
	}
	return SortRecent
}

// ParseSortKey resolves a sort name for the board. An empty name yields the
// board default; a name the board does not offer is an error.
func ParseSortKey(s string, kind model.Kind) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort(kind), nil
	}
	for _, k := range SortKeysFor(kind) {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, s)
}

type Page struct {
	Items      []model.Item `json:"items"`
	Sort       SortKey      `json:"sort"`
	Total      int          `json:"total"`
	TotalPages int          `json:"total_pages"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	// Start and End are the one-based positions of the first and last item
	// in the window, both zero when the window is empty.
	Start   int  `json:"start"`
	End     int  `json:"end"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Summary renders the pager caption, e.g. "Page 1 of 3 (1-10 of 23)".
func (p Page) Summary() string {
	return fmt.Sprintf("Page %d of %d (%d-%d of %d)", p.Page+1, p.TotalPages, p.Start, p.End, p.Total)
}

// Sort returns a stably sorted copy of items. Items comparing equal keep
// their input order, which callers supply as insertion order.
func Sort(items []model.Item, key SortKey) []model.Item {
	sorted := append([]model.Item(nil), items...)
	less := lessFunc(key)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return sorted
}

// View sorts items and cuts out one zero-based page of pageSize items.
func View(items []model.Item, key SortKey, page, pageSize int) Page {
	pageSize = ClampPageSize(pageSize)
	if page < 0 {
		page = 0
	}
	sorted := Sort(items, key)
	total := len(sorted)

	// Pages past the end render empty. The page is capped one past the last
	// page so page*pageSize never overflows.
	start := total
	if page <= total/pageSize {
		start = page * pageSize
	}
	if page > total/pageSize+1 {
		page = total/pageSize + 1
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	p := Page{
		Items:      sorted[start:end],
		Sort:       key,
		Total:      total,
		TotalPages: TotalPages(total, pageSize),
		Page:       page,
		PageSize:   pageSize,
		HasPrev:    page > 0,
		HasNext:    end < total,
	}
	if end > start {
		p.Start = start + 1
		p.End = end
	}
	return p
}

// TotalPages is ceil(total/pageSize), reported as at least one page.
func TotalPages(total, pageSize int) int {
	pageSize = ClampPageSize(pageSize)
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func lessFunc(key SortKey) func(a, b model.Item) bool {
	switch key {
	case SortMostReviewedThenHard:
		return func(a, b model.Item) bool {
			if a.Rating.Count != b.Rating.Count {
				return a.Rating.Count > b.Rating.Count
			}
			return meanOf(a) > meanOf(b)
		}
	case SortHardestFirst:
		return func(a, b model.Item) bool { return meanOf(a) > meanOf(b) }
	case SortEasiestFirst:
		return func(a, b model.Item) bool { return meanOf(a) < meanOf(b) }
	case SortMostReviewed:
		return func(a, b model.Item) bool { return a.Rating.Count > b.Rating.Count }
	case SortLikes:
		return func(a, b model.Item) bool { return a.Votes.Net() > b.Votes.Net() }
	case SortMemberCountAsc:
		return func(a, b model.Item) bool {
			return orInf(a.Attributes.MemberCount) < orInf(b.Attributes.MemberCount)
		}
	case SortTimeConsumingHoursAsc:
		return func(a, b model.Item) bool {
			return orInf(a.Attributes.TimeConsumingHours) < orInf(b.Attributes.TimeConsumingHours)
		}
	case SortTimeToMakeDaysAsc:
		return func(a, b model.Item) bool {
			return orInf(a.Attributes.TimeToMakeDays) < orInf(b.Attributes.TimeToMakeDays)
		}
	case SortRequiresFundsAsc:
		return func(a, b model.Item) bool {
			return !a.Attributes.RequiresFunds && b.Attributes.RequiresFunds
		}
	default:
		return func(a, b model.Item) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
}

func meanOf(item model.Item) float64 {
	if item.Rating.Count == 0 && item.Rating.Mean == 0 {
		return model.DefaultMean
	}
	return item.Rating.Mean
}

func orInf(v *int) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return float64(*v)
}
