package ingestion

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/juris/chunking"
)

// pageText is normalized document text with the rune offset at which
// each non-empty source page begins.
type pageText struct {
	text   string
	starts []int // rune offsets, ascending
	pages  []int // 1-based page number for each start
}

// normalizePages normalizes each page and joins the non-empty ones with a
// newline. The result is itself normalized.
func normalizePages(pages []string) pageText {
	var pt pageText
	var sb strings.Builder
	offset := 0
	for i, raw := range pages {
		text := chunking.Normalize(raw)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
			offset++
		}
		pt.starts = append(pt.starts, offset)
		pt.pages = append(pt.pages, i+1)
		sb.WriteString(text)
		offset += utf8.RuneCountInString(text)
	}
	pt.text = sb.String()
	return pt
}

// pageAt returns the page containing rune offset idx.
func (pt *pageText) pageAt(idx int) int {
	if len(pt.starts) == 0 {
		return 1
	}
	i := sort.Search(len(pt.starts), func(i int) bool { return pt.starts[i] > idx }) - 1
	if i < 0 {
		i = 0
	}
	return pt.pages[i]
}

// pageRange returns the first and last page touched by [start, end).
func (pt *pageText) pageRange(start, end int) (int, int) {
	last := end - 1
	if last < start {
		last = start
	}
	return pt.pageAt(start), pt.pageAt(last)
}
