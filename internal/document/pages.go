package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Page is one page of extracted text, addressed by its 1-based number.
type Page struct {
	Number int
	Text   string
}

// Page boundaries are either marker lines ("=== PAGE 3 ===") or form feeds.
var pageMarker = regexp.MustCompile(`(?i)^\s*=+\s*page\s+(\d+)\s*=+\s*$`)

func MarkerLine(n int) string {
	return fmt.Sprintf("=== PAGE %d ===", n)
}

// Join renders pages with a marker line in front of each page. Split(Join(p)) == p.
func Join(pages []string) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(MarkerLine(i + 1))
		b.WriteString("\n")
		b.WriteString(p)
	}
	return b.String()
}

// Split cuts paginated text into pages. Text without any boundary is page 1.
func Split(text string) []Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		pages   []Page
		lines   []string
		current = 1
		started bool
		viaFeed bool
	)
	flush := func() {
		body := strings.Join(lines, "\n")
		if (started && !viaFeed) || strings.TrimSpace(body) != "" {
			pages = append(pages, Page{Number: current, Text: body})
		}
		lines = lines[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if m := pageMarker.FindStringSubmatch(line); m != nil {
			if started || len(lines) > 0 {
				flush()
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				n = nextNumber(pages)
			}
			current = n
			started = true
			viaFeed = false
			continue
		}
		parts := strings.Split(line, "\f")
		for i, part := range parts {
			if i > 0 {
				flush()
				current = nextNumber(pages)
				started = true
				viaFeed = true
			}
			if i == len(parts)-1 || part != "" {
				lines = append(lines, part)
			}
		}
	}
	flush()
	return pages
}

func nextNumber(pages []Page) int {
	if len(pages) == 0 {
		return 1
	}
	return pages[len(pages)-1].Number + 1
}

func (p Page) Lines() []string {
	if p.Text == "" {
		return nil
	}
	return strings.Split(p.Text, "\n")
}
