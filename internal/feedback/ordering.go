package feedback

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"validert/internal/models"
)

// DefaultNumericRatioThreshold is the share of numbered points at which the overview
// switches to numeric ordering.
const DefaultNumericRatioThreshold = 0.7

const (
	ModeNumeric       = "NUMERIC"
	ModeDocumentOrder = "DOCUMENT_ORDER"
)

// ChooseMode returns the sort mode and the share of points with a numeric id.
func ChooseMode(points []models.DetectedPoint, threshold float64) (string, float64) {
	if len(points) == 0 {
		return ModeDocumentOrder, 0
	}
	numeric := 0
	for _, p := range points {
		if p.NumericID != "" {
			numeric++
		}
	}
	ratio := float64(numeric) / float64(len(points))
	if ratio >= threshold {
		return ModeNumeric, ratio
	}
	return ModeDocumentOrder, ratio
}

// CompareNumeric orders dotted ids segment by segment as integers. A parent sorts
// before all of its descendants.
func CompareNumeric(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, _ := strconv.Atoi(as[i])
		y, _ := strconv.Atoi(bs[i])
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func documentOrder(points []models.DetectedPoint) []models.DetectedPoint {
	out := append([]models.DetectedPoint{}, points...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OrderInDoc > 0 && b.OrderInDoc > 0 {
			return a.OrderInDoc < b.OrderInDoc
		}
		return a.PageStart < b.PageStart
	})
	return out
}

// orderPoints sorts and deduplicates points for the overview.
func orderPoints(points []models.DetectedPoint, mode string) []models.DetectedPoint {
	doc := documentOrder(points)
	if mode != ModeNumeric {
		seen := map[string]struct{}{}
		out := make([]models.DetectedPoint, 0, len(doc))
		for _, p := range doc {
			if _, dup := seen[p.PointKey]; dup {
				continue
			}
			seen[p.PointKey] = struct{}{}
			out = append(out, p)
		}
		return out
	}

	numeric := make([]models.DetectedPoint, 0, len(doc))
	index := map[string]int{}
	var rest []models.DetectedPoint
	seenKeys := map[string]struct{}{}
	for _, p := range doc {
		if p.NumericID == "" {
			if _, dup := seenKeys[p.PointKey]; !dup {
				seenKeys[p.PointKey] = struct{}{}
				rest = append(rest, p)
			}
			continue
		}
		if i, dup := index[p.NumericID]; dup {
			numeric[i] = mergeMissing(numeric[i], p)
			continue
		}
		index[p.NumericID] = len(numeric)
		numeric = append(numeric, p)
	}
	sort.SliceStable(numeric, func(i, j int) bool {
		return CompareNumeric(numeric[i].NumericID, numeric[j].NumericID) < 0
	})
	return append(numeric, rest...)
}

func mergeMissing(dst, src models.DetectedPoint) models.DetectedPoint {
	if dst.ConditionCode == "" {
		dst.ConditionCode = src.ConditionCode
	}
	if dst.AnchorText == "" {
		dst.AnchorText = src.AnchorText
	}
	if dst.Excerpt == "" {
		dst.Excerpt = src.Excerpt
	}
	if dst.PageStart == 0 {
		dst.PageStart = src.PageStart
	}
	if dst.PageEnd == 0 {
		dst.PageEnd = src.PageEnd
	}
	return dst
}

func orderingNote(mode string, ratio, threshold float64, total int) string {
	if total == 0 {
		return "no points detected"
	}
	if mode == ModeNumeric {
		return fmt.Sprintf("numeric ratio %.2f >= %.2f", ratio, threshold)
	}
	return fmt.Sprintf("numeric ratio %.2f < %.2f", ratio, threshold)
}
