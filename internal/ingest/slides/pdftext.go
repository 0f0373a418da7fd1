package slides

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// textRegion is one reading-order line extracted from a PDF page's native
// text layer, with enough geometry to drive the role heuristics of §4.3.
type textRegion struct {
	text     string
	x, y     float64 // top-left-ish anchor, PDF units (origin bottom-left)
	w        float64
	fontSize float64
	fontName string
}

// extractPageTextRegions groups a page's raw Content().Text runs into
// visual lines by Y proximity (matching content-stream order within a
// line), then orders lines top-to-bottom and, within overlapping bands,
// left-to-right. Falls back to GetPlainText as a single region when no
// positioned text runs are available (scanned/flattened pages).
func extractPageTextRegions(page pdf.Page) []textRegion {
	content := page.Content()
	if len(content.Text) == 0 {
		txt, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(txt) == "" {
			return nil
		}
		return []textRegion{{text: strings.TrimSpace(txt), x: 0, y: 0, w: 1}}
	}

	const lineTolerance = 3.0
	type line struct {
		y, minX, maxX, maxFont float64
		font                   string
		buf                    strings.Builder
	}
	var lines []*line
	var cur *line
	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &line{y: t.Y, minX: t.X, maxX: t.X + t.W, maxFont: t.FontSize, font: t.Font})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
		if t.X < cur.minX {
			cur.minX = t.X
		}
		if t.X+t.W > cur.maxX {
			cur.maxX = t.X + t.W
		}
		if t.FontSize > cur.maxFont {
			cur.maxFont = t.FontSize
			cur.font = t.Font
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if math.Abs(lines[i].y-lines[j].y) > lineTolerance {
			return lines[i].y > lines[j].y // higher Y = higher on page (PDF coords)
		}
		return lines[i].minX < lines[j].minX
	})

	var regions []textRegion
	for _, l := range lines {
		txt := strings.TrimSpace(l.buf.String())
		if txt == "" {
			continue
		}
		regions = append(regions, textRegion{
			text:     txt,
			x:        l.minX,
			y:        l.y,
			w:        l.maxX - l.minX,
			fontSize: l.maxFont,
			fontName: l.font,
		})
	}
	return regions
}

// pageBounds returns the content-area bounding box observed across all
// regions, used to normalize coordinates into [0,1] absent true page
// geometry. Degenerate (empty/zero-area) input yields the full unit square.
func pageBounds(regions []textRegion) (minX, minY, maxX, maxY float64) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64
	for _, r := range regions {
		if r.x < minX {
			minX = r.x
		}
		if r.y < minY {
			minY = r.y
		}
		if r.x+r.w > maxX {
			maxX = r.x + r.w
		}
		if r.y > maxY {
			maxY = r.y
		}
	}
	if minX > maxX || minY > maxY || maxX-minX <= 0 || maxY-minY <= 0 {
		return 0, 0, 1, 1
	}
	return minX, minY, maxX, maxY
}

func isMonospace(fontName string) bool {
	n := strings.ToLower(fontName)
	return strings.Contains(n, "mono") || strings.Contains(n, "courier") || strings.Contains(n, "consolas")
}

func hasBulletPrefix(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	r := []rune(t)[0]
	switch r {
	case '•', '◦', '▪', '‣', '·', '*', '-':
		return len(t) > 1 && unicode.IsSpace([]rune(t)[1])
	default:
		return false
	}
}
