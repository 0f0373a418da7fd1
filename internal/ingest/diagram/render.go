package diagram

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const canvasSize = 1024

type layoutNode struct {
	label string
	cx    float64
	cy    float64
}

// circularLayout places nodes evenly around a circle; GraphML carries no
// reliable coordinate data in the general case, so this mirrors common
// graph-drawing defaults rather than attempting force-direction.
func circularLayout(nodes []parsedNode) []layoutNode {
	n := len(nodes)
	out := make([]layoutNode, n)
	radius := float64(canvasSize) * 0.38
	center := float64(canvasSize) / 2
	if n == 1 {
		out[0] = layoutNode{label: nodes[0].Label, cx: center, cy: center}
		return out
	}
	for i, node := range nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out[i] = layoutNode{
			label: node.Label,
			cx:    center + radius*math.Cos(angle),
			cy:    center + radius*math.Sin(angle),
		}
	}
	return out
}

// renderGraph draws a circular node-link diagram as a PNG, mirroring the
// gg.NewContext/DrawCircle/SetFontFace/DrawString/EncodePNG idiom used
// elsewhere in the stack for programmatic bitmap generation. fontPath is
// optional; when empty the built-in basicfont face is used so rendering
// never depends on a font asset being present on disk.
func renderGraph(nodes []parsedNode, edges []parsedEdge, fontPath string) ([]byte, error) {
	dc := gg.NewContext(canvasSize, canvasSize)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	face, err := loadGraphFontFace(fontPath)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(face)

	layout := circularLayout(nodes)
	positionByID := make(map[string]layoutNode, len(nodes))
	for i, node := range nodes {
		positionByID[node.SourceID] = layout[i]
	}

	dc.SetRGB(0.55, 0.55, 0.6)
	for _, e := range edges {
		src, ok1 := positionByID[e.SourceNodeID]
		dst, ok2 := positionByID[e.TargetNodeID]
		if !ok1 || !ok2 {
			continue
		}
		dc.SetLineWidth(2)
		dc.DrawLine(src.cx, src.cy, dst.cx, dst.cy)
		dc.Stroke()
		if e.Directed {
			drawArrowhead(dc, src.cx, src.cy, dst.cx, dst.cy)
		}
	}

	const nodeRadius = 36
	for _, n := range layout {
		dc.SetRGB(0.2, 0.45, 0.85)
		dc.DrawCircle(n.cx, n.cy, nodeRadius)
		dc.Fill()

		dc.SetRGB(0.1, 0.1, 0.1)
		tw, _ := dc.MeasureString(n.label)
		dc.DrawString(n.label, n.cx-tw/2, n.cy+nodeRadius+14)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode diagram png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawArrowhead(dc *gg.Context, x0, y0, x1, y1 float64) {
	const size = 10
	angle := math.Atan2(y1-y0, x1-x0)
	backAngle1 := angle + math.Pi - math.Pi/8
	backAngle2 := angle + math.Pi + math.Pi/8
	dc.DrawLine(x1, y1, x1+size*math.Cos(backAngle1), y1+size*math.Sin(backAngle1))
	dc.Stroke()
	dc.DrawLine(x1, y1, x1+size*math.Cos(backAngle2), y1+size*math.Sin(backAngle2))
	dc.Stroke()
}

func loadGraphFontFace(fontPath string) (font.Face, error) {
	if fontPath == "" {
		return basicfont.Face7x13, nil
	}
	raw, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read diagram font: %w", err)
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse diagram font: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{Size: 18, DPI: 72, Hinting: font.HintingNone}), nil
}
