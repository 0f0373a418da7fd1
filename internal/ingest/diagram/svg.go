package diagram

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// parseSVGLabels walks an SVG document token-by-token rather than via
// struct-based xml.Unmarshal: <text> elements can nest arbitrarily deep
// inside <g> groups, and SVG carries many vendor dialects of the shape
// elements that would relate text to edges, so this deliberately extracts
// label nodes only and does not attempt to infer edges from paths/lines/
// arrows — scoped out rather than guessed at.
func parseSVGLabels(raw []byte) ([]parsedNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var nodes []parsedNode
	var inText bool
	var textBuf strings.Builder
	seq := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text" || t.Name.Local == "tspan" {
				if !inText {
					inText = true
					textBuf.Reset()
				}
			}
		case xml.CharData:
			if inText {
				textBuf.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "text" {
				inText = false
				label := strings.TrimSpace(textBuf.String())
				textBuf.Reset()
				if label != "" {
					seq++
					nodes = append(nodes, parsedNode{SourceID: "svg-text-" + strconv.Itoa(seq), Label: label})
				}
			}
		}
	}
	return nodes, nil
}
