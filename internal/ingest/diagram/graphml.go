package diagram

import (
	"encoding/xml"
	"strings"
)

// graphmlDoc models the subset of the GraphML schema this ingestor reads:
// plain nodes/edges with an optional label in their first <data> child.
// Struct-based xml.Unmarshal mirrors the teacher's PPTX/DOCX XML parsing.
type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	ID       string        `xml:"id,attr"`
	Source   string        `xml:"source,attr"`
	Target   string        `xml:"target,attr"`
	Directed *bool         `xml:"directed,attr"`
	Data     []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// parsedNode/parsedEdge are the ingestor-neutral result of parsing, before
// ID generation and domain-constructor validation.
type parsedNode struct {
	SourceID string
	Label    string
}

type parsedEdge struct {
	SourceNodeID string
	TargetNodeID string
	Label        string
	Directed     bool
}

func parseGraphML(raw []byte) ([]parsedNode, []parsedEdge, error) {
	var doc graphmlDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, err
	}

	defaultDirected := strings.EqualFold(doc.Graph.EdgeDefault, "directed")

	nodes := make([]parsedNode, 0, len(doc.Graph.Nodes))
	for _, n := range doc.Graph.Nodes {
		nodes = append(nodes, parsedNode{SourceID: n.ID, Label: firstDataValue(n.Data, n.ID)})
	}

	edges := make([]parsedEdge, 0, len(doc.Graph.Edges))
	for _, e := range doc.Graph.Edges {
		directed := defaultDirected
		if e.Directed != nil {
			directed = *e.Directed
		}
		edges = append(edges, parsedEdge{
			SourceNodeID: e.Source,
			TargetNodeID: e.Target,
			Label:        firstDataValue(e.Data, ""),
			Directed:     directed,
		})
	}
	return nodes, edges, nil
}

func firstDataValue(data []graphmlData, fallback string) string {
	for _, d := range data {
		if v := strings.TrimSpace(d.Value); v != "" {
			return v
		}
	}
	return fallback
}
