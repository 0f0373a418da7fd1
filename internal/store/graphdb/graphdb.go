// Package graphdb persists diagram entities and edges into Neo4j and answers
// the traversal queries the relational DiagramEntityRepo/DiagramEdgeRepo
// were never meant to: neighbors of a node, paths between two nodes. The
// relational rows stay the source of truth for "what belongs to this
// document"; this package is a derived index, rebuildable from them the
// same way the vector index is rebuildable from block_vectors.
package graphdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/platform/neo4jdb"
)

// UpsertDiagramGraph writes a document's entities and edges as MERGEd nodes
// and relationships. A nil client or driver is a no-op: the graph store is
// optional infrastructure, and callers (the diagram ingestor) must not fail
// an ingest because Neo4j isn't configured.
func UpsertDiagramGraph(
	ctx context.Context,
	client *neo4jdb.Client,
	log *logger.Logger,
	documentID uuid.UUID,
	entities []*content.DiagramEntity,
	edges []*content.DiagramEdge,
) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if documentID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	entityNodes := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		if e == nil || e.ID == uuid.Nil || e.DocumentID != documentID {
			continue
		}
		node := map[string]any{
			"id":          e.ID.String(),
			"document_id": e.DocumentID.String(),
			"label":       e.Label,
			"entity_kind": e.EntityKind,
			"synced_at":   now,
		}
		if e.Bbox != nil {
			node["bbox_x"] = e.Bbox.X
			node["bbox_y"] = e.Bbox.Y
			node["bbox_w"] = e.Bbox.W
			node["bbox_h"] = e.Bbox.H
		}
		entityNodes = append(entityNodes, node)
	}

	edgeRels := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.ID == uuid.Nil || e.DocumentID != documentID {
			continue
		}
		edgeRels = append(edgeRels, map[string]any{
			"id":        e.ID.String(),
			"src_id":    e.SrcEntityID.String(),
			"dst_id":    e.DstEntityID.String(),
			"label":     e.Label,
			"directed":  e.Directed,
			"synced_at": now,
		})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	{
		stmts := []string{
			`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
			`CREATE CONSTRAINT diagram_entity_id_unique IF NOT EXISTS FOR (e:DiagramEntity) REQUIRE e.id IS UNIQUE`,
		}
		for _, q := range stmts {
			if res, err := session.Run(ctx, q, nil); err != nil {
				if log != nil {
					log.Warn("neo4j schema init failed (continuing)", "error", err)
				}
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if res, err := tx.Run(ctx, `
MERGE (d:Document {id: $id})
SET d.synced_at = $synced_at
`, map[string]any{"id": documentID.String(), "synced_at": now}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(entityNodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $entities AS e
MERGE (de:DiagramEntity {id: e.id})
SET de += e
WITH de, e
MERGE (d:Document {id: e.document_id})
MERGE (de)-[:IN_DOCUMENT]->(d)
`, map[string]any{"entities": entityNodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edgeRels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MERGE (src:DiagramEntity {id: r.src_id})
MERGE (dst:DiagramEntity {id: r.dst_id})
MERGE (src)-[rel:CONNECTS_TO {id: r.id}]->(dst)
SET rel.label = r.label,
    rel.directed = r.directed,
    rel.synced_at = r.synced_at
`, map[string]any{"rels": edgeRels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}

// DeleteDocumentGraph removes a document's node and everything attached to
// it, mirroring the relational store's cascade-on-document-delete (spec
// §4.12) so the graph index never outlives the rows it was derived from.
func DeleteDocumentGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, documentID uuid.UUID) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if documentID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {id: $id})
OPTIONAL MATCH (d)<-[:IN_DOCUMENT]-(e:DiagramEntity)
DETACH DELETE d, e
`, map[string]any{"id": documentID.String()})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

// Neighbor is one hop away from a queried entity.
type Neighbor struct {
	EntityID uuid.UUID
	Label    string
	Outgoing bool
}

// Neighbors returns the entities directly connected to entityID by a
// CONNECTS_TO relationship in either direction, the traversal query the
// relational DiagramEdgeRepo cannot answer without pulling every edge row
// for the document and walking them in Go.
func Neighbors(ctx context.Context, client *neo4jdb.Client, entityID uuid.UUID) ([]Neighbor, error) {
	if client == nil || client.Driver == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (e:DiagramEntity {id: $id})-[r:CONNECTS_TO]-(n:DiagramEntity)
RETURN n.id AS id, r.label AS label, startNode(r).id = $id AS outgoing
`, map[string]any{"id": entityID.String()})
		if err != nil {
			return nil, err
		}
		var neighbors []Neighbor
		for res.Next(ctx) {
			rec := res.Record()
			idStr, _ := rec.Get("id")
			labelVal, _ := rec.Get("label")
			outgoingVal, _ := rec.Get("outgoing")
			id, err := uuid.Parse(toString(idStr))
			if err != nil {
				continue
			}
			n := Neighbor{EntityID: id}
			if s, ok := labelVal.(string); ok {
				n.Label = s
			}
			if b, ok := outgoingVal.(bool); ok {
				n.Outgoing = b
			}
			neighbors = append(neighbors, n)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return neighbors, nil
	})
	if err != nil {
		return nil, err
	}
	neighbors, _ := result.([]Neighbor)
	return neighbors, nil
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
