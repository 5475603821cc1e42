package repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Neo4jRepo stores T as nodes with one label, keyed by one property.
type Neo4jRepo[T any, ID comparable] struct {
	opener   Opener
	label    string
	idKey    string
	idOf     func(T) ID
	toProps  func(T) map[string]any
	fromNode func(map[string]any) (T, error)
}

// Neo4jMapping tells a Neo4jRepo how T maps onto node properties.
type Neo4jMapping[T any, ID comparable] struct {
	Label    string
	IDKey    string
	ID       func(T) ID
	ToProps  func(T) map[string]any
	FromNode func(props map[string]any) (T, error)
}

// NewNeo4jRepo validates the mapping and builds the repository. Label and
// IDKey are interpolated into Cypher, so they must be plain identifiers.
func NewNeo4jRepo[T any, ID comparable](opener Opener, m Neo4jMapping[T, ID]) (*Neo4jRepo[T, ID], error) {
	if !identRe.MatchString(m.Label) || !identRe.MatchString(m.IDKey) {
		return nil, fmt.Errorf("repo: invalid label %q or id key %q", m.Label, m.IDKey)
	}
	if m.ID == nil || m.ToProps == nil || m.FromNode == nil {
		return nil, fmt.Errorf("repo: %s mapping is incomplete", m.Label)
	}
	return &Neo4jRepo[T, ID]{
		opener:   opener,
		label:    m.Label,
		idKey:    m.IDKey,
		idOf:     m.ID,
		toProps:  m.ToProps,
		fromNode: m.FromNode,
	}, nil
}

var _ Repository[struct{}, string] = (*Neo4jRepo[struct{}, string])(nil)

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n LIMIT 1", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, fmt.Errorf("repo: get %s %v: %w", r.label, id, err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return zero, fmt.Errorf("repo: get %s %v: %w", r.label, id, err)
		}
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.decode(res.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"offset": max(opts.Offset, 0), "limit": opts.limit()})
	if err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}
	var out []T
	for res.Next(ctx) {
		item, err := r.decode(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}
	return out, nil
}

func (r *Neo4jRepo[T, ID]) Upsert(ctx context.Context, entity T) error {
	sess := r.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	if _, err := sess.Run(ctx, cypher, map[string]any{"id": r.idOf(entity), "props": r.toProps(entity)}); err != nil {
		return fmt.Errorf("repo: upsert %s: %w", r.label, err)
	}
	return nil
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	sess := r.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	if _, err := sess.Run(ctx, cypher, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("repo: delete %s %v: %w", r.label, id, err)
	}
	return nil
}

func (r *Neo4jRepo[T, ID]) decode(rec *neo4j.Record) (T, error) {
	var zero T
	props, err := NodeProps(rec, "n")
	if err != nil {
		return zero, fmt.Errorf("repo: decode %s: %w", r.label, err)
	}
	return r.fromNode(props)
}

// NodeProps returns the properties of the node bound to key. Plain maps are
// accepted too, which is what test records carry.
func NodeProps(rec *neo4j.Record, key string) (map[string]any, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil record")
	}
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("no %q in record", key)
	}
	switch n := v.(type) {
	case dbtype.Node:
		return n.Props, nil
	case map[string]any:
		return n, nil
	}
	return nil, fmt.Errorf("%q is %T, not a node", key, v)
}

// Str reads a string property, "" when missing or of another type.
func Str(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// Int reads an integer property. Neo4j returns int64.
func Int(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Bool reads a boolean property.
func Bool(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

// Strs reads a list-of-strings property.
func Strs(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
