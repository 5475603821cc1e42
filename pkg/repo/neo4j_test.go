package repo_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bmwdex/bmwdex/pkg/repo"
	"github.com/bmwdex/bmwdex/pkg/repo/repotest"
)

type engine struct {
	Code   string
	Family string
}

func mapping() repo.Neo4jMapping[engine, string] {
	return repo.Neo4jMapping[engine, string]{
		Label: "Engine",
		IDKey: "code",
		ID:    func(e engine) string { return e.Code },
		ToProps: func(e engine) map[string]any {
			return map[string]any{"code": e.Code, "family": e.Family}
		},
		FromNode: func(p map[string]any) (engine, error) {
			return engine{Code: repo.Str(p, "code"), Family: repo.Str(p, "family")}, nil
		},
	}
}

func newRepo(t *testing.T, o *repotest.Opener) *repo.Neo4jRepo[engine, string] {
	t.Helper()
	r, err := repo.NewNeo4jRepo(o, mapping())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewNeo4jRepoRejectsBadIdentifiers(t *testing.T) {
	m := mapping()
	m.Label = "Engine) DETACH DELETE (x"
	if _, err := repo.NewNeo4jRepo(&repotest.Opener{}, m); err == nil {
		t.Fatal("expected error for injected label")
	}
	m = mapping()
	m.FromNode = nil
	if _, err := repo.NewNeo4jRepo(&repotest.Opener{}, m); err == nil {
		t.Fatal("expected error for incomplete mapping")
	}
}

func TestGet(t *testing.T) {
	o := &repotest.Opener{}
	o.Respond("MATCH (n:Engine {code: $id})", repotest.Node("n", map[string]any{"code": "B58B30O0", "family": "B58"}))
	r := newRepo(t, o)

	got, err := r.Get(context.Background(), "B58B30O0")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(engine{Code: "B58B30O0", Family: "B58"}, got); diff != "" {
		t.Errorf("Get (-want +got):\n%s", diff)
	}
	if o.Opened != 1 || o.Closed != 1 {
		t.Errorf("sessions opened %d closed %d", o.Opened, o.Closed)
	}
}

func TestGetNotFound(t *testing.T) {
	r := newRepo(t, &repotest.Opener{})
	_, err := r.Get(context.Background(), "X99")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetRunError(t *testing.T) {
	boom := errors.New("connection reset")
	r := newRepo(t, &repotest.Opener{FailOn: "MATCH", Err: boom})
	if _, err := r.Get(context.Background(), "B48"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestListPagesAndOrders(t *testing.T) {
	o := &repotest.Opener{}
	o.Respond("RETURN n ORDER BY",
		repotest.Node("n", map[string]any{"code": "B48"}),
		repotest.Node("n", map[string]any{"code": "B58"}),
	)
	r := newRepo(t, o)
	got, err := r.List(context.Background(), repo.ListOpts{Offset: -3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Code != "B58" {
		t.Fatalf("List = %+v", got)
	}
	call := o.Calls()[0]
	if !strings.Contains(call.Cypher, "ORDER BY n.code") {
		t.Errorf("cypher = %q", call.Cypher)
	}
	if call.Params["offset"] != 0 || call.Params["limit"] != repo.DefaultLimit {
		t.Errorf("params = %v", call.Params)
	}
}

func TestUpsertAndDelete(t *testing.T) {
	o := &repotest.Opener{}
	r := newRepo(t, o)
	ctx := context.Background()
	if err := r.Upsert(ctx, engine{Code: "S58B30T0", Family: "S58"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, "S58B30T0"); err != nil {
		t.Fatal(err)
	}
	calls := o.Calls()
	if !strings.HasPrefix(calls[0].Cypher, "MERGE (n:Engine {code: $id})") || calls[0].Params["id"] != "S58B30T0" {
		t.Errorf("upsert = %+v", calls[0])
	}
	if !strings.Contains(calls[1].Cypher, "DETACH DELETE") {
		t.Errorf("delete = %+v", calls[1])
	}
}

func TestNodeProps(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"n", "x"}, Values: []any{map[string]any{"a": "b"}, 42}}
	if p, err := repo.NodeProps(rec, "n"); err != nil || p["a"] != "b" {
		t.Fatalf("map props = %v, %v", p, err)
	}
	if _, err := repo.NodeProps(rec, "x"); err == nil {
		t.Fatal("int value should not decode as node")
	}
	if _, err := repo.NodeProps(rec, "missing"); err == nil {
		t.Fatal("missing key should fail")
	}
	if _, err := repo.NodeProps(nil, "n"); err == nil {
		t.Fatal("nil record should fail")
	}
}

func TestPropHelpers(t *testing.T) {
	p := map[string]any{
		"s": "x", "i": int64(7), "f": 2.0, "b": true,
		"l": []any{"E90", 1, "E92"}, "ls": []string{"F30"},
	}
	if repo.Str(p, "s") != "x" || repo.Str(p, "i") != "" {
		t.Error("Str")
	}
	if repo.Int(p, "i") != 7 || repo.Int(p, "f") != 2 || repo.Int(p, "s") != 0 {
		t.Error("Int")
	}
	if !repo.Bool(p, "b") || repo.Bool(p, "s") {
		t.Error("Bool")
	}
	if diff := cmp.Diff([]string{"E90", "E92"}, repo.Strs(p, "l")); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff([]string{"F30"}, repo.Strs(p, "ls")); diff != "" {
		t.Error(diff)
	}
	if repo.Strs(p, "none") != nil {
		t.Error("missing list should be nil")
	}
}
