// Package repotest provides an in-memory repo.Opener that records every
// Cypher statement and replays canned records.
package repotest

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bmwdex/bmwdex/pkg/repo"
)

// Call is one recorded statement.
type Call struct {
	Cypher string
	Params map[string]any
	InTx   bool
}

// Opener is a fake repo.Opener. Responses are matched by substring of the
// Cypher text, first registered match wins.
type Opener struct {
	mu        sync.Mutex
	calls     []Call
	responses []response
	// FailOn makes any statement containing the substring return Err.
	FailOn string
	Err    error
	// Opened and Closed count sessions.
	Opened, Closed int
}

type response struct {
	match   string
	records []*neo4j.Record
}

// Respond registers records returned for statements containing match.
func (o *Opener) Respond(match string, records ...*neo4j.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses = append(o.responses, response{match: match, records: records})
}

// Calls returns a copy of the recorded statements.
func (o *Opener) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.calls...)
}

// Find returns recorded statements containing substr.
func (o *Opener) Find(substr string) []Call {
	var out []Call
	for _, c := range o.Calls() {
		if strings.Contains(c.Cypher, substr) {
			out = append(out, c)
		}
	}
	return out
}

func (o *Opener) OpenSession(context.Context) repo.Session {
	o.mu.Lock()
	o.Opened++
	o.mu.Unlock()
	return &session{o: o}
}

func (o *Opener) run(cypher string, params map[string]any, inTx bool) (repo.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, Call{Cypher: cypher, Params: params, InTx: inTx})
	if o.FailOn != "" && strings.Contains(cypher, o.FailOn) {
		return nil, o.Err
	}
	for _, r := range o.responses {
		if strings.Contains(cypher, r.match) {
			return &Result{records: r.records}, nil
		}
	}
	return &Result{}, nil
}

type session struct{ o *Opener }

func (s *session) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	return s.o.run(cypher, params, false)
}

func (s *session) ExecuteWrite(_ context.Context, work func(tx repo.Runner) (any, error)) (any, error) {
	return work(txRunner{s.o})
}

func (s *session) Close(context.Context) error {
	s.o.mu.Lock()
	s.o.Closed++
	s.o.mu.Unlock()
	return nil
}

type txRunner struct{ o *Opener }

func (t txRunner) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	return t.o.run(cypher, params, true)
}

// Result iterates canned records.
type Result struct {
	records []*neo4j.Record
	i       int
}

func (r *Result) Next(context.Context) bool {
	if r.i >= len(r.records) {
		return false
	}
	r.i++
	return true
}

func (r *Result) Record() *neo4j.Record {
	if r.i == 0 || r.i > len(r.records) {
		return nil
	}
	return r.records[r.i-1]
}

func (r *Result) Err() error { return nil }

// Node builds a record binding key to a node with props.
func Node(key string, props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{key}, Values: []any{neo4j.Node{Props: props}}}
}
