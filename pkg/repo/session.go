package repo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a driver result the stores read.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Runner runs one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Session is a Runner that can also run a managed write transaction.
type Session interface {
	Runner
	ExecuteWrite(ctx context.Context, work func(tx Runner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// Opener hands out sessions. Tests swap in fakes here.
type Opener interface {
	OpenSession(ctx context.Context) Session
}

// DriverOpener opens real driver sessions on database ("" for the default).
func DriverOpener(driver neo4j.DriverWithContext, database string) Opener {
	return driverOpener{driver: driver, database: database}
}

type driverOpener struct {
	driver   neo4j.DriverWithContext
	database string
}

func (o driverOpener) OpenSession(ctx context.Context) Session {
	return driverSession{o.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: o.database})}
}

type driverSession struct{ s neo4j.SessionWithContext }

func (d driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return d.s.Run(ctx, cypher, params)
}

func (d driverSession) ExecuteWrite(ctx context.Context, work func(tx Runner) (any, error)) (any, error) {
	return d.s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx})
	})
}

func (d driverSession) Close(ctx context.Context) error { return d.s.Close(ctx) }

type txRunner struct{ tx neo4j.ManagedTransaction }

func (t txRunner) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return t.tx.Run(ctx, cypher, params)
}
