// Package repo is the persistence seam: small read/write interfaces over
// entities plus a generic Neo4j implementation.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by Get when no entity has the requested id.
var ErrNotFound = errors.New("repo: not found")

// Reader looks entities up by id and pages through them.
type Reader[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
}

// Writer upserts and removes entities.
type Writer[T any, ID comparable] interface {
	Upsert(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
}

// Repository is a Reader and a Writer.
type Repository[T any, ID comparable] interface {
	Reader[T, ID]
	Writer[T, ID]
}

// ListOpts pages a List call. Limit <= 0 means DefaultLimit.
type ListOpts struct {
	Offset int
	Limit  int
}

const DefaultLimit = 100

func (o ListOpts) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}
