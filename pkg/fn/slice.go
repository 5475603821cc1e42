package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter keeps the elements for which keep returns true.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, v := range items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// UniqueBy keeps the first element for each key, in input order.
func UniqueBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	var out []T
	for _, v := range items {
		k := key(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Unique keeps the first occurrence of each element.
func Unique[T comparable](items []T) []T {
	return UniqueBy(items, func(v T) T { return v })
}

// Group is one bucket produced by GroupOrdered.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupOrdered buckets items by key. Groups appear in the order their key was
// first seen, and items keep their input order inside a group.
func GroupOrdered[T any, K comparable](items []T, key func(T) K) []Group[K, T] {
	pos := make(map[K]int)
	var out []Group[K, T]
	for _, v := range items {
		k := key(v)
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, Group[K, T]{Key: k})
		}
		out[i].Items = append(out[i].Items, v)
	}
	return out
}

// Chunk splits items into slices of at most n. It returns nil if n <= 0.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	var out [][]T
	for len(items) > 0 {
		end := min(n, len(items))
		out = append(out, items[:end])
		items = items[end:]
	}
	return out
}
