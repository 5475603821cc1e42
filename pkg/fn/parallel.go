package fn

import "sync"

// ParMap applies f to every item using at most workers goroutines. Output
// order matches input order. workers <= 0 means one goroutine per item.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range idx {
				out[i] = f(items[i])
			}
		}()
	}
	for i := range items {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return out
}

// ParMapResult is ParMap for fallible functions.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	return ParMap(items, workers, f)
}
