package fn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestResult(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	if v, err := r.Unwrap(); v != 42 || err != nil {
		t.Fatalf("Unwrap = %d, %v", v, err)
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || e.Error() == nil {
		t.Fatal("Err should be err")
	}
	if e.UnwrapOr(9) != 9 {
		t.Fatal("UnwrapOr should fall back")
	}

	if Err[int](nil).IsOk() {
		t.Fatal("Err(nil) must still be a failure")
	}
}

func TestErrfWraps(t *testing.T) {
	base := errors.New("base")
	r := Errf[string]("stage %s: %w", "parse", base)
	if !errors.Is(r.Error(), base) {
		t.Fatalf("Errf should wrap: %v", r.Error())
	}
	if r.Error().Error() != "stage parse: base" {
		t.Fatalf("message = %q", r.Error())
	}
}

func TestFromPairAndMapResult(t *testing.T) {
	r := FromPair(strconv.Atoi("12"))
	s := MapResult(r, func(n int) string { return strconv.Itoa(n * 2) })
	if v, _ := s.Unwrap(); v != "24" {
		t.Fatalf("got %q", v)
	}

	bad := MapResult(FromPair(strconv.Atoi("x")), func(n int) string { return "unreachable" })
	if bad.IsOk() {
		t.Fatal("error should carry through MapResult")
	}
}

func TestCollectAndPartition(t *testing.T) {
	boom := errors.New("boom")
	all := []Result[int]{Ok(1), Ok(2), Ok(3)}
	if v, err := Collect(all).Unwrap(); err != nil || !cmp.Equal(v, []int{1, 2, 3}) {
		t.Fatalf("Collect = %v, %v", v, err)
	}
	mixed := []Result[int]{Ok(1), Err[int](boom), Ok(3)}
	if !errors.Is(Collect(mixed).Error(), boom) {
		t.Fatal("Collect should surface the first error")
	}
	vals, errs := Partition(mixed)
	if diff := cmp.Diff([]int{1, 3}, vals); diff != "" {
		t.Errorf("Partition values (-want +got):\n%s", diff)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("Partition errors = %v", errs)
	}
}

func TestThenShortCircuits(t *testing.T) {
	ctx := context.Background()
	var secondCalls int
	parse := Lift(func(_ context.Context, s string) (int, error) { return strconv.Atoi(s) })
	double := Stage[int, int](func(_ context.Context, n int) Result[int] {
		secondCalls++
		return Ok(n * 2)
	})
	pipe := Then(parse, double)

	if v, err := pipe(ctx, "21").Unwrap(); err != nil || v != 42 {
		t.Fatalf("pipe(21) = %d, %v", v, err)
	}
	if pipe(ctx, "nope").IsOk() {
		t.Fatal("expected parse error")
	}
	if secondCalls != 1 {
		t.Fatalf("second stage ran %d times, want 1", secondCalls)
	}
}

func TestPureTapTraced(t *testing.T) {
	ctx := context.Background()
	var seen string
	pipe := Then(
		Tap(func(_ context.Context, s string) { seen = s }),
		Traced("upper", Pure(func(s string) int { return len(s) })),
	)
	if v, _ := pipe(ctx, "B58").Unwrap(); v != 3 {
		t.Fatalf("got %d", v)
	}
	if seen != "B58" {
		t.Fatalf("tap saw %q", seen)
	}

	failing := Traced("fail", Lift(func(context.Context, int) (int, error) { return 0, errors.New("x") }))
	if failing(ctx, 1).IsOk() {
		t.Fatal("Traced must keep the error")
	}
}

func TestLogged(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := Logged("ok", log, Pure(func(n int) int { return n + 1 }))
	if v, _ := ok(context.Background(), 1).Unwrap(); v != 2 {
		t.Fatalf("got %d", v)
	}
	bad := Logged("bad", nil, Lift(func(context.Context, int) (int, error) { return 0, errors.New("x") }))
	if bad(context.Background(), 1).IsOk() {
		t.Fatal("expected error")
	}
}

func TestRetry(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

	var calls int
	res := Retry(context.Background(), opts, func(context.Context) Result[string] {
		calls++
		if calls < 3 {
			return Err[string](errors.New("transient"))
		}
		return Ok("done")
	})
	if v, err := res.Unwrap(); err != nil || v != "done" || calls != 3 {
		t.Fatalf("Retry = %q, %v after %d calls", v, err, calls)
	}

	calls = 0
	res = Retry(context.Background(), opts, func(context.Context) Result[string] {
		calls++
		return Err[string](errors.New("always"))
	})
	if res.IsOk() || calls != 3 {
		t.Fatalf("expected 3 failing calls, got %d", calls)
	}
}

func TestRetryNotRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	opts := RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}
	var calls int
	Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](permanent)
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour}
	res := Retry(ctx, opts, func(context.Context) Result[int] { return Err[int](errors.New("x")) })
	if !errors.Is(res.Error(), context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.Error())
	}
}

func TestRetrying(t *testing.T) {
	var calls atomic.Int32
	stage := Retrying(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		Stage[int, int](func(_ context.Context, n int) Result[int] {
			if calls.Add(1) == 1 {
				return Err[int](errors.New("first"))
			}
			return Ok(n)
		}))
	if v, err := stage(context.Background(), 7).Unwrap(); err != nil || v != 7 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	in := make([]int, 50)
	for i := range in {
		in[i] = i
	}
	var active, peak atomic.Int32
	out := ParMap(in, 4, func(n int) int {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return n * n
	})
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
	if peak.Load() > 4 {
		t.Fatalf("peak concurrency %d exceeds 4 workers", peak.Load())
	}
}

func TestParMapEdges(t *testing.T) {
	if out := ParMap([]int{}, 3, func(n int) int { return n }); len(out) != 0 {
		t.Fatal("empty input should give empty output")
	}
	out := ParMap([]int{1, 2}, 0, func(n int) int { return -n })
	if diff := cmp.Diff([]int{-1, -2}, out); diff != "" {
		t.Fatal(diff)
	}
	res := ParMapResult([]string{"1", "x"}, 2, func(s string) Result[int] { return FromPair(strconv.Atoi(s)) })
	if res[0].IsErr() || res[1].IsOk() {
		t.Fatalf("ParMapResult = %+v", res)
	}
}

func TestSliceHelpers(t *testing.T) {
	codes := []string{"B58B30", "", "B58B30", "S58B30", "B58B30"}
	if diff := cmp.Diff([]string{"B58B30", "", "S58B30"}, Unique(codes)); diff != "" {
		t.Errorf("Unique (-want +got):\n%s", diff)
	}
	nonEmpty := Filter(codes, func(s string) bool { return s != "" })
	if len(nonEmpty) != 4 {
		t.Errorf("Filter kept %d", len(nonEmpty))
	}
	if diff := cmp.Diff([]int{6, 0, 6, 6, 6}, Map(codes, func(s string) int { return len(s) })); diff != "" {
		t.Errorf("Map (-want +got):\n%s", diff)
	}
}

func TestGroupOrdered(t *testing.T) {
	type cfg struct{ code, power string }
	in := []cfg{{"B58", "340"}, {"S58", "480"}, {"B58", "382"}}
	got := GroupOrdered(in, func(c cfg) string { return c.code })
	want := []Group[string, cfg]{
		{Key: "B58", Items: []cfg{{"B58", "340"}, {"B58", "382"}}},
		{Key: "S58", Items: []cfg{{"S58", "480"}}},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(cfg{})); diff != "" {
		t.Errorf("GroupOrdered (-want +got):\n%s", diff)
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if diff := cmp.Diff([][]int{{1, 2}, {3, 4}, {5}}, got); diff != "" {
		t.Errorf("Chunk (-want +got):\n%s", diff)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n=0 should be nil")
	}
}
