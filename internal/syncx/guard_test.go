package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)

	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	g.Set(100)
	if got := g.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}
}

func TestGuardView(t *testing.T) {
	g := NewGuard([]int{1, 2, 3})

	var n int
	g.View(func(v []int) { n = len(v) })

	if n != 3 {
		t.Errorf("View saw len %d, want 3", n)
	}
}

func TestGuardConcurrentSafety(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			g.Set(v)
		}(i)
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}

	wg.Wait()

	if got := g.Get(); got < 1 || got > 100 {
		t.Errorf("Get() = %d, want a stored value", got)
	}
}

func TestGuardWithStruct(t *testing.T) {
	type state struct {
		failures  int
		successes int
	}

	g := NewGuard(state{})
	g.Set(state{failures: 5, successes: 10})

	got := g.Get()
	if got.failures != 5 || got.successes != 10 {
		t.Errorf("Get() = %+v, want {5, 10}", got)
	}
}
