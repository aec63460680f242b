package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plantlens/plantlens/pkg/types"
)

func rows(ids ...string) []types.Row {
	out := make([]types.Row, len(ids))
	for i, id := range ids {
		out[i] = types.Row{"machine": id, "energy": 1.0, "output": 10.0, "oee": 0.8}
	}
	return out
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(time.Hour, 0)
	if err := st.Put("line-a", rows("M1", "M2")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	d, ok := st.Get("line-a")
	if !ok {
		t.Fatal("Get: expected dataset, got none")
	}
	if d.ID != "line-a" || len(d.Rows) != 2 {
		t.Errorf("Get: got %s with %d rows, want line-a with 2", d.ID, len(d.Rows))
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(time.Hour, 0)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_Replaces(t *testing.T) {
	st := New(time.Hour, 0)
	_ = st.Put("d", rows("M1", "M2", "M3"))
	_ = st.Put("d", rows("M9"))

	d, _ := st.Get("d")
	if len(d.Rows) != 1 || d.Rows[0]["machine"] != "M9" {
		t.Errorf("rows after replace: got %v", d.Rows)
	}
}

func TestAppend(t *testing.T) {
	st := New(time.Hour, 0)
	n, err := st.Append("d", rows("M1"))
	if err != nil || n != 1 {
		t.Fatalf("Append to new dataset: got (%d, %v), want (1, nil)", n, err)
	}
	n, err = st.Append("d", rows("M2", "M3"))
	if err != nil || n != 3 {
		t.Fatalf("Append: got (%d, %v), want (3, nil)", n, err)
	}
	d, _ := st.Get("d")
	if d.Rows[2]["machine"] != "M3" {
		t.Errorf("row order not preserved: %v", d.Rows)
	}
}

func TestRowLimit(t *testing.T) {
	st := New(time.Hour, 2)

	if err := st.Put("d", rows("M1", "M2", "M3")); !errors.Is(err, ErrRowLimit) {
		t.Errorf("Put over limit: got %v, want ErrRowLimit", err)
	}
	if st.Count() != 0 {
		t.Errorf("Count after rejected Put: got %d, want 0", st.Count())
	}

	if _, err := st.Append("fresh", rows("M1", "M2", "M3")); !errors.Is(err, ErrRowLimit) {
		t.Errorf("Append over limit: got %v, want ErrRowLimit", err)
	}
	if _, ok := st.Get("fresh"); ok {
		t.Error("rejected Append left an empty dataset behind")
	}

	_ = st.Put("d", rows("M1"))
	n, err := st.Append("d", rows("M2", "M3"))
	if !errors.Is(err, ErrRowLimit) {
		t.Errorf("Append past limit: got %v, want ErrRowLimit", err)
	}
	if n != 1 {
		t.Errorf("row count after rejected Append: got %d, want 1", n)
	}
}

func TestIsolation(t *testing.T) {
	st := New(time.Hour, 0)
	in := rows("M1")
	_ = st.Put("d", in)

	in[0]["machine"] = "changed by caller"
	d, _ := st.Get("d")
	if d.Rows[0]["machine"] != "M1" {
		t.Error("store shares rows with the caller that put them")
	}

	d.Rows[0]["machine"] = "changed by reader"
	again, _ := st.Get("d")
	if again.Rows[0]["machine"] != "M1" {
		t.Error("store shares rows with the caller that read them")
	}
}

func TestDelete(t *testing.T) {
	st := New(time.Hour, 0)
	_ = st.Put("d", rows("M1"))
	if !st.Delete("d") {
		t.Error("Delete existing: got false")
	}
	if st.Delete("d") {
		t.Error("Delete missing: got true")
	}
	if st.Count() != 0 {
		t.Errorf("Count: got %d, want 0", st.Count())
	}
}

func TestList_ExcludesStaleAndSorts(t *testing.T) {
	base := time.Now()
	st := New(time.Hour, 0)

	st.now = fixedClock(base.Add(-2 * time.Hour))
	_ = st.Put("old", rows("M1"))
	st.now = fixedClock(base)
	_ = st.Put("b", rows("M1", "M2"))
	_ = st.Put("a", rows("M1"))

	list := st.List()
	if len(list) != 2 {
		t.Fatalf("List: got %d datasets, want 2", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" || list[1].Rows != 2 {
		t.Errorf("List: got %+v, want a then b(2 rows)", list)
	}
	if st.Count() != 3 {
		t.Errorf("Count includes stale: got %d, want 3", st.Count())
	}
}

func TestEvict(t *testing.T) {
	base := time.Now()
	st := New(time.Hour, 0)

	st.now = fixedClock(base.Add(-2 * time.Hour))
	_ = st.Put("old", rows("M1"))
	st.now = fixedClock(base)
	_ = st.Put("new", rows("M1"))

	if n := st.Evict(base); n != 1 {
		t.Errorf("Evict: removed %d, want 1", n)
	}
	if _, ok := st.Get("old"); ok {
		t.Error("old dataset survived eviction")
	}
	if _, ok := st.Get("new"); !ok {
		t.Error("fresh dataset was evicted")
	}
}

func TestEvict_ZeroTTLKeepsEverything(t *testing.T) {
	st := New(0, 0)
	st.now = fixedClock(time.Now().Add(-24 * time.Hour))
	_ = st.Put("d", rows("M1"))
	if n := st.Evict(time.Now()); n != 0 {
		t.Errorf("Evict with zero TTL: removed %d, want 0", n)
	}
	if len(st.List()) != 1 {
		t.Error("List with zero TTL hides the dataset")
	}
}

func TestAppend_RefreshesTTL(t *testing.T) {
	base := time.Now()
	st := New(time.Hour, 0)
	st.now = fixedClock(base.Add(-50 * time.Minute))
	_ = st.Put("d", rows("M1"))
	st.now = fixedClock(base)
	_, _ = st.Append("d", rows("M2"))

	if n := st.Evict(base.Add(30 * time.Minute)); n != 0 {
		t.Errorf("Evict after Append: removed %d, want 0", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(time.Hour, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = st.Append("shared", rows("M1"))
			st.Get("shared")
			st.List()
		}()
	}
	wg.Wait()

	d, _ := st.Get("shared")
	if len(d.Rows) != 50 {
		t.Errorf("rows after concurrent appends: got %d, want 50", len(d.Rows))
	}
}
