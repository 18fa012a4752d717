package journal

import (
	"context"
	"testing"
)

func makeEntry(seq uint64, kind Kind) Entry {
	e := NewEntry(kind)
	e.Seq = seq
	return e
}

func TestMemStore_AppendListLatest(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	seq, err := store.LatestSeq(ctx)
	if err != nil || seq != 0 {
		t.Fatalf("LatestSeq(empty) = %d, %v, want 0, nil", seq, err)
	}

	for i := uint64(1); i <= 5; i++ {
		if err := store.Append(ctx, makeEntry(i, KindToolCalled)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	all, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(List()) = %d, want 5", len(all))
	}

	after, err := store.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List(after) error = %v", err)
	}
	if len(after) != 2 || after[0].Seq != 3 || after[1].Seq != 4 {
		t.Fatalf("List(2, 2) = %+v, want seq 3,4", after)
	}

	seq, err = store.LatestSeq(ctx)
	if err != nil || seq != 5 {
		t.Fatalf("LatestSeq() = %d, %v, want 5, nil", seq, err)
	}
}

func TestMemStore_PayloadIsCopied(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	e := makeEntry(1, KindToolsListed)
	e.Payload["tools"] = 1
	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	e.Payload["tools"] = 99

	got, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got[0].Payload["tools"] != 1 {
		t.Fatalf("payload = %v, want stored copy", got[0].Payload)
	}
}
