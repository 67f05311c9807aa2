package frame

import (
	"context"
	"testing"

	"github.com/kittclouds/scrollforge/internal/rng"
	"github.com/kittclouds/scrollforge/internal/store"
)

func withTx(t *testing.T, fn func(tx *store.WriteTx)) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	err = s.Mutate(context.Background(), func(tx *store.WriteTx) error {
		fn(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

func TestCollectAndUseCollected(t *testing.T) {
	withTx(t, func(tx *store.WriteTx) {
		if err := CreateEntityFrame(tx, RootUID); err != nil {
			t.Fatalf("create root frame: %v", err)
		}
		if err := Subscribe(tx, RootUID, "Goblin"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := Collect(tx, RootUID, "Goblin", "g1", nil); err != nil {
			t.Fatalf("collect: %v", err)
		}
		if err := Collect(tx, RootUID, "Goblin", "g2", nil); err != nil {
			t.Fatalf("collect: %v", err)
		}

		z := rng.NewSeeded(1)
		picked, ok, err := UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil {
			t.Fatalf("use collected: %v", err)
		}
		if !ok {
			t.Fatal("expected a collected goblin to be available")
		}
		if picked != "g1" && picked != "g2" {
			t.Fatalf("unexpected picked uid %q", picked)
		}

		// The picked uid must no longer be available to a second use.
		second, ok, err := UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil {
			t.Fatalf("use collected (second): %v", err)
		}
		if !ok {
			t.Fatal("expected the second goblin still to be available")
		}
		if second == picked {
			t.Fatalf("expected a distinct uid, got %q twice", picked)
		}

		_, ok, err = UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil {
			t.Fatalf("use collected (third): %v", err)
		}
		if ok {
			t.Fatal("expected no goblins left to use")
		}
	})
}

func TestRecycleReturnsToUnused(t *testing.T) {
	withTx(t, func(tx *store.WriteTx) {
		if err := CreateEntityFrame(tx, RootUID); err != nil {
			t.Fatalf("create root frame: %v", err)
		}
		if err := Subscribe(tx, RootUID, "Goblin"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := Collect(tx, RootUID, "Goblin", "g1", nil); err != nil {
			t.Fatalf("collect: %v", err)
		}

		z := rng.NewSeeded(1)
		picked, ok, err := UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil || !ok {
			t.Fatalf("use collected: ok=%v err=%v", ok, err)
		}

		if err := Recycle(tx, RootUID, "Goblin", picked, nil); err != nil {
			t.Fatalf("recycle: %v", err)
		}

		again, ok, err := UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil {
			t.Fatalf("use collected after recycle: %v", err)
		}
		if !ok || again != picked {
			t.Fatalf("expected recycled uid %q to be available again, got %q ok=%v", picked, again, ok)
		}
	})
}

func TestWithdrawRemovesFromBothBuckets(t *testing.T) {
	withTx(t, func(tx *store.WriteTx) {
		if err := CreateEntityFrame(tx, RootUID); err != nil {
			t.Fatalf("create root frame: %v", err)
		}
		if err := Subscribe(tx, RootUID, "Goblin"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := Collect(tx, RootUID, "Goblin", "g1", nil); err != nil {
			t.Fatalf("collect: %v", err)
		}

		if err := Withdraw(tx, RootUID, "Goblin", "g1", nil); err != nil {
			t.Fatalf("withdraw: %v", err)
		}

		z := rng.NewSeeded(1)
		_, ok, err := UseCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil {
			t.Fatalf("use collected: %v", err)
		}
		if ok {
			t.Fatal("expected withdrawn uid to no longer be collectible")
		}
	})
}

func TestPickCollectedDoesNotConsume(t *testing.T) {
	withTx(t, func(tx *store.WriteTx) {
		if err := CreateEntityFrame(tx, RootUID); err != nil {
			t.Fatalf("create root frame: %v", err)
		}
		if err := Subscribe(tx, RootUID, "Goblin"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if err := Collect(tx, RootUID, "Goblin", "g1", nil); err != nil {
			t.Fatalf("collect: %v", err)
		}

		z := rng.NewSeeded(1)
		picked, ok, err := PickCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil || !ok || picked != "g1" {
			t.Fatalf("pick collected: picked=%q ok=%v err=%v", picked, ok, err)
		}

		// Picking again must still find it, since Pick never consumes.
		again, ok, err := PickCollected(tx, RootUID, "Goblin", nil, z)
		if err != nil || !ok || again != "g1" {
			t.Fatalf("second pick collected: picked=%q ok=%v err=%v", again, ok, err)
		}
	})
}

func TestCollectByAncestorClass(t *testing.T) {
	withTx(t, func(tx *store.WriteTx) {
		if err := CreateEntityFrame(tx, RootUID); err != nil {
			t.Fatalf("create root frame: %v", err)
		}
		if err := Subscribe(tx, RootUID, "Monster"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}

		hierarchy := map[string][]string{"Goblin": {"Goblin", "Monster"}}
		if err := Collect(tx, RootUID, "Goblin", "g1", hierarchy); err != nil {
			t.Fatalf("collect: %v", err)
		}

		z := rng.NewSeeded(1)
		picked, ok, err := UseCollected(tx, RootUID, "Monster", hierarchy, z)
		if err != nil {
			t.Fatalf("use collected: %v", err)
		}
		if !ok || picked != "g1" {
			t.Fatalf("expected g1 collected under its ancestor class Monster, got %q ok=%v", picked, ok)
		}
	})
}
