package store

import (
	"context"
	"testing"
)

func TestWriteTxRoundTrip(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	err = s.Mutate(context.Background(), func(tx *WriteTx) error {
		return tx.EmplaceAndSave("ent1", map[string]interface{}{"name": "Goblin", "hp": float64(7)})
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	err = s.Inspect(context.Background(), func(tx *ReadTx) error {
		v, ok, err := tx.Retrieve("ent1")
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if !ok {
			t.Fatal("expected ent1 to exist")
		}
		if v["name"] != "Goblin" {
			t.Errorf("expected name Goblin, got %v", v["name"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

func TestMutateRollsBackOnError(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	wantErr := &scrollErrStub{}
	err = s.Mutate(context.Background(), func(tx *WriteTx) error {
		if err := tx.EmplaceAndSave("ent1", map[string]interface{}{"name": "Goblin"}); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected mutate to propagate fn's error, got %v", err)
	}

	err = s.Inspect(context.Background(), func(tx *ReadTx) error {
		_, ok, err := tx.Retrieve("ent1")
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if ok {
			t.Fatal("expected rolled-back write to not persist")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

type scrollErrStub struct{}

func (e *scrollErrStub) Error() string { return "stub failure" }

func TestSavepointRollbackTo(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	err = s.Mutate(context.Background(), func(tx *WriteTx) error {
		if err := tx.EmplaceAndSave("ent1", map[string]interface{}{"hp": float64(10)}); err != nil {
			return err
		}
		if err := tx.Savepoint("sp1"); err != nil {
			return err
		}
		if err := tx.EmplaceAndSave("ent1", map[string]interface{}{"hp": float64(999)}); err != nil {
			return err
		}
		if err := tx.RollbackTo("sp1"); err != nil {
			return err
		}
		v, ok, err := tx.Load("ent1")
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected ent1 to still exist after rollback")
		}
		if v["hp"] != float64(10) {
			t.Errorf("expected hp 10 after rollback, got %v", v["hp"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

func TestRemove(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	err = s.Mutate(context.Background(), func(tx *WriteTx) error {
		if err := tx.EmplaceAndSave("ent1", map[string]interface{}{"hp": float64(1)}); err != nil {
			return err
		}
		return tx.Remove("ent1")
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	err = s.Inspect(context.Background(), func(tx *ReadTx) error {
		_, ok, err := tx.Retrieve("ent1")
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("expected ent1 to be removed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

func TestIsMissing(t *testing.T) {
	entity := map[string]interface{}{"present": "x", "ejected": false}
	if !IsMissing(entity, "absent") {
		t.Error("expected absent attr to be missing")
	}
	if !IsMissing(entity, "ejected") {
		t.Error("expected attr explicitly set to false to be missing")
	}
	if IsMissing(entity, "present") {
		t.Error("did not expect present attr to be missing")
	}
}

func TestClear(t *testing.T) {
	entity := map[string]interface{}{"x": "y"}
	Clear(entity, "x")
	if _, ok := entity["x"]; ok {
		t.Error("expected Clear to delete the attribute")
	}
}
