package store

import (
	"testing"

	"ruleengine/internal/value"
)

func TestInsertGetRoundTrip(t *testing.T) {
	s := New(Config{})
	f := s.Insert(Fact{Data: map[string]value.Value{"status": value.String("premium")}})
	got, ok := s.Get(f.ID)
	if !ok {
		t.Fatalf("expected fact to be retrievable")
	}
	if v, _ := got.Data["status"].AsString(); v != "premium" {
		t.Fatalf("got %q, want premium", v)
	}
}

func TestFindByFieldMatchesIndexInvariant(t *testing.T) {
	s := New(Config{})
	f1 := s.Insert(Fact{Data: map[string]value.Value{"status": value.String("premium")}})
	s.Insert(Fact{Data: map[string]value.Value{"status": value.String("basic")}})

	ids := s.FindByField("status", value.String("premium"))
	if len(ids) != 1 || ids[0] != f1.ID {
		t.Fatalf("got %v, want [%d]", ids, f1.ID)
	}
}

func TestRemovePrunesIndex(t *testing.T) {
	s := New(Config{})
	f := s.Insert(Fact{Data: map[string]value.Value{"status": value.String("premium")}})
	s.Remove(f.ID)
	if ids := s.FindByField("status", value.String("premium")); len(ids) != 0 {
		t.Fatalf("expected no matches after removal, got %v", ids)
	}
	if _, ok := s.Get(f.ID); ok {
		t.Fatalf("expected fact to be gone after removal")
	}
}

func TestFindByCriteriaIntersects(t *testing.T) {
	s := New(Config{})
	f1 := s.Insert(Fact{Data: map[string]value.Value{
		"status": value.String("premium"), "category": value.String("gold"),
	}})
	s.Insert(Fact{Data: map[string]value.Value{
		"status": value.String("premium"), "category": value.String("silver"),
	}})

	ids := s.FindByCriteria([]Criterion{
		{Field: "status", Value: value.String("premium")},
		{Field: "category", Value: value.String("gold")},
	})
	if len(ids) != 1 || ids[0] != f1.ID {
		t.Fatalf("got %v, want [%d]", ids, f1.ID)
	}
}

func TestIdsMonotonicAcrossPartitions(t *testing.T) {
	s := New(Config{Partitions: 4})
	var last uint64
	for i := 0; i < 50; i++ {
		f := s.Insert(Fact{Data: map[string]value.Value{}})
		if f.ID <= last {
			t.Fatalf("ids must be strictly increasing, got %d after %d", f.ID, last)
		}
		last = f.ID
	}
	if s.Len() != 50 {
		t.Fatalf("got len %d, want 50", s.Len())
	}
}

func TestClearResetsFactsButNotIds(t *testing.T) {
	s := New(Config{})
	f1 := s.Insert(Fact{Data: map[string]value.Value{}})
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after Clear")
	}
	f2 := s.Insert(Fact{Data: map[string]value.Value{}})
	if f2.ID <= f1.ID {
		t.Fatalf("id counter must not reset on Clear")
	}
}
