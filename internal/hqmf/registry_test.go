package hqmf

import (
	"reflect"
	"testing"
)

func TestRegistry_InsertIfMoreSpecific(t *testing.T) {
	withCodes := &DataCriterion{ID: "A_1", CodeListID: "vs", Status: "first"}
	without := &DataCriterion{ID: "A_1", Status: "second"}

	t.Run("code list first", func(t *testing.T) {
		r := NewRegistry()
		if !r.InsertIfMoreSpecific(withCodes) {
			t.Fatal("first insert rejected")
		}
		if r.InsertIfMoreSpecific(without) {
			t.Error("less specific entry replaced the code-list-bearing one")
		}
		if got := r.Get("A_1"); got != withCodes {
			t.Errorf("registered %+v", got)
		}
	})

	t.Run("code list second", func(t *testing.T) {
		r := NewRegistry()
		r.InsertIfMoreSpecific(without)
		if !r.InsertIfMoreSpecific(withCodes) {
			t.Error("code-list-bearing entry rejected")
		}
		if got := r.Get("A_1"); got != withCodes {
			t.Errorf("registered %+v", got)
		}
	})

	t.Run("later overwrites otherwise", func(t *testing.T) {
		r := NewRegistry()
		other := &DataCriterion{ID: "A_1", CodeListID: "other"}
		r.InsertIfMoreSpecific(withCodes)
		if !r.InsertIfMoreSpecific(other) {
			t.Error("later code-list-bearing entry rejected")
		}
		if got := r.Get("A_1"); got != other {
			t.Errorf("registered %+v", got)
		}
		if r.Len() != 1 {
			t.Errorf("Len = %d", r.Len())
		}
	})

	if NewRegistry().Get("") != nil {
		t.Error("empty id resolved")
	}
}

func TestOccurrenceMap_FirstWriterWins(t *testing.T) {
	m := NewOccurrenceMap()
	if got := m.Claim("Src_1", "B"); got != "B" {
		t.Errorf("first claim = %q", got)
	}
	if got := m.Claim("Src_1", "A"); got != "B" {
		t.Errorf("second claim = %q, want B", got)
	}
	if _, ok := m.Lookup("Other_1"); ok {
		t.Error("unclaimed source resolved")
	}

	snap := m.Snapshot()
	snap["Src_1"] = "Z"
	if got, _ := m.Lookup("Src_1"); got != "B" {
		t.Error("snapshot aliases the map")
	}
}

func TestReferenceSet(t *testing.T) {
	s := NewReferenceSet()
	s.Add("B_1", "", MeasurePeriodID, "A_1", "B_1")
	s.Add("C_1")

	if want := []string{"B_1", "A_1", "C_1"}; !reflect.DeepEqual(s.IDs(), want) {
		t.Errorf("IDs = %v, want %v", s.IDs(), want)
	}
	if s.Contains(MeasurePeriodID) || s.Contains("") {
		t.Error("reserved ids recorded")
	}
	if !s.Contains("A_1") {
		t.Error("A_1 missing")
	}
}
