package mux

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSourceSet_AddDoesNotMutateReceiver(t *testing.T) {
	set := emptySourceSet.add(unlimitedSource(1, 101))
	grown := set.add(unlimitedSource(2, 102))

	if len(set) != 1 {
		t.Fatalf("original set length changed: %d", len(set))
	}
	if len(grown) != 2 {
		t.Fatalf("grown set length = %d, want 2", len(grown))
	}
}

func TestSourceSet_RemoveMissReturnsReceiver(t *testing.T) {
	set := emptySourceSet.add(unlimitedSource(1, 101))

	newSet, removed := set.remove(999)
	if removed != nil {
		t.Fatalf("removed a source that was never added")
	}
	if len(newSet) != 1 {
		t.Fatalf("set changed on a removal miss")
	}
}

// Model-based property test: the copy-on-write set behaves like a simple
// ordered list keyed by correlation id, and snapshots taken before a
// mutation never change underneath their holder.
func TestSourceSet_ModelProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		set := emptySourceSet
		var model []int64 // correlation ids in insertion order
		snapshots := []sourceSet{set}
		snapshotModels := [][]int64{nil}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			if rapid.Bool().Draw(t, "isAdd") {
				correlationID := rapid.Int64Range(1, 20).Draw(t, "addId")
				if set.contains(correlationID) {
					continue // at most one entry per correlation id
				}
				set = set.add(newFakeSource(int32(correlationID), correlationID, 0))
				model = append(model, correlationID)
			} else {
				correlationID := rapid.Int64Range(1, 20).Draw(t, "removeId")
				var removed Source
				set, removed = set.remove(correlationID)

				found := -1
				for i, id := range model {
					if id == correlationID {
						found = i
						break
					}
				}
				if (removed != nil) != (found >= 0) {
					t.Fatalf("remove(%d) disagreement with model", correlationID)
				}
				if found >= 0 {
					model = append(model[:found:found], model[found+1:]...)
				}
			}

			snapshots = append(snapshots, set)
			modelCopy := append([]int64(nil), model...)
			snapshotModels = append(snapshotModels, modelCopy)
		}

		// Current set matches the model in content and order
		if len(set) != len(model) {
			t.Fatalf("set length %d, model length %d", len(set), len(model))
		}
		for i, source := range set {
			if source.CorrelationID() != model[i] {
				t.Fatalf("order diverged at %d: set %d, model %d", i, source.CorrelationID(), model[i])
			}
		}

		// Every earlier snapshot still matches the model recorded at its time
		for s, snapshot := range snapshots {
			expected := snapshotModels[s]
			if len(snapshot) != len(expected) {
				t.Fatalf("snapshot %d mutated after publication", s)
			}
			for i, source := range snapshot {
				if source.CorrelationID() != expected[i] {
					t.Fatalf("snapshot %d content changed at index %d", s, i)
				}
			}
		}
	})
}
