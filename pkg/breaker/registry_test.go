package breaker

import (
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	return NewRegistry(Config{FailureThreshold: 2, Cooldown: time.Minute}, RegistryOptions{})
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegistryPairsAreIndependent(t *testing.T) {
	r := newTestRegistry()

	r.RecordFailure("openai", "gpt-4o")
	r.RecordFailure("openai", "gpt-4o")

	if r.State("openai", "gpt-4o") != StateOpen {
		t.Fatal("pair should be open after threshold failures")
	}
	if r.State("openai", "gpt-4o-mini") != StateClosed {
		t.Error("sibling model tripped by another model's failures")
	}
	if r.State("bedrock", "gpt-4o") != StateClosed {
		t.Error("other provider tripped by another provider's failures")
	}

	if r.Acquire("openai", "gpt-4o") != VerdictOpen {
		t.Error("open pair should reject")
	}
	if r.Acquire("openai", "gpt-4o-mini") != VerdictPass {
		t.Error("closed sibling should pass")
	}
}

func TestRegistryUnknownPairIsClosed(t *testing.T) {
	r := newTestRegistry()
	if r.State("nowhere", "nothing") != StateClosed {
		t.Error("unknown pair should report closed")
	}
}

func TestRegistrySnapshotOrdered(t *testing.T) {
	r := newTestRegistry()
	r.Acquire("zeta", "m1")
	r.Acquire("alpha", "m2")
	r.Acquire("alpha", "m1")

	snaps := r.Snapshot()
	if len(snaps) != 3 {
		t.Fatalf("len(Snapshot) = %d, want 3", len(snaps))
	}
	if snaps[0].Provider != "alpha" || snaps[0].Model != "m1" {
		t.Errorf("first snapshot = %s/%s, want alpha/m1", snaps[0].Provider, snaps[0].Model)
	}
	if snaps[2].Provider != "zeta" {
		t.Errorf("last snapshot provider = %s, want zeta", snaps[2].Provider)
	}
	for _, s := range snaps {
		if s.State != StateClosed {
			t.Errorf("%s/%s state = %s, want closed", s.Provider, s.Model, s.State)
		}
	}
}

func TestRegistryRecoveryCycle(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond}, RegistryOptions{})

	r.RecordFailure("openai", "gpt-4o")
	if r.Acquire("openai", "gpt-4o") != VerdictOpen {
		t.Fatal("should reject during cooldown")
	}

	time.Sleep(20 * time.Millisecond)
	if v := r.Acquire("openai", "gpt-4o"); v != VerdictTrial {
		t.Fatalf("Acquire after cooldown = %s, want trial", v)
	}
	r.RecordSuccess("openai", "gpt-4o")

	if r.Acquire("openai", "gpt-4o") != VerdictPass {
		t.Error("recovered pair should pass")
	}
}
