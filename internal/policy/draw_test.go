package policy

import (
	"errors"
	"testing"

	"event-settlement/internal/store"
)

const testSeed = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDrawIsDeterministic(t *testing.T) {
	ids := []string{"s1", "s2", "s3", "s4"}
	a, err := Draw(testSeed, "ev1", ids)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	b, err := Draw(testSeed, "ev1", ids)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if a.Index != b.Index || a.Digest != b.Digest || a.OptionID != ids[a.Index] {
		t.Fatalf("draw not deterministic: %+v vs %+v", a, b)
	}
	if err := VerifyDraw(a, "ev1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyDrawDetectsTampering(t *testing.T) {
	ids := []string{"s1", "s2", "s3"}
	proof, err := Draw(testSeed, "ev1", ids)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}

	forged := proof
	forged.Index = (proof.Index + 1) % len(ids)
	forged.OptionID = ids[forged.Index]
	if err := VerifyDraw(forged, "ev1"); !errors.Is(err, ErrDrawMismatch) {
		t.Fatalf("expected mismatch for forged index, got %v", err)
	}

	wrongHash := proof
	wrongHash.SeedHash = "00"
	if err := VerifyDraw(wrongHash, "ev1"); !errors.Is(err, ErrDrawMismatch) {
		t.Fatalf("expected mismatch for wrong commitment, got %v", err)
	}
}

func TestWagerPolicyPicksDrawnSlot(t *testing.T) {
	hash, err := SeedHash(testSeed)
	if err != nil {
		t.Fatalf("seed hash: %v", err)
	}
	opts := []store.Option{
		{ID: "s1", DisplayOrder: 0}, {ID: "s2", DisplayOrder: 1}, {ID: "s3", DisplayOrder: 2},
	}
	ev := store.Event{ID: "ev1", Kind: store.KindWager, DrawSeed: testSeed, DrawSeedHash: hash}
	entries := []store.Entry{entry("u1", "s1"), entry("u2", "s2"), entry("u3", "s3"), entry("u4", "s1")}

	d, err := WagerPolicy{}.DetermineWinners(ev, opts, entries)
	if err != nil {
		t.Fatalf("determine winners: %v", err)
	}
	if d.Draw == nil || d.Draw.SeedHash != hash {
		t.Fatalf("expected draw proof with seed hash, got %+v", d.Draw)
	}
	for _, uid := range d.WinnerUserIDs {
		var found bool
		for _, e := range entries {
			if e.UserID == uid && e.ChosenOptionID == d.WinningOptionID {
				found = true
			}
		}
		if !found {
			t.Fatalf("winner %s did not pick %s", uid, d.WinningOptionID)
		}
	}
}

func TestWagerPolicyRequiresSeed(t *testing.T) {
	_, err := WagerPolicy{}.DetermineWinners(store.Event{ID: "ev1"}, []store.Option{{ID: "s1"}}, nil)
	if !errors.Is(err, ErrMissingSeed) {
		t.Fatalf("expected missing seed, got %v", err)
	}
}

func TestNewSeedCommitment(t *testing.T) {
	seed, hash, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if len(seed) != 64 {
		t.Fatalf("expected 32-byte hex seed, got %d chars", len(seed))
	}
	again, err := SeedHash(seed)
	if err != nil || again != hash {
		t.Fatalf("seed hash mismatch: %s vs %s (%v)", again, hash, err)
	}
}
