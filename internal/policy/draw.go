package policy

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"event-settlement/internal/store"
)

const seedBytes = 32

// DrawProof lets anyone recompute a wager draw once the seed is revealed:
// index = uint64(HMAC-SHA256(seed, event_id)[:8]) mod len(options), with the
// options sorted by display_order.
type DrawProof struct {
	Seed      string   `json:"seed"`
	SeedHash  string   `json:"seed_hash"`
	Digest    string   `json:"digest"`
	Index     int      `json:"index"`
	OptionID  string   `json:"option_id"`
	OptionIDs []string `json:"option_ids"`
}

// NewSeed returns a fresh hex seed and its sha256 commitment.
func NewSeed() (seed, seedHash string, err error) {
	raw := make([]byte, seedBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(raw), hex.EncodeToString(sum[:]), nil
}

// SeedHash returns the public commitment for a hex seed.
func SeedHash(seed string) (string, error) {
	raw, err := hex.DecodeString(seed)
	if err != nil || len(raw) == 0 {
		return "", ErrInvalidSeed
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// WagerPolicy draws one slot from the published seed.
type WagerPolicy struct{}

func (WagerPolicy) DetermineWinners(ev store.Event, options []store.Option, entries []store.Entry) (Decision, error) {
	if ev.DrawSeed == "" {
		return Decision{}, ErrMissingSeed
	}
	ids := optionIDs(options)
	proof, err := Draw(ev.DrawSeed, ev.ID, ids)
	if err != nil {
		return Decision{}, err
	}
	proof.SeedHash = ev.DrawSeedHash
	return Decision{
		WinningOptionID: proof.OptionID,
		WinnerUserIDs:   winnersFor(proof.OptionID, entries),
		Tally:           tally(entries),
		Draw:            &proof,
	}, nil
}

// Draw computes the slot for eventID. optionIDs must already be in display order.
func Draw(seed, eventID string, optionIDs []string) (DrawProof, error) {
	if len(optionIDs) == 0 {
		return DrawProof{}, ErrNoOptions
	}
	key, err := hex.DecodeString(seed)
	if err != nil || len(key) == 0 {
		return DrawProof{}, ErrInvalidSeed
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(eventID))
	digest := mac.Sum(nil)
	idx := int(binary.BigEndian.Uint64(digest[:8]) % uint64(len(optionIDs)))
	hash, _ := SeedHash(seed)
	return DrawProof{
		Seed:      seed,
		SeedHash:  hash,
		Digest:    hex.EncodeToString(digest),
		Index:     idx,
		OptionID:  optionIDs[idx],
		OptionIDs: append([]string{}, optionIDs...),
	}, nil
}

// VerifyDraw recomputes a revealed draw and checks it against the published
// commitment and the claimed result.
func VerifyDraw(proof DrawProof, eventID string) error {
	hash, err := SeedHash(proof.Seed)
	if err != nil {
		return err
	}
	if proof.SeedHash != "" && !hmac.Equal([]byte(hash), []byte(proof.SeedHash)) {
		return fmt.Errorf("%w: seed does not match committed hash", ErrDrawMismatch)
	}
	again, err := Draw(proof.Seed, eventID, proof.OptionIDs)
	if err != nil {
		return err
	}
	if again.Index != proof.Index || again.OptionID != proof.OptionID {
		return fmt.Errorf("%w: recomputed option %s at %d", ErrDrawMismatch, again.OptionID, again.Index)
	}
	return nil
}

func sortedOptions(options []store.Option) []store.Option {
	out := append([]store.Option{}, options...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func optionIDs(options []store.Option) []string {
	sorted := sortedOptions(options)
	out := make([]string, 0, len(sorted))
	for _, o := range sorted {
		out = append(out, o.ID)
	}
	return out
}
