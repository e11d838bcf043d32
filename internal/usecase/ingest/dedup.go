package ingest

import (
	"context"
	"errors"
	"fmt"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/repository"

	"github.com/google/uuid"
)

// ErrLookup marks a failed duplicate lookup. The store's unique constraint
// stays the authority, so callers may continue past it.
var ErrLookup = errors.New("duplicate lookup failed")

// Verdict is the gate's answer for one submission.
type Verdict struct {
	CanonicalURL string
	Existing     *job.Record
}

func (v Verdict) Duplicate() bool { return v.Existing != nil }

// Gate is the fast-path duplicate check keyed by (user, canonical URL).
type Gate struct {
	store repository.JobStore
}

func NewGate(store repository.JobStore) *Gate {
	return &Gate{store: store}
}

// Check canonicalizes rawURL (a valid hint wins) and looks up the user's
// saved record for it. An invalid URL returns ErrInvalidURL and an empty
// verdict; a store failure returns ErrLookup with the canonical URL still set.
func (g *Gate) Check(ctx context.Context, userID uuid.UUID, rawURL, hint string) (Verdict, error) {
	canonical, err := Canonicalize(rawURL, hint)
	if err != nil {
		return Verdict{}, err
	}
	v := Verdict{CanonicalURL: canonical}
	if g == nil || g.store == nil {
		return v, fmt.Errorf("%w: nil job store", ErrLookup)
	}

	rec, err := g.store.FindByUserAndURL(ctx, userID, canonical)
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		return v, nil
	case err != nil:
		return v, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	v.Existing = rec
	return v, nil
}
