package fingerprint

import (
	"context"
	"sync"

	"github.com/semidx/semidx/record"
)

// claimKey scopes a fingerprint to an embedding model version: the same
// content under two models needs two embeddings.
type claimKey struct {
	fingerprint string
	model       string
}

type claimState uint8

const (
	claimPending claimState = iota
	claimComplete
	claimAborted
)

type claim struct {
	owner  record.ID
	state  claimState
	vector []float32
	done   chan struct{}
}

// ClaimTable is the fingerprint index: the unique mapping from
// (fingerprint, model version) to the record that first produced an embedding
// for that content.
//
// Acquire is an insert-if-absent primitive. The first caller for a fingerprint
// becomes the winner and must generate the embedding; concurrent callers for
// the same fingerprint block on the winner's outcome instead of generating
// their own. Distinct fingerprints never contend beyond the table mutex.
type ClaimTable struct {
	mu     sync.Mutex
	claims map[claimKey]*claim
}

// NewClaimTable creates an empty claim table.
func NewClaimTable() *ClaimTable {
	return &ClaimTable{
		claims: make(map[claimKey]*claim),
	}
}

// Outcome is the result of acquiring a fingerprint claim.
//
// When Winner is true the caller owns the embedding call and must finish with
// exactly one of Complete or Abort. When Winner is false, Owner and Vector
// identify the existing embedding to reuse.
type Outcome struct {
	Winner bool
	Owner  record.ID
	Vector []float32

	table *ClaimTable
	key   claimKey
	claim *claim
}

// Acquire resolves fp under model, claiming it for candidate when unseen.
//
// For a pending claim held by another caller, Acquire blocks until the winner
// completes or aborts (or ctx is done). An aborted claim is released, so the
// blocked caller retries the acquisition and may itself become the winner.
func (t *ClaimTable) Acquire(ctx context.Context, fp, model string, candidate record.ID) (*Outcome, error) {
	key := claimKey{fingerprint: fp, model: model}

	for {
		t.mu.Lock()
		c, ok := t.claims[key]
		if !ok {
			c = &claim{
				owner: candidate,
				state: claimPending,
				done:  make(chan struct{}),
			}
			t.claims[key] = c
			t.mu.Unlock()

			return &Outcome{
				Winner: true,
				Owner:  candidate,
				table:  t,
				key:    key,
				claim:  c,
			}, nil
		}

		if c.state == claimComplete {
			out := &Outcome{
				Winner: false,
				Owner:  c.owner,
				Vector: c.vector,
			}
			t.mu.Unlock()

			return out, nil
		}
		t.mu.Unlock()

		select {
		case <-c.done:
			// Winner finished; loop to observe the final state.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Complete publishes the winner's vector. Losers blocked in Acquire observe
// the completed claim and reuse the vector.
func (o *Outcome) Complete(vector []float32) {
	o.table.mu.Lock()
	o.claim.state = claimComplete
	o.claim.vector = vector
	o.table.mu.Unlock()

	close(o.claim.done)
}

// Abort releases the claim after a failed embedding call so a later caller
// can retry the fingerprint.
func (o *Outcome) Abort() {
	o.table.mu.Lock()
	o.claim.state = claimAborted
	delete(o.table.claims, o.key)
	o.table.mu.Unlock()

	close(o.claim.done)
}

// Resolve returns the owner of a completed claim without acquiring anything.
func (t *ClaimTable) Resolve(fp, model string) (record.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.claims[claimKey{fingerprint: fp, model: model}]
	if !ok || c.state != claimComplete {
		return "", false
	}

	return c.owner, true
}

// Release drops a completed claim if it is owned by id. Used when the owning
// record is deleted; content ingested again afterwards re-embeds once.
func (t *ClaimTable) Release(fp, model string, id record.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := claimKey{fingerprint: fp, model: model}
	if c, ok := t.claims[key]; ok && c.state == claimComplete && c.owner == id {
		delete(t.claims, key)
	}
}

// Restore seeds a completed claim, used when loading a snapshot.
func (t *ClaimTable) Restore(fp, model string, owner record.ID, vector []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := claimKey{fingerprint: fp, model: model}
	if _, ok := t.claims[key]; ok {
		return
	}

	done := make(chan struct{})
	close(done)
	t.claims[key] = &claim{
		owner:  owner,
		state:  claimComplete,
		vector: vector,
		done:   done,
	}
}

// Len returns the number of live claims.
func (t *ClaimTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.claims)
}
