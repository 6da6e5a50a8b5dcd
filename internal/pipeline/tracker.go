package pipeline

import "sync"

// tracker keeps per-ledger completion bookkeeping: how many transaction
// persists are expected and how many have been acknowledged or failed.
// Partial failure of one ledger never blocks another.
type tracker struct {
	mu      sync.Mutex
	ledgers map[uint32]*progress
}

type progress struct {
	expected int
	acked    int
	failed   int
}

func newTracker() *tracker {
	return &tracker{ledgers: make(map[uint32]*progress)}
}

// begin registers a ledger with its expected transaction count.
func (t *tracker) begin(index uint32, expected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledgers[index] = &progress{expected: expected}
}

// ack records one persisted transaction.
func (t *tracker) ack(index uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.ledgers[index]; ok {
		p.acked++
	}
}

// fail records one abandoned transaction.
func (t *tracker) fail(index uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.ledgers[index]; ok {
		p.failed++
	}
}

// complete reports whether every expected transaction was acknowledged,
// and removes the ledger from tracking.
func (t *tracker) complete(index uint32) (acked, failed int, done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.ledgers[index]
	if !ok {
		return 0, 0, false
	}
	delete(t.ledgers, index)
	return p.acked, p.failed, p.acked == p.expected && p.failed == 0
}

// pending counts ledgers currently in flight.
func (t *tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ledgers)
}
