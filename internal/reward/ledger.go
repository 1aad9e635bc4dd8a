package reward

import "sync"

type entry struct {
	rewarded bool
	inFlight bool
}

// Ledger records which delegators were already rewarded (or are being rewarded
// right now) within this process. It only guards the live stream path against
// duplicates; it is rebuilt from nothing on restart and the backfill pass closes
// any gap using the on-chain ownership record instead.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]entry)}
}

// TryAcquire reports whether the caller may reward the delegator. On true the
// entry is marked in-flight and every further TryAcquire for the same key fails
// until Release is called.
func (l *Ledger) TryAcquire(delegator string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[delegator]
	if e.rewarded || e.inFlight {
		return false
	}
	l.entries[delegator] = entry{inFlight: true}
	return true
}

// Release ends an acquired attempt. On success the delegator stays rewarded for
// the process lifetime; on failure the entry is cleared so a later attempt
// (stream or backfill) may retry.
func (l *Ledger) Release(delegator string, succeeded bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if succeeded {
		l.entries[delegator] = entry{rewarded: true}
		return
	}
	delete(l.entries, delegator)
}

// MarkRewarded seeds an entry without the acquire/release cycle, used when a
// prior reward is discovered from the receipt store at startup.
func (l *Ledger) MarkRewarded(delegator string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[delegator] = entry{rewarded: true}
}
