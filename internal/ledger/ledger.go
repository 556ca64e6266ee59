package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// IntegrityError identifies the first broken link found during verification.
// It is fatal at the system level: the ledger halts new appends until an
// operator remediates, because it implies tampering or corruption.
type IntegrityError struct {
	Seq    uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at seq %d: %s", e.Seq, e.Reason)
}

// ErrHalted is returned by Append while the ledger is in the integrity-halt
// state.
var ErrHalted = errors.New("ledger halted: integrity violation pending operator remediation")

// Ledger owns the single piece of globally shared mutable state: the last
// sequence number and head hash. All mutation goes through Append under one
// mutex, which is what makes concurrent appends gapless and totally ordered.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	signer   Signer
	logger   *slog.Logger
	clock    func() time.Time
	nextSeq  uint64
	headHash string
	halted   bool
}

// Open attaches a ledger to its store and replays chain state. The tail of
// the stored chain (the last recoveryDepth entries, everything when 0) is
// re-verified so a partial write from a previous run is caught before any new
// append lands on top of it.
func Open(ctx context.Context, store Store, signer Signer, recoveryDepth uint64, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		store:    store,
		signer:   signer,
		logger:   logger,
		clock:    time.Now,
		headHash: GenesisHash,
	}

	n, err := store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	if n > 0 {
		from := uint64(0)
		if recoveryDepth > 0 && n > recoveryDepth {
			from = n - recoveryDepth
		}
		if err := l.Verify(ctx, from, n-1); err != nil {
			l.halted = true
			l.logger.Error("ledger recovery verification failed", "error", err)
			return l, err
		}
		last, ok, err := store.Last(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger open: %w", err)
		}
		if ok {
			l.nextSeq = last.Seq + 1
			l.headHash = last.EntryHash
		}
	}
	l.logger.Info("ledger opened", "entries", n, "headHash", l.headHash)
	return l, nil
}

// WithClock overrides the clock for deterministic tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append assigns the next sequence number, chains the hashes, persists, and
// returns the stored entry. Once the sequence is assigned the write is not
// cancellable; a failure to persist surfaces as an error without advancing
// the chain, so the sequence is reused by the next append and stays gapless.
func (l *Ledger) Append(ctx context.Context, kind Kind, projectID string, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode payload: %w", err)
	}
	payloadHash, err := PayloadHash(raw)
	if err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return Entry{}, ErrHalted
	}

	e := Entry{
		Seq:         l.nextSeq,
		Kind:        kind,
		ProjectID:   projectID,
		Payload:     raw,
		PayloadHash: payloadHash,
		PrevHash:    l.headHash,
		Timestamp:   l.clock().UTC(),
	}
	e.EntryHash = ComputeEntryHash(e.Seq, e.PrevHash, e.PayloadHash, e.Timestamp)
	if l.signer != nil {
		sig, err := l.signer.Sign(e.EntryHash)
		if err != nil {
			return Entry{}, fmt.Errorf("sign entry: %w", err)
		}
		e.Signature = sig
	}

	if err := l.store.Append(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("persist entry %d: %w", e.Seq, err)
	}
	l.nextSeq = e.Seq + 1
	l.headHash = e.EntryHash
	return e, nil
}

// Verify recomputes every hash in [fromSeq, toSeq] and checks linkage and
// sequence contiguity. A mid-chain range also checks the boundary link to
// entry fromSeq-1. On an integrity failure it returns an IntegrityError
// naming the first broken entry and moves the ledger into the halt state; a
// range beyond the stored head is a caller error and does not halt.
func (l *Ledger) Verify(ctx context.Context, fromSeq, toSeq uint64) error {
	if fromSeq > toSeq {
		return fmt.Errorf("ledger verify: range [%d, %d] is inverted", fromSeq, toSeq)
	}
	n, err := l.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("ledger verify: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ledger verify: ledger is empty")
	}
	if toSeq >= n {
		return fmt.Errorf("ledger verify: range end %d is beyond the last entry %d", toSeq, n-1)
	}

	// Load one entry before a mid-chain range so the first in-range link is
	// verified against its real predecessor.
	loadFrom := fromSeq
	if fromSeq > 0 {
		loadFrom = fromSeq - 1
	}
	entries, err := l.store.Range(ctx, loadFrom, toSeq)
	if err != nil {
		return fmt.Errorf("ledger verify: %w", err)
	}
	if err := verifyChain(entries, loadFrom, toSeq); err != nil {
		l.halt(err)
		return err
	}
	return nil
}

func verifyChain(entries []Entry, fromSeq, toSeq uint64) error {
	want := fromSeq
	for i, e := range entries {
		if e.Seq != want {
			return &IntegrityError{Seq: want, Reason: fmt.Sprintf("sequence gap: expected %d, found %d", want, e.Seq)}
		}
		// The first entry of a mid-chain slice anchors the boundary check;
		// its own predecessor link lies outside the slice.
		if e.Seq == 0 {
			if e.PrevHash != GenesisHash {
				return &IntegrityError{Seq: 0, Reason: "entry 0 does not chain to the genesis constant"}
			}
		} else if i > 0 {
			if e.PrevHash != entries[i-1].EntryHash {
				return &IntegrityError{Seq: e.Seq, Reason: "prevHash does not match predecessor entry hash"}
			}
		}

		payloadHash, err := PayloadHash(e.Payload)
		if err != nil {
			return &IntegrityError{Seq: e.Seq, Reason: fmt.Sprintf("payload not canonicalizable: %v", err)}
		}
		if payloadHash != e.PayloadHash {
			return &IntegrityError{Seq: e.Seq, Reason: "payload hash mismatch"}
		}
		if got := ComputeEntryHash(e.Seq, e.PrevHash, e.PayloadHash, e.Timestamp); got != e.EntryHash {
			return &IntegrityError{Seq: e.Seq, Reason: "entry hash mismatch"}
		}
		want++
	}
	if want != toSeq+1 {
		return &IntegrityError{Seq: want, Reason: "missing entries at end of range"}
	}
	return nil
}

func (l *Ledger) halt(cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.halted {
		l.halted = true
		l.logger.Error("ledger halted", "cause", cause)
	}
}

// Halted reports whether appends are currently blocked.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// ClearHalt lifts the halt after operator remediation. It refuses unless a
// full re-verification of the stored chain passes.
func (l *Ledger) ClearHalt(ctx context.Context) error {
	n, err := l.store.Len(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		entries, err := l.store.Range(ctx, 0, n-1)
		if err != nil {
			return err
		}
		if err := verifyChain(entries, 0, n-1); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.halted = false
	l.logger.Info("ledger halt cleared", "entries", n)
	return nil
}

// Get returns all entries for a project in sequence order. Read-only.
func (l *Ledger) Get(ctx context.Context, projectID string) ([]Entry, error) {
	return l.store.ByProject(ctx, projectID)
}

// Len returns the number of stored entries.
func (l *Ledger) Len(ctx context.Context) (uint64, error) {
	return l.store.Len(ctx)
}

// Head returns the current head hash.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headHash
}
