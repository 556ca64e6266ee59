package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ProjectID string `json:"projectId"`
	N         int    `json:"n"`
}

func openTestLedger(t *testing.T) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	led, err := Open(context.Background(), store, nil, 0, nil)
	require.NoError(t, err)
	return led, store
}

func TestAppendChainsFromGenesis(t *testing.T) {
	led, _ := openTestLedger(t)
	ctx := context.Background()

	e0, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), e0.Seq)
	assert.Equal(t, GenesisHash, e0.PrevHash)

	e1, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, e0.EntryHash, e1.PrevHash)
	assert.Equal(t, e1.EntryHash, led.Head())
}

func TestVerifyCleanChain(t *testing.T) {
	led, _ := openTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := led.Append(ctx, KindVerdict, fmt.Sprintf("p%d", i%3), testPayload{ProjectID: fmt.Sprintf("p%d", i%3), N: i})
		require.NoError(t, err)
	}
	require.NoError(t, led.Verify(ctx, 0, 9))
	// any prefix and suffix range verifies too
	require.NoError(t, led.Verify(ctx, 0, 4))
	require.NoError(t, led.Verify(ctx, 5, 9))
}

func TestVerifyIdentifiesFirstBrokenSeq(t *testing.T) {
	led, store := openTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: i})
		require.NoError(t, err)
	}

	store.Corrupt(3, 'X')

	err := led.Verify(ctx, 0, 5)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, uint64(3), ierr.Seq)
}

func TestHaltBlocksAppends(t *testing.T) {
	led, store := openTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: i})
		require.NoError(t, err)
	}

	store.Corrupt(1, 'X')
	require.Error(t, led.Verify(ctx, 0, 2))
	assert.True(t, led.Halted())

	_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 99})
	assert.ErrorIs(t, err, ErrHalted)
}

func TestClearHaltRequiresCleanChain(t *testing.T) {
	led, store := openTestLedger(t)
	ctx := context.Background()
	_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 1})
	require.NoError(t, err)

	store.Corrupt(0, 'X')
	require.Error(t, led.Verify(ctx, 0, 0))
	require.True(t, led.Halted())

	// chain is still broken, halt must stay
	require.Error(t, led.ClearHalt(ctx))
	assert.True(t, led.Halted())
}

func TestConcurrentAppendsAreGapless(t *testing.T) {
	led, _ := openTestLedger(t)
	ctx := context.Background()
	const writers = 32

	seqs := make([]uint64, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := led.Append(ctx, KindVerdict, fmt.Sprintf("p%d", i), testPayload{ProjectID: fmt.Sprintf("p%d", i), N: i})
			seqs[i], errs[i] = e.Seq, err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(seqs, func(a, b int) bool { return seqs[a] < seqs[b] })
	for i, s := range seqs {
		assert.Equal(t, uint64(i), s, "sequence numbers must be dense")
	}
	require.NoError(t, led.Verify(ctx, 0, writers-1))
}

func TestOpenRecoversChainState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	led, err := Open(ctx, store, nil, 0, nil)
	require.NoError(t, err)
	e, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 1})
	require.NoError(t, err)

	reopened, err := Open(ctx, store, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, e.EntryHash, reopened.Head())

	e2, err := reopened.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e2.Seq)
	assert.Equal(t, e.EntryHash, e2.PrevHash)
}

func TestOpenHaltsOnCorruptTail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	led, err := Open(ctx, store, nil, 0, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: i})
		require.NoError(t, err)
	}

	store.Corrupt(2, 'X')
	reopened, err := Open(ctx, store, nil, 0, nil)
	require.Error(t, err)
	require.NotNil(t, reopened)
	assert.True(t, reopened.Halted())
}

func TestAppendSignsEntries(t *testing.T) {
	store := NewMemoryStore()
	led, err := Open(context.Background(), store, NewHMACSigner([]byte("secret")), 0, nil)
	require.NoError(t, err)

	e, err := led.Append(context.Background(), KindAdmin, "", testPayload{N: 1})
	require.NoError(t, err)
	require.NotEmpty(t, e.Signature)

	want, err := NewHMACSigner([]byte("secret")).Sign(e.EntryHash)
	require.NoError(t, err)
	assert.Equal(t, want, e.Signature)
}

func TestPayloadHashIsCanonical(t *testing.T) {
	a, err := PayloadHash([]byte(`{"b":1,"a":"x"}`))
	require.NoError(t, err)
	b, err := PayloadHash([]byte(`{ "a": "x", "b": 1 }`))
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order and whitespace must not change the hash")
}

func TestWithClockDeterministicHashes(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	run := func() string {
		led, _ := openTestLedger(t)
		led.WithClock(clock)
		e, err := led.Append(context.Background(), KindVerdict, "p1", testPayload{ProjectID: "p1", N: 7})
		require.NoError(t, err)
		return e.EntryHash
	}
	assert.Equal(t, run(), run())
}

func TestVerifyRangeBeyondHeadIsCallerError(t *testing.T) {
	led, _ := openTestLedger(t)
	ctx := context.Background()
	_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 1})
	require.NoError(t, err)

	// asking past the head is a bad request, not tamper evidence
	err = led.Verify(ctx, 0, 5)
	require.Error(t, err)
	var ierr *IntegrityError
	assert.False(t, errors.As(err, &ierr))
	assert.False(t, led.Halted())

	err = led.Verify(ctx, 3, 1)
	require.Error(t, err)
	assert.False(t, led.Halted())

	_, err = led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: 2})
	require.NoError(t, err)
}

func TestVerifyMidChainChecksBoundaryLink(t *testing.T) {
	led, store := openTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: i})
		require.NoError(t, err)
	}
	orig, err := store.Range(ctx, 0, 4)
	require.NoError(t, err)

	// rebuild the last two entries so the tail is internally consistent but
	// no longer chains to entry 2
	forged := NewMemoryStore()
	for _, e := range orig[:3] {
		require.NoError(t, forged.Append(ctx, e))
	}
	prev := "f000000000000000000000000000000000000000000000000000000000000000"
	for _, e := range orig[3:] {
		e.PrevHash = prev
		e.EntryHash = ComputeEntryHash(e.Seq, e.PrevHash, e.PayloadHash, e.Timestamp)
		prev = e.EntryHash
		require.NoError(t, forged.Append(ctx, e))
	}

	// tail-only recovery must still catch the break at the boundary
	reopened, err := Open(ctx, forged, nil, 2, nil)
	require.Error(t, err)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, uint64(3), ierr.Seq)
	require.NotNil(t, reopened)
	assert.True(t, reopened.Halted())

	// ranged verification starting inside the chain checks the same link
	err = reopened.Verify(ctx, 3, 4)
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, uint64(3), ierr.Seq)
}
