package ledger

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Chain verification must hold for any payload sequence, and every prefix of
// a valid chain must itself verify.
func TestChainVerifiesForArbitraryPayloads(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("appended chain verifies, prefixes included", prop.ForAll(
		func(payloads []string) bool {
			ctx := context.Background()
			led, _ := openTestLedger(t)
			for i, s := range payloads {
				payload := map[string]any{"projectId": "p1", "n": i, "note": s}
				if _, err := led.Append(ctx, KindVerdict, "p1", payload); err != nil {
					return false
				}
			}
			n, err := led.Len(ctx)
			if err != nil || n != uint64(len(payloads)) {
				return false
			}
			for end := uint64(0); end < n; end++ {
				if err := led.Verify(ctx, 0, end); err != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("mutating any entry breaks verification at that seq", prop.ForAll(
		func(n uint8, target uint8) bool {
			count := int(n%8) + 2
			ctx := context.Background()
			led, store := openTestLedger(t)
			for i := 0; i < count; i++ {
				if _, err := led.Append(ctx, KindVerdict, "p1", testPayload{ProjectID: "p1", N: i}); err != nil {
					return false
				}
			}
			seq := uint64(target) % uint64(count)
			store.Corrupt(seq, '!')
			err := led.Verify(ctx, 0, uint64(count-1))
			ierr, ok := err.(*IntegrityError)
			return ok && ierr.Seq == seq
		},
		gen.UInt8(), gen.UInt8(),
	))

	properties.TestingRun(t)
}
