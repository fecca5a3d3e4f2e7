package encounter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_TryAcquire(t *testing.T) {
	var g Gate
	assert.False(t, g.Held())

	release, ok := g.TryAcquire()
	require.True(t, ok)
	assert.True(t, g.Held())

	_, ok = g.TryAcquire()
	assert.False(t, ok, "second caller is refused")

	release()
	assert.False(t, g.Held())

	again, ok := g.TryAcquire()
	require.True(t, ok)

	release() // stale release must not free the new holder
	assert.True(t, g.Held())
	again()
	again()
	assert.False(t, g.Held())
}

func TestGate_OneWinner(t *testing.T) {
	var g Gate
	var winners atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	for range 64 {
		wg.Go(func() {
			<-start
			if _, ok := g.TryAcquire(); ok {
				winners.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &ValidationError{Field: "player"}, "missing required player"},
		{"invalid choice", &InvalidChoiceError{ID: "Q"}, `"Q" is not one of the offered options`},
		{"transport with status", &TransportError{Op: "resolve choice", Status: 502}, "resolve choice: status 502"},
		{"transport with cause", &TransportError{Op: "start game", Err: errors.New("refused")}, "start game: refused"},
		{"transport with both", &TransportError{Op: "use item", Status: 400, Err: errors.New("bad item")}, "use item: status 400: bad item"},
		{"decoding", &DecodingError{Op: "claim reward", Err: errors.New("eof")}, "claim reward: failed to decode response: eof"},
		{"phase", &PhaseError{Intent: "choose", Phase: PhaseVictory}, "choose not allowed while victory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassify(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	var te *TransportError
	require.ErrorAs(t, classify("start game", cause), &te)
	assert.Equal(t, "start game", te.Op)
	assert.ErrorIs(t, te, cause)

	wrapped := fmt.Errorf("client: %w", &DecodingError{Op: "x", Err: cause})
	assert.Same(t, wrapped, classify("start game", wrapped), "typed errors pass through")

	assert.ErrorIs(t, &PhaseError{}, ErrIllegalIntent)
}

func TestPhase(t *testing.T) {
	for _, p := range []Phase{PhaseIdle, PhaseStarting, PhaseInTurn, PhaseResolving, PhaseRewardPending} {
		assert.False(t, p.Terminal(), p.String())
	}
	assert.True(t, PhaseVictory.Terminal())
	assert.True(t, PhaseDefeat.Terminal())
	assert.Equal(t, "reward_pending", PhaseRewardPending.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
