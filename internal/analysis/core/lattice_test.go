// Filename: core/lattice_test.go
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b TaintLevel
		want TaintLevel
	}{
		{"untainted join untainted", Untainted, Untainted, Untainted},
		{"untainted join possibly", Untainted, PossiblyTainted, PossiblyTainted},
		{"possibly join definitely", PossiblyTainted, DefinitelyTainted, DefinitelyTainted},
		{"definitely join untainted", DefinitelyTainted, Untainted, DefinitelyTainted},
		{"unknown absorbed by concrete", Unknown, PossiblyTainted, PossiblyTainted},
		{"concrete absorbs unknown", DefinitelyTainted, Unknown, DefinitelyTainted},
		{"unknown join unknown stays unknown", Unknown, Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.a, tt.b))
			// Join is commutative.
			assert.Equal(t, tt.want, Join(tt.b, tt.a))
		})
	}
}

func TestJoin_Properties(t *testing.T) {
	t.Parallel()

	levels := []TaintLevel{Unknown, Untainted, PossiblyTainted, DefinitelyTainted}

	// Idempotence and associativity over the whole (small) domain.
	for _, a := range levels {
		assert.Equal(t, a, Join(a, a), "join must be idempotent for %s", a)
		for _, b := range levels {
			for _, c := range levels {
				left := Join(Join(a, b), c)
				right := Join(a, Join(b, c))
				assert.Equal(t, left, right, "join must be associative for (%s,%s,%s)", a, b, c)
			}
		}
	}
}

func TestLeq_TotalOrder(t *testing.T) {
	t.Parallel()

	assert.True(t, Leq(Untainted, PossiblyTainted))
	assert.True(t, Leq(PossiblyTainted, DefinitelyTainted))
	assert.True(t, Leq(Untainted, DefinitelyTainted))
	assert.False(t, Leq(DefinitelyTainted, Untainted))
	assert.True(t, Leq(Unknown, Untainted), "unknown sits below every concrete level")
	assert.True(t, Leq(DefinitelyTainted, DefinitelyTainted))
}

func TestTaintLevel_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UNTAINTED", Untainted.String())
	assert.Equal(t, "POSSIBLY_TAINTED", PossiblyTainted.String())
	assert.Equal(t, "DEFINITELY_TAINTED", DefinitelyTainted.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.Equal(t, "UNKNOWN", TaintLevel(99).String())
}
