package frame

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/otus-inject/internal/settings"
)

func TestCloneIsIndependent(t *testing.T) {
	f, err := Build(settings.MustNew(testConfig()), nil)
	require.NoError(t, err)

	c := f.Clone()
	assert.Equal(t, f.Bytes(), c)
	c[0] = ^c[0]
	assert.NotEqual(t, f.Bytes()[0], c[0])
}

func TestWithSequence(t *testing.T) {
	cfg := testConfig()
	cfg.Payload = []byte("odd")
	f, err := Build(settings.MustNew(cfg), nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 64; i++ {
		seq := rng.Uint32()
		out := f.WithSequence(seq)

		require.Len(t, out, f.Len())
		assert.Equal(t, seq, binary.BigEndian.Uint32(out[38:42]))
		assertChecksumsValid(t, out)

		// nothing but the sequence number and the TCP checksum changes
		assert.Equal(t, f.Bytes()[:38], out[:38])
		assert.Equal(t, f.Bytes()[42:50], out[42:50])
		assert.Equal(t, f.Bytes()[52:], out[52:])
	}

	// the template itself is untouched
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(f.Bytes()[38:42]))
}

func TestWithSequenceEdgeValues(t *testing.T) {
	f, err := Build(settings.MustNew(testConfig()), nil)
	require.NoError(t, err)

	for _, seq := range []uint32{0, 1, 0xffff, 0x10000, 0xffffffff} {
		assertChecksumsValid(t, f.WithSequence(seq))
	}
}

func TestUpdateChecksum(t *testing.T) {
	// RFC 1624 section 4 example: HC=0xdd2f, m=0x5555, m'=0x3285 gives 0x0000
	// under eqn. 3.
	assert.Equal(t, uint16(0x0000), updateChecksum(0xdd2f, 0x5555, 0x3285))
	// unchanged word keeps the checksum
	assert.Equal(t, uint16(0x1234), updateChecksum(0x1234, 0xabcd, 0xabcd))
}
