package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/pkg/codec"
)

func TestIDKeysSortNumerically(t *testing.T) {
	a := codec.EncodeID(9)
	b := codec.EncodeID(10)
	c := codec.EncodeID(256)
	assert.Less(t, string(a), string(b))
	assert.Less(t, string(b), string(c))

	id, err := codec.DecodeID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), id)

	_, err = codec.DecodeID([]byte{1, 2, 3})
	assert.ErrorIs(t, err, codec.ErrMalformed)
}

func TestRoundTrip(t *testing.T) {
	e := codec.NewEncoder()
	e.String("User")
	e.Bool(true)
	e.Int64(-42)
	e.Uint64(7)
	e.Float64(2.5)
	e.StringSlice([]string{"draft", "published"})

	d := codec.NewDecoder(e.Bytes())
	assert.Equal(t, "User", d.String())
	assert.True(t, d.Bool())
	assert.Equal(t, int64(-42), d.Int64())
	assert.Equal(t, uint64(7), d.Uint64())
	assert.Equal(t, 2.5, d.Float64())
	assert.Equal(t, []string{"draft", "published"}, d.StringSlice())
	require.NoError(t, d.Err())
}

// Older rows decoded by newer code yield zero values for the fields the old
// writer never emitted.
func TestReadingPastEndYieldsZeroValues(t *testing.T) {
	e := codec.NewEncoder()
	e.String("Book")

	d := codec.NewDecoder(e.Bytes())
	assert.Equal(t, "Book", d.String())
	assert.Equal(t, "", d.String())
	assert.False(t, d.Bool())
	assert.Zero(t, d.Int64())
	assert.Nil(t, d.StringSlice())
	require.NoError(t, d.Err())
}

func TestTruncatedPayloadLatchesError(t *testing.T) {
	e := codec.NewEncoder()
	e.String("a long enough string")
	raw := e.Bytes()

	d := codec.NewDecoder(raw[:3])
	assert.Equal(t, "", d.String())
	assert.ErrorIs(t, d.Err(), codec.ErrMalformed)

	// The error is sticky; later reads stay zero.
	assert.Zero(t, d.Uint64())
	assert.ErrorIs(t, d.Err(), codec.ErrMalformed)
}
