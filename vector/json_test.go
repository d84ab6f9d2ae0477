package vector

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	vec, err := ParseJSON("[1, 2.5, -3]")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, vec)

	vec, err = ParseJSON("[]")
	require.NoError(t, err)
	assert.Empty(t, vec)

	for _, raw := range []string{"", "{}", `[1,"a"]`, "[1,", "null"} {
		_, err := ParseJSON(raw)
		assert.ErrorIs(t, err, ErrMalformedJSON, strconv.Quote(raw))
	}
}
