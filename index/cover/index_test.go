package cover

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-hypergraph/index/bruteforce"
	"github.com/viant/sqlite-hypergraph/vector"
)

func randomCorpus(rng *rand.Rand, n, dim int) ([]string, [][]float32) {
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("n%d", i)
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		vecs[i] = v
	}
	return ids, vecs
}

func TestIndex_MatchesBruteForceL2(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids, vecs := randomCorpus(rng, 500, 8)

	tree := New(vector.L2)
	require.NoError(t, tree.Build(ids, vecs))
	brute := bruteforce.New(vector.L2)
	require.NoError(t, brute.Build(ids, vecs))

	for q := 0; q < 20; q++ {
		_, query := randomCorpus(rng, 1, 8)
		gotIDs, gotDists, err := tree.Query(query[0], 5)
		require.NoError(t, err)
		wantIDs, wantDists, err := brute.Query(query[0], 5)
		require.NoError(t, err)
		assert.Equal(t, wantIDs, gotIDs)
		assert.InDeltaSlice(t, wantDists, gotDists, 1e-5)
	}
}

func TestIndex_ExactMatchFirst(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids, vecs := randomCorpus(rng, 100, 4)
	tree := &Index{}
	require.NoError(t, tree.Build(ids, vecs))
	assert.Equal(t, 100, tree.Len())

	got, dists, err := tree.Query(vecs[37], 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "n37", got[0])
	assert.InDelta(t, 0, dists[0], 1e-6)
	assert.True(t, dists[0] <= dists[1] && dists[1] <= dists[2])

	all, _, err := tree.Query(vecs[0], 0)
	require.NoError(t, err)
	assert.Len(t, all, 100)
}

func TestIndex_Errors(t *testing.T) {
	tree := New(vector.L2)
	assert.Error(t, tree.Build([]string{"a"}, nil))
	assert.Error(t, tree.Build([]string{"a", "b"}, [][]float32{{1}, {1, 2}}))

	require.NoError(t, tree.Build(nil, nil))
	ids, _, err := tree.Query([]float32{1}, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, tree.Build([]string{"a"}, [][]float32{{1, 2}}))
	_, _, err = tree.Query([]float32{1}, 1)
	assert.Error(t, err)
}
