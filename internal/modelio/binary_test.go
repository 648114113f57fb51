package modelio

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.bin")
	pool := []string{"a", "b", "ab"}
	scores := []float64{-1.2, -2.5, -0.3}

	require.NoError(t, WriteVocabBinary(path, pool, scores))

	vf, err := ReadVocabBinary(path)
	require.NoError(t, err)
	defer vf.Close()

	assert.Equal(t, pool, vf.Pool)
	assert.InDeltaSlice(t, scores, vf.Scores, 1e-12)
}

func TestVocabBinaryRejectsLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.bin")
	err := WriteVocabBinary(path, []string{"a", "b"}, []float64{-1.0})
	assert.Error(t, err)
}

func TestReadVocabBinaryRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.bin")
	require.NoError(t, WriteTransitionsBinary(path, []string{"a"}, []float64{0}))

	_, err := ReadVocabBinary(path)
	assert.ErrorIs(t, err, ErrInconsistentModel)
}

func TestTransitionsBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bin")
	pool := []string{"<w>", "a", "b"}
	n := len(pool)
	rowMajor := make([]float64, n*n)
	for i := range rowMajor {
		rowMajor[i] = -float64(i) - 0.5
	}

	require.NoError(t, WriteTransitionsBinary(path, pool, rowMajor))

	tf, err := ReadTransitionsBinary(path)
	require.NoError(t, err)
	defer tf.Close()

	assert.Equal(t, pool, tf.Pool)
	assert.Equal(t, n, tf.N)
	assert.InDelta(t, -0.5, tf.Score(0, 0), 1e-12)
	assert.InDelta(t, rowMajor[1*n+2], tf.Score(1, 2), 1e-12)
}

func TestTransitionsBinaryRaggedTableUsesSparseFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bin")
	pool := []string{"<w>", "a", "b", "c", "d"}
	n := len(pool)
	rowMajor := make([]float64, n*n)
	for i := range rowMajor {
		rowMajor[i] = math.Inf(-1)
	}
	rowMajor[0*n+1] = math.Log(0.5)
	rowMajor[1*n+0] = 0

	require.NoError(t, WriteTransitionsBinary(path, pool, rowMajor))

	tf, err := ReadTransitionsBinary(path)
	require.NoError(t, err)
	defer tf.Close()

	assert.Equal(t, pool, tf.Pool)
	assert.Equal(t, n, tf.N)
	assert.Nil(t, tf.Scores)
	assert.InDelta(t, math.Log(0.5), tf.Score(0, 1), 1e-12)
	assert.InDelta(t, 0, tf.Score(1, 0), 1e-12)
	assert.True(t, tf.Score(2, 3) < -1e300)
	assert.True(t, tf.Score(99, 0) < -1e300)
}

func TestTransitionsScoreOutOfRangeIsNegInf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bin")
	require.NoError(t, WriteTransitionsBinary(path, []string{"a"}, []float64{-1.0}))

	tf, err := ReadTransitionsBinary(path)
	require.NoError(t, err)
	defer tf.Close()

	assert.True(t, tf.Score(5, 0) < -1e300)
}
