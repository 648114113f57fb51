package modelio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVocabTextBothOrders(t *testing.T) {
	data := "-1.5 cat\ndog\t-2.5\n# comment\n\n"
	vocab, err := ReadVocabText(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, -1.5, vocab["cat"])
	assert.Equal(t, -2.5, vocab["dog"])
}

func TestReadVocabTextRejectsMalformed(t *testing.T) {
	_, err := ReadVocabText(strings.NewReader("cat dog extra\n"))
	assert.Error(t, err)

	_, err = ReadVocabText(strings.NewReader("cat dog\n"))
	assert.Error(t, err)
}

func TestWriteVocabTextSortsDescending(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVocabText(&buf, map[string]float64{
		"a":  -2.0,
		"ab": -0.5,
		"b":  -3.0,
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ab")
	assert.Contains(t, lines[1], "a")
	assert.Contains(t, lines[2], "b")
}

func TestVocabTextRoundTrip(t *testing.T) {
	vocab := map[string]float64{"a": -1.2345678901234, "ab": -0.3}
	var buf bytes.Buffer
	require.NoError(t, WriteVocabText(&buf, vocab))

	got, err := ReadVocabText(&buf)
	require.NoError(t, err)
	assert.InDelta(t, vocab["a"], got["a"], 1e-12)
	assert.InDelta(t, vocab["ab"], got["ab"], 1e-12)
}

func TestReadTransitionsTextRejectsDuplicates(t *testing.T) {
	data := "a b -1.0\na b -2.0\n"
	_, err := ReadTransitionsText(strings.NewReader(data))
	assert.ErrorIs(t, err, ErrInconsistentModel)
}

func TestTransitionsTextRoundTrip(t *testing.T) {
	trans := map[[2]string]float64{
		{"<w>", "a"}: -0.5,
		{"a", "b"}:   -1.25,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTransitionsText(&buf, trans))

	got, err := ReadTransitionsText(&buf)
	require.NoError(t, err)
	assert.InDelta(t, trans[[2]string{"<w>", "a"}], got[[2]string{"<w>", "a"}], 1e-12)
	assert.InDelta(t, trans[[2]string{"a", "b"}], got[[2]string{"a", "b"}], 1e-12)
}
