package main

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaltospeech/morfex/internal/lattice"
)

// newTestCmd returns a bare *cobra.Command carrying every flag any
// handler under test might read, so runE functions can be invoked
// directly without going through rootCmd.Execute() (and without its
// package-level flag state leaking between tests).
func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Bool("utf-8", false, "")
	cmd.Flags().Bool("forward-backward", false, "")
	cmd.Flags().Int("temp-vocabs", 0, "")
	cmd.Flags().String("boundary", "", "")
	cmd.Flags().Int("vocab-size", 0, "")
	cmd.Flags().Float64("threshold-increment", 1.0, "")
	cmd.Flags().Float64("discount", 0.75, "")
	cmd.Flags().Int("iterations", 1, "")
	cmd.Flags().String("vocabulary", "", "")
	cmd.Flags().String("transitions", "", "")
	return cmd
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunBuildMSFGWritesLattice(t *testing.T) {
	dir := t.TempDir()
	wordlist := writeTemp(t, dir, "words.txt", "abc 5\nab 2\n")
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n-1.0 b\n-1.0 c\n-0.5 ab\n-0.5 bc\n")
	out := filepath.Join(dir, "out.msfg")

	cmd := newTestCmd()
	require.NoError(t, runBuildMSFG(cmd, []string{wordlist, vocab, out}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	m, err := lattice.ReadMSFG(f, "<w>")
	require.NoError(t, err)
	assert.Contains(t, m.StringEndNodes, "abc")
	assert.Contains(t, m.StringEndNodes, "ab")
}

func TestRunBuildMSFGUnsegmentableIsModelError(t *testing.T) {
	dir := t.TempDir()
	wordlist := writeTemp(t, dir, "words.txt", "xyz 1\n")
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n")
	out := filepath.Join(dir, "out.msfg")

	cmd := newTestCmd()
	err := runBuildMSFG(cmd, []string{wordlist, vocab, out})
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestRunUnigramPruneRequiresVocabSizeFlag(t *testing.T) {
	dir := t.TempDir()
	wordlist := writeTemp(t, dir, "words.txt", "ab 1\n")
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n-1.0 b\n-0.1 ab\n")
	out := filepath.Join(dir, "out.vocab")

	cmd := newTestCmd()
	err := runUnigramPrune(cmd, []string{wordlist, vocab, out})
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestRunUnigramPruneShrinksVocabulary(t *testing.T) {
	dir := t.TempDir()
	wordlist := writeTemp(t, dir, "words.txt", "ab 20\na 1\nb 1\n")
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n-1.0 b\n-0.1 ab\n")
	out := filepath.Join(dir, "out.vocab")

	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("vocab-size", "2"))
	require.NoError(t, runUnigramPrune(cmd, []string{wordlist, vocab, out}))

	result, err := loadVocabText(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result), 3) // single chars survive GuaranteeShortFactors
}

func TestRunIterateWritesRefinedVocabulary(t *testing.T) {
	dir := t.TempDir()
	wordlist := writeTemp(t, dir, "words.txt", "ab 10\n")
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n-1.0 b\n-1.0 ab\n")
	out := filepath.Join(dir, "out.vocab")

	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("iterations", "3"))
	require.NoError(t, runIterate(cmd, []string{wordlist, vocab, out}))

	result, err := loadVocabText(out)
	require.NoError(t, err)
	assert.Len(t, result, 3)
}

func TestRunSegmentTextRequiresExactlyOneModelFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "in.txt", "abc\n")
	out := filepath.Join(dir, "out.txt")

	cmd := newTestCmd()
	err := runSegmentText(cmd, []string{in, out})
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestRunSegmentTextUnigramSegments(t *testing.T) {
	dir := t.TempDir()
	vocab := writeTemp(t, dir, "vocab.txt", "-1.0 a\n-2.0 bc\n")
	in := writeTemp(t, dir, "in.txt", "abc\n")
	out := filepath.Join(dir, "out.txt")

	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("vocabulary", vocab))
	require.NoError(t, runSegmentText(cmd, []string{in, out}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a bc\n", string(data))
}

func TestRunStrscoreWritesPerLineScores(t *testing.T) {
	dir := t.TempDir()
	arpaText := `\data\
ngram 1=2
ngram 2=1

\1-grams:
-1.0 a
-2.0 b

\2-grams:
-0.5 a b

\end\
`
	arpaPath := writeTemp(t, dir, "lm.arpa", arpaText)
	in := writeTemp(t, dir, "in.txt", "a b\n")
	out := filepath.Join(dir, "out.txt")

	cmd := newTestCmd()
	require.NoError(t, runStrscore(cmd, []string{arpaPath, in, out}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	fields := strings.Split(line, "\t")
	require.Len(t, fields, 2)
	assert.Equal(t, "a b", fields[0])
	got, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	want := (-1.0 + -0.5) * math.Ln10
	assert.InDelta(t, want, got, 1e-9)
}
