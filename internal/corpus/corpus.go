// Package corpus loads training data: word-count files (string -> weight)
// and raw sentence files, transparently decompressing gzip/bzip2 inputs
// the way the teacher's loader transparently unwraps a gzip-compressed
// dictionary blob.
package corpus

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Open returns a ReadCloser for path, transparently decompressing gzip
// (".gz") or bzip2 (".bz2") inputs. bzip2 is read-only in the standard
// library, which matches the corpus loader's "decompression, not
// compression" requirement.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("corpus: opening gzip %s: %w", path, err)
		}
		return &gzipReadCloser{gz: gz, f: f}, nil
	case strings.HasSuffix(path, ".bz2"):
		return &bzip2ReadCloser{r: bzip2.NewReader(f), f: f}, nil
	default:
		return f, nil
	}
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

type bzip2ReadCloser struct {
	r io.Reader
	f *os.File
}

func (b *bzip2ReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *bzip2ReadCloser) Close() error                { return b.f.Close() }

// LoadWordCounts parses a word-count corpus file: one record per line,
// tolerating both `<count> <word>` and `<word>\t<count>` orderings
// (spec.md §6's vocab-file tolerant-order rule applies equally here).
// Lines starting with '#' are comments; blank lines are skipped.
func LoadWordCounts(r io.Reader) (map[string]float64, error) {
	counts := make(map[string]float64)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("corpus: line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		word, count, err := orderFields(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("corpus: line %d: %w", lineNo, err)
		}
		counts[word] += count
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// orderFields accepts either (count, word) or (word, count) and returns
// (word, count), trying the first field as a number before the second.
func orderFields(a, b string) (word string, count float64, err error) {
	if c, err := strconv.ParseFloat(a, 64); err == nil {
		return b, c, nil
	}
	if c, err := strconv.ParseFloat(b, 64); err == nil {
		return a, c, nil
	}
	return "", 0, fmt.Errorf("neither field is numeric: %q %q", a, b)
}

// LoadSentences reads one sentence per line, preserving order; blank
// lines are skipped.
func LoadSentences(r io.Reader) ([]string, error) {
	var sentences []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		sentences = append(sentences, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sentences, nil
}
