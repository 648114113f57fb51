package modelio

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ReadVocabText parses a vocabulary file: one record per line, tolerating
// both `<count> <factor>` and `<factor>\t<count>` orderings. Lines
// starting with '#' are comments; blank lines are skipped.
func ReadVocabText(r io.Reader) (map[string]float64, error) {
	vocab := make(map[string]float64)
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
			return nil, fmt.Errorf("modelio: vocab line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		factor, score, err := orderVocabFields(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("modelio: vocab line %d: %w", lineNo, err)
		}
		vocab[factor] = score
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vocab, nil
}

// orderVocabFields accepts either (count, factor) or (factor, count) and
// returns (factor, score), trying the first field as a number first.
func orderVocabFields(a, b string) (factor string, score float64, err error) {
	if v, err := strconv.ParseFloat(a, 64); err == nil {
		return b, v, nil
	}
	if v, err := strconv.ParseFloat(b, 64); err == nil {
		return a, v, nil
	}
	return "", 0, fmt.Errorf("neither field is numeric: %q %q", a, b)
}

// WriteVocabText writes vocab as `<log-prob>\t<factor>\n` records sorted
// descending by score.
func WriteVocabText(w io.Writer, vocab map[string]float64) error {
	factors := make([]string, 0, len(vocab))
	for f := range vocab {
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		si, sj := vocab[factors[i]], vocab[factors[j]]
		if si != sj {
			return si > sj
		}
		return factors[i] < factors[j]
	})
	bw := bufio.NewWriter(w)
	for _, f := range factors {
		if _, err := fmt.Fprintf(bw, "%.17g\t%s\n", vocab[f], f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTransitionsText parses a transitions file: `<src> <tgt> <log-prob>`
// records, whitespace separated, order-insensitive but rejecting
// duplicate (src,tgt) pairs.
func ReadTransitionsText(r io.Reader) (map[[2]string]float64, error) {
	trans := make(map[[2]string]float64)
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
		if len(fields) != 3 {
			return nil, fmt.Errorf("modelio: transitions line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("modelio: transitions line %d: %w", lineNo, err)
		}
		key := [2]string{fields[0], fields[1]}
		if _, dup := trans[key]; dup {
			return nil, fmt.Errorf("%w: duplicate transition (%s, %s) at line %d", ErrInconsistentModel, fields[0], fields[1], lineNo)
		}
		trans[key] = score
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return trans, nil
}

// WriteTransitionsText writes trans as `<src> <tgt> <log-prob>` records,
// sorted by (src, tgt) for diffability.
func WriteTransitionsText(w io.Writer, trans map[[2]string]float64) error {
	keys := make([][2]string, 0, len(trans))
	for k := range trans {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s %s %.17g\n", k[0], k[1], trans[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
