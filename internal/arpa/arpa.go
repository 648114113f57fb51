// Package arpa reads standard ARPA back-off language model files for the
// auxiliary string-scoring utility. The trainer never produces or
// consumes this format; it exists purely to let `strscore` compare a
// segmentation's likelihood against an externally trained n-gram model.
package arpa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidHeader is returned for a missing \data\ marker or a
// malformed "ngram N=COUNT" declaration.
var ErrInvalidHeader = errors.New("arpa: invalid header")

// ErrDuplicateNgram is returned when the same n-gram appears twice
// within one order's section (spec.md §7 "duplicate n-gram in ARPA").
var ErrDuplicateNgram = errors.New("arpa: duplicate n-gram")

// entry is one line's probability and optional back-off weight, both
// already converted from log10 to natural log.
type entry struct {
	prob    float64
	backoff float64 // 0 when the line carried no back-off column
}

// Model is a parsed ARPA back-off n-gram model, indexed by order and by
// the space-joined word sequence within that order.
type Model struct {
	Order   int
	Vocab   map[string]bool
	byOrder []map[string]entry // byOrder[0] is unused; orders are 1-based
}

// lineReader wraps bufio.Scanner with a one-line pushback buffer, since
// the header/section boundary requires peeking at a line before knowing
// which section it belongs to.
type lineReader struct {
	sc      *bufio.Scanner
	pending string
	hasPend bool
}

func (lr *lineReader) next() (string, bool) {
	if lr.hasPend {
		lr.hasPend = false
		return lr.pending, true
	}
	if !lr.sc.Scan() {
		return "", false
	}
	return lr.sc.Text(), true
}

func (lr *lineReader) nextNonEmpty() (string, bool) {
	for {
		line, ok := lr.next()
		if !ok {
			return "", false
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, true
		}
	}
}

func (lr *lineReader) pushBack(line string) {
	lr.pending = line
	lr.hasPend = true
}

// Read parses an ARPA file from r (spec.md §4.12/§6): a \data\ header
// naming the n-gram count per order, followed by one "N-grams:" section
// per order, each line "<log10 prob> <w1> ... <wN> [<log10 backoff>]".
// Probabilities and back-off weights are converted to natural log.
func Read(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lr := &lineReader{sc: sc}

	line, ok := lr.nextNonEmpty()
	if !ok || !strings.Contains(line, `\data\`) {
		return nil, fmt.Errorf("%w: missing \\data\\ marker", ErrInvalidHeader)
	}

	counts, err := readCounts(lr)
	if err != nil {
		return nil, err
	}
	maxOrder := len(counts)

	m := &Model{
		Order:   maxOrder,
		Vocab:   map[string]bool{},
		byOrder: make([]map[string]entry, maxOrder+1),
	}
	for order := 1; order <= maxOrder; order++ {
		n, err := readOrderSection(lr, m, order)
		if err != nil {
			return nil, err
		}
		if n != counts[order-1] {
			return nil, fmt.Errorf("arpa: order %d: expected %d n-grams, read %d", order, counts[order-1], n)
		}
	}
	return m, sc.Err()
}

// readCounts reads the "ngram N=COUNT" lines up to the first "N-grams:"
// section header, which it pushes back for readOrderSection to consume.
func readCounts(lr *lineReader) ([]int, error) {
	var counts []int
	for {
		line, ok := lr.nextNonEmpty()
		if !ok {
			return nil, fmt.Errorf("%w: truncated before any -grams section", ErrInvalidHeader)
		}
		if strings.HasSuffix(line, `-grams:`) {
			lr.pushBack(line)
			return counts, nil
		}
		if !strings.HasPrefix(line, "ngram ") {
			return nil, fmt.Errorf("%w: expected \"ngram N=COUNT\", got %q", ErrInvalidHeader, line)
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line[eq+1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, line)
		}
		counts = append(counts, n)
	}
}

func readOrderSection(lr *lineReader, m *Model, order int) (int, error) {
	header, ok := lr.nextNonEmpty()
	if !ok {
		return 0, fmt.Errorf("%w: missing %d-grams section", ErrInvalidHeader, order)
	}
	if !strings.HasSuffix(header, `-grams:`) {
		return 0, fmt.Errorf("%w: expected %d-grams section, got %q", ErrInvalidHeader, order, header)
	}

	table := map[string]entry{}
	m.byOrder[order] = table

	count := 0
	for {
		raw, ok := lr.next()
		if !ok {
			break
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			break
		}
		if strings.HasSuffix(line, `-grams:`) || strings.Contains(line, `\end\`) {
			lr.pushBack(line)
			break
		}
		fields := strings.Fields(line)
		if len(fields) < order+1 {
			return 0, fmt.Errorf("arpa: order %d: short line %q", order, line)
		}
		logProb, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("arpa: order %d: bad probability in %q", order, line)
		}
		words := fields[1 : 1+order]
		key := strings.Join(words, " ")
		if _, dup := table[key]; dup {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateNgram, key)
		}
		e := entry{prob: logProb * math.Ln10}
		if len(fields) > 1+order {
			bo, err := strconv.ParseFloat(fields[1+order], 64)
			if err != nil {
				return 0, fmt.Errorf("arpa: order %d: bad back-off in %q", order, line)
			}
			e.backoff = bo * math.Ln10
		}
		table[key] = e
		if order == 1 {
			m.Vocab[words[0]] = true
		}
		count++
	}
	return count, nil
}

// Score returns the natural-log probability of word following context
// (context's oldest word first, most recent last), applying standard
// ARPA back-off: the longest context with a direct (context, word)
// entry is used; each time the search drops the oldest context word, it
// adds the dropped context's own back-off weight (0 if that context has
// no entry at all), mirroring the node/backoff_node walk of a
// trie-based ARPA reader.
func (m *Model) Score(context []string, word string) float64 {
	if order := len(context) + 1; order <= m.Order {
		key := strings.Join(append(append([]string{}, context...), word), " ")
		if e, ok := m.byOrder[order][key]; ok {
			return e.prob
		}
	}
	if len(context) == 0 {
		return math.Inf(-1)
	}
	return m.backoffWeight(context) + m.Score(context[1:], word)
}

// backoffWeight returns the stored back-off weight for context, or 0
// (no penalty) if context itself has no ARPA entry.
func (m *Model) backoffWeight(context []string) float64 {
	order := len(context)
	if order == 0 || order > m.Order {
		return 0
	}
	if e, ok := m.byOrder[order][strings.Join(context, " ")]; ok {
		return e.backoff
	}
	return 0
}
