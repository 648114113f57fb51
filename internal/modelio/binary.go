// Package modelio implements the model file formats from spec.md §6: a
// teacher-style mmap-backed binary format (header + gob-encoded string
// pool + flat reinterpreted score arrays) for fast production loads, and
// the human-readable `.vocab`/`.trans` text formats used as the
// canonical, diffable checkpoint format between training phases.
package modelio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// ErrInconsistentModel is returned when a binary model file fails a
// structural check: bad magic, truncated sections, or a string pool
// whose length disagrees with its score array.
var ErrInconsistentModel = errors.New("modelio: inconsistent model file")

const (
	vocabMagic       = "MFX1"
	transMagic       = "MFX2"
	sparseTransMagic = "MFX3"
)

// sparseDensityThreshold is the fraction of finite (non -Inf) cells below
// which WriteTransitionsBinary switches from a dense row-major array to
// a sparse gob-encoded map, since a ragged table spends most of its
// dense storage on cells that can never be reached.
const sparseDensityThreshold = 0.25

// Header is the fixed-size map of a binary model file, mirroring the
// teacher's Header/ComplexDataOffset layout: a gob+gzip "complex data"
// block for strings and maps, followed by a flat numeric array that is
// mmap'd and reinterpreted in place rather than copied onto the heap.
// N is unused by vocab files and dense transition files; sparse
// transition files set it to the factor count since they carry no flat
// scores array for ScoresCount to describe.
type Header struct {
	Magic             [4]byte
	ComplexDataOffset int64
	ComplexDataLength int64
	ScoresOffset      int64
	ScoresCount       int64
	N                 int64
}

// ComplexData is the gob-encoded section of a binary model file: the
// string pool that would be wasteful to store as fixed-width records,
// plus (for sparse transition files only) the flattened src*N+tgt keys
// and scores of every reachable cell.
type ComplexData struct {
	FactorPool []string
	SparseKeys []int64
	SparseVals []float64
}

// bytesToSlice reinterprets a byte slice as a []T without copying,
// modernizing the teacher's reflect.SliceHeader trick to unsafe.Slice.
func bytesToSlice[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size)
}

func writeComplexBlock(w io.Writer, cd ComplexData) (int, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(cd); err != nil {
		return 0, fmt.Errorf("modelio: encoding complex data: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func readComplexBlock(raw []byte) (ComplexData, error) {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return ComplexData{}, fmt.Errorf("modelio: opening complex data: %w", err)
	}
	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return ComplexData{}, fmt.Errorf("modelio: decompressing complex data: %w", err)
	}
	if err := gz.Close(); err != nil {
		return ComplexData{}, err
	}
	var cd ComplexData
	if err := gob.NewDecoder(bytes.NewReader(decompressed)).Decode(&cd); err != nil {
		return ComplexData{}, fmt.Errorf("modelio: decoding complex data: %w", err)
	}
	return cd, nil
}

// VocabFile is a loaded binary vocabulary: Pool[i] is the factor whose
// log-probability is Scores[i]. Scores is a zero-copy mmap view; call
// Close when done to release the mapping.
type VocabFile struct {
	Pool     []string
	Scores   []float64
	mmapFile mmap.MMap
}

// Close releases the underlying memory mapping, if any.
func (v *VocabFile) Close() error {
	if v.mmapFile != nil {
		return v.mmapFile.Unmap()
	}
	return nil
}

// WriteVocabBinary writes pool/scores (index-aligned) to path in the mmap
// binary format.
func WriteVocabBinary(path string, pool []string, scores []float64) error {
	if len(pool) != len(scores) {
		return fmt.Errorf("modelio: pool has %d entries, scores has %d", len(pool), len(scores))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header Header
	copy(header.Magic[:], vocabMagic)
	headerSize := int64(unsafe.Sizeof(header))

	var complexBuf bytes.Buffer
	complexLen, err := writeComplexBlock(&complexBuf, ComplexData{FactorPool: pool})
	if err != nil {
		return err
	}
	header.ComplexDataOffset = headerSize
	header.ComplexDataLength = int64(complexLen)
	header.ScoresOffset = header.ComplexDataOffset + header.ComplexDataLength
	header.ScoresCount = int64(len(scores))

	if err := binary.Write(f, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := f.Write(complexBuf.Bytes()); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, scores)
}

// ReadVocabBinary mmaps path and returns a zero-copy view over its score
// array.
func ReadVocabBinary(path string) (*VocabFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("modelio: mmap %s: %w", path, err)
	}

	header, err := readHeader(mm, vocabMagic)
	if err != nil {
		_ = mm.Unmap()
		return nil, err
	}
	cd, err := readComplexBlock(mm[header.ComplexDataOffset : header.ComplexDataOffset+header.ComplexDataLength])
	if err != nil {
		_ = mm.Unmap()
		return nil, err
	}

	scoreBytes := mm[header.ScoresOffset : header.ScoresOffset+header.ScoresCount*8]
	scores := bytesToSlice[float64](scoreBytes)
	if len(scores) != len(cd.FactorPool) {
		_ = mm.Unmap()
		return nil, fmt.Errorf("%w: %d pool entries, %d scores", ErrInconsistentModel, len(cd.FactorPool), len(scores))
	}

	return &VocabFile{Pool: cd.FactorPool, Scores: scores, mmapFile: mm}, nil
}

func readHeader(mm mmap.MMap, wantMagics ...string) (Header, error) {
	var header Header
	headerSize := int(unsafe.Sizeof(header))
	if len(mm) < headerSize {
		return header, fmt.Errorf("%w: file too small for header", ErrInconsistentModel)
	}
	if err := binary.Read(bytes.NewReader(mm[:headerSize]), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("modelio: reading header: %w", err)
	}
	got := string(header.Magic[:])
	for _, want := range wantMagics {
		if got != want {
			continue
		}
		end := int64(len(mm))
		if header.ComplexDataOffset < 0 || header.ComplexDataLength < 0 || header.ComplexDataOffset+header.ComplexDataLength > end ||
			header.ScoresOffset < 0 || header.ScoresCount < 0 || header.ScoresOffset+header.ScoresCount*8 > end {
			return header, fmt.Errorf("%w: truncated sections", ErrInconsistentModel)
		}
		return header, nil
	}
	return header, fmt.Errorf("%w: bad magic %q", ErrInconsistentModel, header.Magic[:])
}

// TransitionsFile is a loaded binary transition table: Pool gives the
// factor for each id. A dense file reinterprets Scores in place from the
// mmap (Scores[src*N+tgt]); a sparse file leaves Scores nil and looks
// cells up in sparse instead, reporting -Inf for everything absent.
type TransitionsFile struct {
	Pool     []string
	Scores   []float64
	N        int
	sparse   map[int64]float64
	mmapFile mmap.MMap
}

// Close releases the underlying memory mapping, if any.
func (t *TransitionsFile) Close() error {
	if t.mmapFile != nil {
		return t.mmapFile.Unmap()
	}
	return nil
}

// Score returns T[src][tgt], or math.Inf(-1) if either id is out of range
// or, for a sparse file, the cell was never written.
func (t *TransitionsFile) Score(src, tgt int) float64 {
	if src < 0 || src >= t.N || tgt < 0 || tgt >= t.N {
		return math.Inf(-1)
	}
	if t.sparse != nil {
		if v, ok := t.sparse[int64(src)*int64(t.N)+int64(tgt)]; ok {
			return v
		}
		return math.Inf(-1)
	}
	return t.Scores[src*t.N+tgt]
}

// WriteTransitionsBinary writes the N*N row-major transition matrix
// (rowMajor[src*n+tgt]) to path, keyed by pool[i] for id i. When fewer
// than sparseDensityThreshold of the cells are finite, it writes a
// sparse gob-encoded map of only the reachable cells instead of the
// full dense array (DESIGN.md C10).
func WriteTransitionsBinary(path string, pool []string, rowMajor []float64) error {
	n := len(pool)
	if len(rowMajor) != n*n {
		return fmt.Errorf("modelio: expected %d*%d=%d scores, got %d", n, n, n*n, len(rowMajor))
	}
	if isRagged(rowMajor) {
		return writeSparseTransitions(path, pool, rowMajor)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header Header
	copy(header.Magic[:], transMagic)
	headerSize := int64(unsafe.Sizeof(header))

	var complexBuf bytes.Buffer
	complexLen, err := writeComplexBlock(&complexBuf, ComplexData{FactorPool: pool})
	if err != nil {
		return err
	}
	header.ComplexDataOffset = headerSize
	header.ComplexDataLength = int64(complexLen)
	header.ScoresOffset = header.ComplexDataOffset + header.ComplexDataLength
	header.ScoresCount = int64(len(rowMajor))

	if err := binary.Write(f, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := f.Write(complexBuf.Bytes()); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, rowMajor)
}

// isRagged reports whether fewer than sparseDensityThreshold of rowMajor's
// cells are finite (-Inf marks an absent transition, never a legal score).
func isRagged(rowMajor []float64) bool {
	if len(rowMajor) == 0 {
		return false
	}
	finite := 0
	for _, v := range rowMajor {
		if !math.IsInf(v, -1) {
			finite++
		}
	}
	return float64(finite)/float64(len(rowMajor)) < sparseDensityThreshold
}

func writeSparseTransitions(path string, pool []string, rowMajor []float64) error {
	n := len(pool)
	keys := make([]int64, 0, len(rowMajor))
	vals := make([]float64, 0, len(rowMajor))
	for i, v := range rowMajor {
		if math.IsInf(v, -1) {
			continue
		}
		keys = append(keys, int64(i))
		vals = append(vals, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var header Header
	copy(header.Magic[:], sparseTransMagic)
	headerSize := int64(unsafe.Sizeof(header))

	var complexBuf bytes.Buffer
	complexLen, err := writeComplexBlock(&complexBuf, ComplexData{FactorPool: pool, SparseKeys: keys, SparseVals: vals})
	if err != nil {
		return err
	}
	header.ComplexDataOffset = headerSize
	header.ComplexDataLength = int64(complexLen)
	header.ScoresOffset = header.ComplexDataOffset + header.ComplexDataLength
	header.N = int64(n)

	if err := binary.Write(f, binary.LittleEndian, &header); err != nil {
		return err
	}
	_, err = f.Write(complexBuf.Bytes())
	return err
}

// ReadTransitionsBinary mmaps path and returns a view over its transition
// matrix, dense or sparse depending on how it was written.
func ReadTransitionsBinary(path string) (*TransitionsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("modelio: mmap %s: %w", path, err)
	}

	header, err := readHeader(mm, transMagic, sparseTransMagic)
	if err != nil {
		_ = mm.Unmap()
		return nil, err
	}

	if string(header.Magic[:]) == sparseTransMagic {
		cd, err := readComplexBlock(mm[header.ComplexDataOffset : header.ComplexDataOffset+header.ComplexDataLength])
		if err != nil {
			_ = mm.Unmap()
			return nil, err
		}
		if err := mm.Unmap(); err != nil {
			return nil, err
		}
		if len(cd.SparseKeys) != len(cd.SparseVals) {
			return nil, fmt.Errorf("%w: %d sparse keys but %d values", ErrInconsistentModel, len(cd.SparseKeys), len(cd.SparseVals))
		}
		sparse := make(map[int64]float64, len(cd.SparseKeys))
		for i, k := range cd.SparseKeys {
			sparse[k] = cd.SparseVals[i]
		}
		return &TransitionsFile{Pool: cd.FactorPool, N: int(header.N), sparse: sparse}, nil
	}

	cd, err := readComplexBlock(mm[header.ComplexDataOffset : header.ComplexDataOffset+header.ComplexDataLength])
	if err != nil {
		_ = mm.Unmap()
		return nil, err
	}

	scoreBytes := mm[header.ScoresOffset : header.ScoresOffset+header.ScoresCount*8]
	scores := bytesToSlice[float64](scoreBytes)
	n := len(cd.FactorPool)
	if len(scores) != n*n {
		_ = mm.Unmap()
		return nil, fmt.Errorf("%w: %d factors but %d scores", ErrInconsistentModel, n, len(scores))
	}

	return &TransitionsFile{Pool: cd.FactorPool, Scores: scores, N: n, mmapFile: mm}, nil
}
