package main

import (
	"os"

	"github.com/aaltospeech/morfex/internal/corpus"
	"github.com/aaltospeech/morfex/internal/modelio"
)

// loadWordCounts opens path (transparently decompressing .gz/.bz2) and
// parses it as a WORD COUNT corpus file.
func loadWordCounts(path string) (map[string]float64, error) {
	r, err := corpus.Open(path)
	if err != nil {
		return nil, ioErrorf(path, err)
	}
	defer r.Close()
	counts, err := corpus.LoadWordCounts(r)
	if err != nil {
		return nil, argErrorf("%s: %w", path, err)
	}
	return counts, nil
}

// loadVocabText opens and parses path as a FACTOR SCORE vocabulary file.
func loadVocabText(path string) (map[string]float64, error) {
	r, err := corpus.Open(path)
	if err != nil {
		return nil, ioErrorf(path, err)
	}
	defer r.Close()
	vocab, err := modelio.ReadVocabText(r)
	if err != nil {
		return nil, argErrorf("%s: %w", path, err)
	}
	return vocab, nil
}

// loadTransitionsText opens and parses path as a SRC TGT SCORE table.
func loadTransitionsText(path string) (map[[2]string]float64, error) {
	r, err := corpus.Open(path)
	if err != nil {
		return nil, ioErrorf(path, err)
	}
	defer r.Close()
	trans, err := modelio.ReadTransitionsText(r)
	if err != nil {
		return nil, argErrorf("%s: %w", path, err)
	}
	return trans, nil
}

// writeVocabText writes vocab in the sorted-descending text format to a
// freshly created file at path.
func writeVocabText(path string, vocab map[string]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErrorf(path, err)
	}
	defer f.Close()
	if err := modelio.WriteVocabText(f, vocab); err != nil {
		return ioErrorf(path, err)
	}
	return nil
}

// writeTransitionsText writes trans to a freshly created file at path.
func writeTransitionsText(path string, trans map[[2]string]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErrorf(path, err)
	}
	defer f.Close()
	if err := modelio.WriteTransitionsText(f, trans); err != nil {
		return ioErrorf(path, err)
	}
	return nil
}
