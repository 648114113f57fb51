package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/em"
	"github.com/aaltospeech/morfex/internal/lattice"
)

func runSegmentText(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	vocabPath, _ := cmd.Flags().GetString("vocabulary")
	transPath, _ := cmd.Flags().GetString("transitions")
	if (vocabPath == "") == (transPath == "") {
		return argErrorf("exactly one of --vocabulary or --transitions must be given")
	}

	inPath, outPath := args[0], args[1]
	in, err := os.Open(inPath)
	if err != nil {
		return ioErrorf(inPath, err)
	}
	defer in.Close()
	out, err := os.Create(outPath)
	if err != nil {
		return ioErrorf(outPath, err)
	}
	defer out.Close()

	var segment func(text string) ([]string, error)
	if vocabPath != "" {
		vocab, err := loadVocabText(vocabPath)
		if err != nil {
			return err
		}
		lex := buildLexFromVocab(vocab)
		segment = func(text string) ([]string, error) {
			factors, _, err := em.UnigramViterbi(text, lex, cfg.UTF8)
			return factors, err
		}
	} else {
		trans, err := loadTransitionsText(transPath)
		if err != nil {
			return err
		}
		vocab := make(map[string]float64)
		for pair := range trans {
			vocab[pair[0]] = 0
			vocab[pair[1]] = 0
		}
		delete(vocab, cfg.BoundarySymbol)
		lex := buildLexFromVocab(vocab)
		score := em.FallbackScore(bigramLookup(trans))
		segment = func(text string) ([]string, error) {
			fg := lattice.Build(text, cfg.BoundarySymbol, lex, cfg.MaxFactorChars, cfg.UTF8)
			path, _, _, err := em.BigramViterbi(fg, score)
			return path, err
		}
	}

	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := scanner.Text()
		factors, err := segment(text)
		if err != nil {
			return modelErrorf(err)
		}
		if _, err := writer.WriteString(strings.Join(factors, " ") + "\n"); err != nil {
			return ioErrorf(outPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return ioErrorf(inPath, err)
	}
	return writer.Flush()
}

func bigramLookup(table map[[2]string]float64) lattice.BigramScore {
	return func(src, tgt string) (float64, bool) {
		v, ok := table[[2]string{src, tgt}]
		return v, ok
	}
}
