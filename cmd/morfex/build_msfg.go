package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/lattice"
	"github.com/aaltospeech/morfex/internal/pipeline"
)

func runBuildMSFG(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	wordlistPath, vocabPath, msfgOutPath := args[0], args[1], args[2]

	corpusCounts, err := loadWordCounts(wordlistPath)
	if err != nil {
		return err
	}
	vocab, err := loadVocabText(vocabPath)
	if err != nil {
		return err
	}

	lex := pipeline.LoadInitialVocab(vocab)
	m, err := pipeline.BuildMSFG(corpusCounts, lex, cfg.BoundarySymbol, cfg.MaxFactorChars, cfg.UTF8)
	if err != nil {
		var unseg *lattice.UnsegmentableString
		if errors.As(err, &unseg) {
			return modelErrorf(err)
		}
		return err
	}

	f, err := os.Create(msfgOutPath)
	if err != nil {
		return ioErrorf(msfgOutPath, err)
	}
	defer f.Close()
	if err := lattice.WriteMSFG(f, m); err != nil {
		return ioErrorf(msfgOutPath, err)
	}
	return nil
}
