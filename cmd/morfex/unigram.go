package main

import (
	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/pipeline"
	"github.com/aaltospeech/morfex/internal/trie"
	"github.com/aaltospeech/morfex/internal/unigram"
)

// buildLexFromVocab is an alias kept local to this package's handlers
// for readability; it delegates to the pipeline's own trie construction
// so both the driver and the CLI build lexicons identically.
func buildLexFromVocab(vocab map[string]float64) *trie.Trie {
	return pipeline.LoadInitialVocab(vocab)
}

func snapshotLex(t *trie.Trie) map[string]float64 {
	out := make(map[string]float64)
	t.Each(func(f string, score float64) { out[f] = score })
	return out
}

func runUnigramPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("vocab-size") {
		return argErrorf("--vocab-size is required")
	}
	targetSize, _ := flags.GetInt("vocab-size")

	corpusCounts, err := loadWordCounts(args[0])
	if err != nil {
		return err
	}
	vocab, err := loadVocabText(args[1])
	if err != nil {
		return err
	}

	lex := buildLexFromVocab(vocab)
	tr := unigram.NewTrainer(lex, corpusCounts, nil, nil, unigramConfig(cfg, targetSize))
	if _, err := tr.TrainUntilTarget(); err != nil {
		return modelErrorf(err)
	}
	return writeVocabText(args[2], snapshotLex(lex))
}

func runUnigramThreshold(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("vocab-size") {
		return argErrorf("--vocab-size is required")
	}
	targetSize, _ := flags.GetInt("vocab-size")
	increment, _ := flags.GetFloat64("threshold-increment")

	corpusCounts, err := loadWordCounts(args[0])
	if err != nil {
		return err
	}
	vocab, err := loadVocabText(args[1])
	if err != nil {
		return err
	}

	lex := buildLexFromVocab(vocab)
	tr := unigram.NewTrainer(lex, corpusCounts, nil, nil, unigramConfig(cfg, targetSize))
	if _, err := tr.ThresholdPrune(increment); err != nil {
		return modelErrorf(err)
	}
	return writeVocabText(args[2], snapshotLex(lex))
}

func runIterate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	iterations, _ := cmd.Flags().GetInt("iterations")

	corpusCounts, err := loadWordCounts(args[0])
	if err != nil {
		return err
	}
	vocab, err := loadVocabText(args[1])
	if err != nil {
		return err
	}

	lex := buildLexFromVocab(vocab)
	tr := unigram.NewTrainer(lex, corpusCounts, nil, nil, unigramConfig(cfg, 0))
	for i := 0; i < iterations; i++ {
		if _, err := tr.RunIteration(); err != nil {
			return modelErrorf(err)
		}
	}
	return writeVocabText(args[2], snapshotLex(lex))
}
