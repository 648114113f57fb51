package main

import (
	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/bigram"
	"github.com/aaltospeech/morfex/internal/config"
	"github.com/aaltospeech/morfex/internal/unigram"
)

// loadConfig resolves the effective config.Config for a command
// invocation: config.Default(), overridden by --config if given,
// overridden again by whichever common flags the user actually set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, argErrorf("%w", err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("utf-8") {
		cfg.UTF8, _ = flags.GetBool("utf-8")
	}
	if flags.Changed("forward-backward") {
		cfg.ForwardBackward, _ = flags.GetBool("forward-backward")
	}
	if flags.Changed("temp-vocabs") {
		cfg.TempVocabInterval, _ = flags.GetInt("temp-vocabs")
	}
	if flags.Changed("boundary") {
		cfg.BoundarySymbol, _ = flags.GetString("boundary")
	}
	return cfg, nil
}

// unigramConfig builds an internal/unigram.Config for targetVocabSize
// from the shared hyperparameters in cfg.
func unigramConfig(cfg config.Config, targetVocabSize int) unigram.Config {
	return unigram.Config{
		OneCharMinLP:     cfg.OneCharMinLP,
		FloorLP:          cfg.FloorLP,
		TargetVocabSize:  targetVocabSize,
		RemovalsPerIter:  cfg.RemovalsPerIter,
		NCandidates:      cfg.NCandidates,
		MinRemovalLength: cfg.MinRemovalLength,
		UTF8:             cfg.UTF8,
		ForwardBackward:  cfg.ForwardBackward,
		Seed:             cfg.Seed,
		Strategies:       cfg.Strategies,
	}
}

// bigramConfig builds an internal/bigram.Config for targetVocabSize,
// optionally switching on Kneser-Ney discounting.
func bigramConfig(cfg config.Config, targetVocabSize int, useKN bool, discount float64) bigram.Config {
	return bigram.Config{
		TargetVocabSize:   targetVocabSize,
		RemovalsPerIter:   cfg.RemovalsPerIter,
		NCandidates:       cfg.NCandidates,
		MinLength:         cfg.MinRemovalLength,
		UTF8:              cfg.UTF8,
		UseKN:             useKN,
		KNDiscount:        discount,
		FloorLP:           cfg.FloorLP,
		TempVocabInterval: cfg.TempVocabInterval,
		ResettleIters:     cfg.ResettleIters,
		Threads:           cfg.Threads,
		DivideByDegree:    cfg.DivideByDegree,
	}
}
