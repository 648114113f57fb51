package main

import (
	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/bigram"
	"github.com/aaltospeech/morfex/internal/corpus"
	"github.com/aaltospeech/morfex/internal/lattice"
)

func loadMSFG(path, boundary string) (*lattice.MultiStringFactorGraph, error) {
	r, err := corpus.Open(path)
	if err != nil {
		return nil, ioErrorf(path, err)
	}
	defer r.Close()
	m, err := lattice.ReadMSFG(r, boundary)
	if err != nil {
		return nil, modelErrorf(err)
	}
	return m, nil
}

func runBigramPrune(cmd *cobra.Command, args []string) error {
	return runBigramTraining(cmd, args, false, 0)
}

func runBigramKN(cmd *cobra.Command, args []string) error {
	discount, _ := cmd.Flags().GetFloat64("discount")
	return runBigramTraining(cmd, args, true, discount)
}

func runBigramTraining(cmd *cobra.Command, args []string, useKN bool, discount float64) error {
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
	initial, err := loadTransitionsText(args[1])
	if err != nil {
		return err
	}
	m, err := loadMSFG(args[2], cfg.BoundarySymbol)
	if err != nil {
		return err
	}

	table := make(bigram.Table, len(initial))
	for k, v := range initial {
		table[k] = v
	}
	tr := bigram.NewTrainer(table, m, corpusCounts, nil, bigramConfig(cfg, targetSize, useKN, discount))
	if _, err := tr.TrainUntilTarget(); err != nil {
		return modelErrorf(err)
	}
	return writeTransitionsText(args[3], map[[2]string]float64(tr.Table))
}
