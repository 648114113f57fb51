package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "morfex",
	Short:         "Train and apply subword segmentation models",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildMSFGCmd = &cobra.Command{
	Use:   "build-msfg WORDLIST VOCAB MSFG_OUT",
	Short: "Build the shared segmentation lattice for a corpus under an initial vocabulary",
	Args:  cobra.ExactArgs(3),
	RunE:  runBuildMSFG,
}

var unigramPruneCmd = &cobra.Command{
	Use:   "unigram-prune WORDLIST VOCAB_INIT VOCAB_OUT",
	Short: "Shrink a unigram lexicon toward a target size by ranked removal",
	Args:  cobra.ExactArgs(3),
	RunE:  runUnigramPrune,
}

var unigramThresholdCmd = &cobra.Command{
	Use:   "unigram-threshold WORDLIST VOCAB_INIT VOCAB_OUT",
	Short: "Shrink a unigram lexicon by a rising score threshold",
	Args:  cobra.ExactArgs(3),
	RunE:  runUnigramThreshold,
}

var bigramPruneCmd = &cobra.Command{
	Use:   "bigram-prune WORDLIST TRANS_INIT MSFG TRANS_OUT",
	Short: "Shrink a bigram transition table toward a target vocabulary size",
	Args:  cobra.ExactArgs(4),
	RunE:  runBigramPrune,
}

var bigramKNCmd = &cobra.Command{
	Use:   "bigram-kn WORDLIST TRANS_INIT MSFG TRANS_OUT",
	Short: "Shrink a bigram transition table using Kneser-Ney discounting",
	Args:  cobra.ExactArgs(4),
	RunE:  runBigramKN,
}

var iterateCmd = &cobra.Command{
	Use:   "iterate WORDLIST VOCAB_IN VOCAB_OUT",
	Short: "Run a fixed number of unigram EM iterations without pruning",
	Args:  cobra.ExactArgs(3),
	RunE:  runIterate,
}

var segmentTextCmd = &cobra.Command{
	Use:   "segment-text INPUT OUTPUT",
	Short: "Segment each line of INPUT under a trained model",
	Args:  cobra.ExactArgs(2),
	RunE:  runSegmentText,
}

var strscoreCmd = &cobra.Command{
	Use:   "strscore ARPA INPUT OUTPUT",
	Short: "Score each line of INPUT against an ARPA back-off language model",
	Args:  cobra.ExactArgs(3),
	RunE:  runStrscore,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a morfex.yaml hyperparameter file")
	rootCmd.PersistentFlags().Bool("utf-8", false, "use codepoint boundaries instead of byte boundaries")
	rootCmd.PersistentFlags().Bool("forward-backward", false, "resegment with forward/backward instead of Viterbi")
	rootCmd.PersistentFlags().Int("temp-vocabs", 0, "bigram trainer checkpoint interval in removed vocabulary entries (0 disables); no command registers a checkpoint writer, so no checkpoint files are written")
	rootCmd.PersistentFlags().String("boundary", "", "override the boundary symbol")

	unigramPruneCmd.Flags().Int("vocab-size", 0, "target lexicon size (required)")
	unigramThresholdCmd.Flags().Int("vocab-size", 0, "target lexicon size (required)")
	unigramThresholdCmd.Flags().Float64("threshold-increment", 1.0, "amount the removal threshold rises by each stalled pass")

	bigramPruneCmd.Flags().Int("vocab-size", 0, "target vocabulary size (required)")
	bigramKNCmd.Flags().Int("vocab-size", 0, "target vocabulary size (required)")
	bigramKNCmd.Flags().Float64("discount", 0.75, "Kneser-Ney discount")

	iterateCmd.Flags().Int("iterations", 1, "number of EM iterations to run")

	segmentTextCmd.Flags().String("vocabulary", "", "unigram vocabulary file (mutually exclusive with --transitions)")
	segmentTextCmd.Flags().String("transitions", "", "bigram transitions file (mutually exclusive with --vocabulary)")

	rootCmd.AddCommand(buildMSFGCmd, unigramPruneCmd, unigramThresholdCmd,
		bigramPruneCmd, bigramKNCmd, iterateCmd, segmentTextCmd, strscoreCmd)
}
