// Command morfex drives the subword vocabulary trainer: build the shared
// segmentation lattice, train and prune unigram/bigram models, and apply
// a trained model to new text.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "morfex:", err)
		os.Exit(exitCode(err))
	}
}
