package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aaltospeech/morfex/internal/arpa"
)

// runStrscore scores each line of INPUT under an ARPA back-off model,
// writing "<line>\t<log-prob>" to OUTPUT. Each line is whitespace
// tokenized and scored word by word with a sliding context capped at
// model.Order-1, the standard ARPA scoring convention.
func runStrscore(cmd *cobra.Command, args []string) error {
	arpaPath, inPath, outPath := args[0], args[1], args[2]

	arpaFile, err := os.Open(arpaPath)
	if err != nil {
		return ioErrorf(arpaPath, err)
	}
	defer arpaFile.Close()
	model, err := arpa.Read(arpaFile)
	if err != nil {
		return modelErrorf(err)
	}

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

	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	maxContext := model.Order - 1
	for scanner.Scan() {
		line := scanner.Text()
		words := strings.Fields(line)
		total := 0.0
		var context []string
		for _, w := range words {
			total += model.Score(context, w)
			context = append(context, w)
			if len(context) > maxContext {
				context = context[len(context)-maxContext:]
			}
		}
		if _, err := fmt.Fprintf(writer, "%s\t%g\n", line, total); err != nil {
			return ioErrorf(outPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return ioErrorf(inPath, err)
	}
	return writer.Flush()
}
