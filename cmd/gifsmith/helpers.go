package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"gifsmith/internal/pipeline"
)

// reportProgress drains the update channel until it closes. On a terminal
// it keeps one live line; otherwise it prints a line per stage change.
func reportProgress(out io.Writer, updates <-chan pipeline.Progress) {
	interactive := isTerminal(out)
	lastStage := pipeline.Stage("")
	for update := range updates {
		if interactive {
			fmt.Fprintf(out, "\r%-10s %3.0f%%", update.Stage, update.Fraction*100)
			if update.Stage == pipeline.StageComplete {
				fmt.Fprintln(out)
			}
		} else if update.Stage != lastStage {
			fmt.Fprintf(out, "%s\n", update.Stage)
		}
		lastStage = update.Stage
	}
	if interactive && lastStage != pipeline.StageComplete {
		fmt.Fprintln(out)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
