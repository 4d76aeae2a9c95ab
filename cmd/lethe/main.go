package main

import (
	"io"
	"os"

	"github.com/fatih/color"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
