package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// An interrupted foreground daemon is a clean shutdown, not a failure
	// worth repeating on stderr.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "clipflow: %v\n", err)
	}
	os.Exit(1)
}
