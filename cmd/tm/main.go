// tm runs declarative analysis workflows over a Thunderbird mail archive.
//
// Usage:
//
//	tm init
//	tm extract [--profile DIR] [--output FILE]
//	tm run <workflow> [--tui] [--keep-going] [--format text|json|yaml]
//	tm validate <workflow>
//	tm tools [--category C] [--params]
//	tm exec <tool> [--input PATH]... [--output PATH]... [--set key=value]...
//	tm log [-n N]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLogFile()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
