package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mailindex/internal/core"
)

// Exit codes, one per failure kind
const (
	exitOK         = 0
	exitUnexpected = 1
	exitConfig     = 2
	exitMailbox    = 3
	exitAuth       = 4
	exitIndex      = 5
	exitPartial    = 6
)

func main() {
	// SIGINT/SIGTERM cancel the in-flight command
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit status by its kind
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrConfig):
		return exitConfig
	case errors.Is(err, core.ErrAuth):
		return exitAuth
	case errors.Is(err, core.ErrMailbox):
		return exitMailbox
	case errors.Is(err, core.ErrIndex):
		return exitIndex
	case errors.Is(err, core.ErrPartial):
		return exitPartial
	default:
		return exitUnexpected
	}
}
