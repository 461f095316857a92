// Command flatindex joins fisheries survey records into flat per-haul
// observation batches and builds per-field inverted indices over them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/afscgap-dse/flatindex/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{}
	err := rootCommand(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "flatindex: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}
