// Command assetsync syncs local static asset trees into an S3-compatible bucket.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	var exitErr *exitError
	if stderrors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	if h := hint(err); h != "" {
		fmt.Fprintln(os.Stderr, "hint:", h)
	}
	os.Exit(1)
}

// hint suggests a next step for fatal errors the user can act on.
func hint(err error) string {
	switch {
	case errors.IsConfig(err):
		return "nothing was changed; fix the configuration and run again"
	case errors.IsAccessDenied(err):
		return "check the access key and its permissions on the bucket"
	case errors.IsBucketNotFound(err):
		return "check the bucket name and endpoint"
	case errors.IsInventory(err):
		return "the bucket could not be listed, so nothing was changed"
	case errors.IsCancelled(err):
		return "interrupted before any change was made"
	}
	return ""
}

// exitError ends the process with code after output has already been written.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}
