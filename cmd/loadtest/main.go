package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nurburg-dev/redis-sample-project/internal/loadtest"
)

// exitThresholdsFailed matches k6's exit code for crossed thresholds
const exitThresholdsFailed = 99

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var thresholdErr *loadtest.ThresholdError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &thresholdErr):
		return exitThresholdsFailed
	default:
		return 1
	}
}
