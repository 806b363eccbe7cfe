package collector

import (
	"context"
	"time"
)

// Result captures the outcome of a single collector run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner describes the capability to run the collector once and wait for it.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}
