package rediskit

import (
	"context"
	"time"
)

// Recorder receives operation and selection measurements.
type Recorder interface {
	RecordOperation(ctx context.Context, op string, db int, err error, took time.Duration)
	RecordSelection(ctx context.Context, db int, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(context.Context, string, int, error, time.Duration) {}

func (nopRecorder) RecordSelection(context.Context, int, bool) {}
