package ai

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Request outcomes reported to a Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// Recorder receives one observation per model call.
type Recorder interface {
	AIRequest(outcome string)
}

type instrumented struct {
	next     Generator
	logger   *zap.Logger
	recorder Recorder
}

// Instrument logs and counts every call to next. Either of logger and
// recorder may be nil.
func Instrument(next Generator, logger *zap.Logger, recorder Recorder) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{next: next, logger: logger, recorder: recorder}
}

func (g *instrumented) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := g.next.Generate(ctx, req)
	if err == nil && resp == nil {
		resp = &Response{}
	}

	outcome := OutcomeSuccess
	switch {
	case err == nil:
		g.logger.Debug("model call finished",
			zap.Int("messages", len(req.Messages)),
			zap.Int("function_calls", len(resp.FunctionCalls)),
			zap.Duration("elapsed", time.Since(start)))
	case IsTransient(err):
		outcome = OutcomeTransient
		g.logger.Warn("model call failed, transient", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	default:
		outcome = OutcomeError
		g.logger.Error("model call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	}
	if g.recorder != nil {
		g.recorder.AIRequest(outcome)
	}
	return resp, err
}
