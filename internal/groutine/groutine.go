// Package groutine starts named goroutines. The name is attached as a pprof
// label and is available from the goroutine context.
package groutine

import (
	"context"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a new goroutine labelled name. A panic in fn is logged
// through logger (when set) and re-raised.
//
//	groutine.Go(ctx, "ams-loop", logger, func(ctx context.Context) {
//	    // work
//	})
//
// If parent is nil, context.Background() is used.
func Go(parent context.Context, name string, logger logrus.FieldLogger, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		if logger != nil {
			defer func() {
				if r := recover(); r != nil {
					logger.WithFields(logrus.Fields{
						"goroutine": name,
						"panic":     r,
					}).Errorf("goroutine panicked\n%s", debug.Stack())
					panic(r)
				}
			}()
		}
		fn(ctx)
	})
}

// Name returns the goroutine name stored in ctx, or "".
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(goroutineNameKey).(string); ok {
		return s
	}
	return ""
}
