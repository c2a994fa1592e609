package logx

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StartSpan attaches a child logger tagged with the span name and attrs to
// ctx and logs the start. The returned func logs the end with its duration.
// Nested spans inherit their parent's fields.
func StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	lc := zerolog.Ctx(ctx).With().Str("span", name)
	for k, v := range attrs {
		lc = lc.Interface(k, v)
	}
	spanLogger := lc.Logger()
	ctx = spanLogger.WithContext(ctx)

	start := time.Now()
	spanLogger.Debug().Str("event", "span_start").Msg("starting span")

	return ctx, func(err error) {
		event := spanLogger.Info()
		if err != nil {
			event = spanLogger.Error().Err(err)
		}
		event.
			Str("event", "span_end").
			Dur("duration", time.Since(start)).
			Msg("ending span")
	}
}

// Event logs a named event against the span logger stored in ctx.
func Event(ctx context.Context, name string, attrs map[string]any) {
	event := zerolog.Ctx(ctx).Info()
	for k, v := range attrs {
		event = event.Interface(k, v)
	}
	event.Str("event", name).Msg("span event")
}
