package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finch/internal/delta"
	"finch/pkg/logger"
)

// Emitter receives tool-loading deltas. *delta.Encoder satisfies it.
type Emitter interface {
	Emit(d delta.Delta) error
}

// Executor runs model-requested calls for one turn: it validates arguments,
// collapses duplicates through the turn's DedupCache and brackets every
// external call with tool-loading start and stop deltas.
type Executor struct {
	registry *Registry
	cache    *DedupCache
	emitter  Emitter
	timeout  time.Duration
	tracer   trace.Tracer
}

// NewExecutor creates an Executor bound to one turn.
func NewExecutor(registry *Registry, cache *DedupCache, emitter Emitter, timeout time.Duration) *Executor {
	if cache == nil {
		cache = NewDedupCache()
	}
	return &Executor{
		registry: registry,
		cache:    cache,
		emitter:  emitter,
		timeout:  timeout,
		tracer:   otel.Tracer("finch/tools"),
	}
}

// Execute runs one call. A nil result with a nil error means the call was a
// duplicate and has already been handled earlier in the turn. Tool and
// argument failures come back as error results, not as errors; the only
// error returned is context cancellation.
func (e *Executor) Execute(ctx context.Context, name, rawArgs string) (*ToolResult, error) {
	log := logger.Ctx(ctx).With().Str("tool", name).Logger()

	tool, ok := e.registry.Get(name)
	if !ok {
		log.Warn().Msg("model requested unknown tool")
		r := NewErrorResult(NewToolNotFoundError(name).Error())
		return &r, nil
	}

	args, err := ParseArgs(name, rawArgs)
	if err != nil {
		r := NewErrorResult(err.Error())
		return &r, nil
	}
	if err := ValidateArgs(name, tool.Parameters(), args); err != nil {
		log.Debug().Err(err).Msg("tool arguments rejected")
		r := NewErrorResult(err.Error())
		return &r, nil
	}

	key, err := CallKey(name, args)
	if err != nil {
		r := NewErrorResult(NewInvalidArgsError(name, "arguments cannot be keyed", err).Error())
		return &r, nil
	}

	res, err := e.cache.Do(ctx, key, func() (*ToolResult, error) {
		r := e.run(ctx, tool, args)
		return &r, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r := NewErrorResult(NewToolExecutionError(name, err).Error())
		return &r, nil
	}
	if res == nil {
		log.Debug().Msg("skipping duplicate tool call")
	}
	return res, nil
}

// run executes the tool between loading brackets. The stop bracket is
// deferred so it fires on every exit path, panics included.
func (e *Executor) run(ctx context.Context, tool Tool, args map[string]any) (result ToolResult) {
	name := tool.Name()
	attrs := []attribute.KeyValue{attribute.String("tool.name", name)}
	if chatID, ok := ChatIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("chat.id", chatID))
	}
	ctx, span := e.tracer.Start(ctx, "tool."+name, trace.WithAttributes(attrs...))
	defer span.End()

	msg := fmt.Sprintf("Running %s...", name)
	if m, ok := tool.(LoadingMessager); ok {
		msg = m.LoadingMessage(args)
	}
	e.emit(ctx, delta.ToolStart(name, msg))
	defer e.emit(ctx, delta.ToolStop(name))

	defer func() {
		if p := recover(); p != nil {
			logger.Ctx(ctx).Error().Str("tool", name).Interface("panic", p).Msg("tool panicked")
			span.SetStatus(codes.Error, "panic")
			result = NewErrorResult(NewToolExecutionError(name, fmt.Errorf("panic: %v", p)).Error())
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("tool", name).Msg("tool execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NewErrorResult(NewToolExecutionError(name, err).Error())
	}
	if result.IsError {
		span.SetStatus(codes.Error, result.Content)
	}
	return result
}

func (e *Executor) emit(ctx context.Context, d delta.Delta) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.Emit(d); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("delta", string(d.Type())).Msg("tool bracket not delivered")
	}
}
