package clog

import (
	"context"
	"sync"
)

// logContext accumulates attributes over the lifetime of a request so the
// final access log line carries everything handlers attached along the way.
type logContext struct {
	mu         sync.RWMutex
	attributes map[string]any
}

type logContextKey struct{}

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, logContextKey{}, &logContext{
		attributes: make(map[string]any),
	})
}

func AddAttribute(ctx context.Context, key string, value any) {
	lc, ok := ctx.Value(logContextKey{}).(*logContext)
	if !ok {
		return
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.attributes[key] = value
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	lc, ok := ctx.Value(logContextKey{}).(*logContext)
	if !ok {
		return
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for k, v := range attributes {
		lc.attributes[k] = v
	}
}

func GetAttributes(ctx context.Context) map[string]any {
	lc, ok := ctx.Value(logContextKey{}).(*logContext)
	if !ok {
		return nil
	}
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	copied := make(map[string]any, len(lc.attributes))
	for k, v := range lc.attributes {
		copied[k] = v
	}
	return copied
}

func GetAttribute[T any](ctx context.Context, key string) T {
	lc, ok := ctx.Value(logContextKey{}).(*logContext)
	if !ok {
		return *new(T)
	}
	lc.mu.RLock()
	v, ok := lc.attributes[key]
	lc.mu.RUnlock()
	if !ok {
		return *new(T)
	}
	typed, ok := v.(T)
	if !ok {
		return *new(T)
	}
	return typed
}

const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
