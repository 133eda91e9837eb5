package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	originalLog := log.Load()
	defer log.Store(originalLog)

	t.Run("Production", func(t *testing.T) {
		Init("production")
		assert.NotNil(t, log.Load())
	})

	t.Run("Development", func(t *testing.T) {
		Init("development")
		assert.NotNil(t, log.Load())
	})

	t.Run("Test quiets info", func(t *testing.T) {
		Init("test")
		assert.False(t, log.Load().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Load().Core().Enabled(zapcore.WarnLevel))
	})
}

func TestL(t *testing.T) {
	originalLog := log.Load()
	defer log.Store(originalLog)

	// Force nil to test lazy initialization
	log.Store(nil)
	t.Setenv("APP_ENV", "test")

	l := L()
	assert.NotNil(t, l)
	assert.Same(t, l, log.Load())
}

func TestReplace(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	replacement := zap.New(core)

	before := L()
	restore := Replace(replacement)
	assert.Same(t, replacement, L())

	restore()
	assert.Same(t, before, L())
}

func TestContextFunctions(t *testing.T) {
	ctx := context.Background()
	reqID := "test-request-id-123"

	t.Run("WithRequestID", func(t *testing.T) {
		newCtx := WithRequestID(ctx, reqID)
		assert.Equal(t, reqID, newCtx.Value(requestIDKey))
	})

	t.Run("RequestIDFrom", func(t *testing.T) {
		assert.Equal(t, reqID, RequestIDFrom(WithRequestID(ctx, reqID)))
		assert.Equal(t, "", RequestIDFrom(ctx))
	})
}

func TestFromCtx(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	t.Run("WithRequestID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-abc-123")

		FromCtx(ctx).Info("test message with id")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		assert.Equal(t, "req-abc-123", logs[0].ContextMap()["request_id"])
	})

	t.Run("WithoutRequestID", func(t *testing.T) {
		FromCtx(context.Background()).Info("test message without id")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		_, ok := logs[0].ContextMap()["request_id"]
		assert.False(t, ok)
	})

	t.Run("Component", func(t *testing.T) {
		Component(context.Background(), "cart").Info("cart loaded")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		assert.Equal(t, "cart", logs[0].ContextMap()["component"])
	})
}

func TestSync(t *testing.T) {
	assert.NotPanics(t, func() {
		Sync()
	})
}
