package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Gateway: 3 * time.Second})
	got := Current()
	if got.Gateway != 3*time.Second {
		t.Errorf("Gateway = %v", got.Gateway)
	}
	if got.Short != DefaultShort || got.Long != DefaultLong {
		t.Errorf("zero fields changed defaults: %+v", got)
	}
}

func TestReset(t *testing.T) {
	Configure(Config{Ping: time.Millisecond, Long: time.Minute})
	Reset()
	if Ping() != DefaultPing || Long() != DefaultLong {
		t.Errorf("Reset did not restore defaults: %+v", Current())
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	defer cancel()
	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("err = %v", ctx.Err())
	}
}
