package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestFromContextPrefersContextLogger(t *testing.T) {
	var ctxBuf, fallbackBuf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), New(&ctxBuf, false))
	FromContext(ctx, New(&fallbackBuf, false)).Info("hello", "k", "v")
	if !strings.Contains(ctxBuf.String(), "hello") || fallbackBuf.Len() != 0 {
		t.Fatalf("expected context logger to be used, ctx=%q fallback=%q", ctxBuf.String(), fallbackBuf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	var buf bytes.Buffer
	FromContext(context.Background(), New(&buf, true)).Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Fatalf("expected verbose fallback logger to emit debug, got %q", buf.String())
	}
}
