package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "refresh")
	if FromContext(ctx) != root || root.TraceID == "" {
		t.Fatal("root span not stored in context")
	}
	childCtx, child := Start(ctx, "collect")
	_, grandchild := Start(childCtx, "source")
	grandchild.SetAttr("records", 12)
	grandchild.Fail(errors.New("timeout"))
	grandchild.End()
	child.End()
	root.End()

	if child.TraceID != root.TraceID || grandchild.TraceID != root.TraceID {
		t.Error("children must share the root trace ID")
	}
	if got := root.Children(); len(got) != 1 || got[0] != child {
		t.Errorf("root children = %v", got)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if n := strings.Count(out, "msg=span"); n != 3 {
		t.Errorf("logged %d spans, want 3:\n%s", n, out)
	}
	for _, want := range []string{"span=source", "records=12", "error=timeout", "depth=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestSeparateTraces(t *testing.T) {
	_, a := Start(context.Background(), "a")
	_, b := Start(context.Background(), "b")
	if a.TraceID == b.TraceID {
		t.Error("independent roots share a trace ID")
	}
}
