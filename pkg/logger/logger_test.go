package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInitWriterAndNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "info"); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	Named("devproxy").Info(context.Background(), "proxying", String("path", "/api/problem/"), Int("status", 200))

	out := buf.String()
	for _, want := range []string{"msg=proxying", "component=devproxy", "path=/api/problem/", "status=200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "warn"); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	defer SetLevelString("info")

	ctx := context.Background()
	Get().Debug(ctx, "hidden debug")
	Get().Info(ctx, "hidden info")
	Get().Error(ctx, "visible", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("unexpected low level record: %q", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Fatalf("missing error record: %q", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	for _, level := range []string{"debug", "INFO", "warning", "error", ""} {
		if err := SetLevelString(level); err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
	}
	_ = SetLevelString("info")
}

func TestNopDiscards(t *testing.T) {
	Nop().Named("x").Warn(context.Background(), "ignored", Any("k", 1))
}
