package logger

import (
	"strings"
	"testing"
)

func TestContextCarriers(t *testing.T) {
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithHandler(ctx, "start")

	if rid := RIDFrom(ctx); rid != "rid-123" {
		t.Fatalf("rid = %q", rid)
	}
	if id := UpdateIDFrom(ctx); id != 42 {
		t.Fatalf("update_id = %d", id)
	}
	if id := UserIDFrom(ctx); id != 7 {
		t.Fatalf("user_id = %d", id)
	}
	if id := ChatIDFrom(ctx); id != 9 {
		t.Fatalf("chat_id = %d", id)
	}
	if h := HandlerFrom(ctx); h != "start" {
		t.Fatalf("handler = %q", h)
	}
}

func TestContextCarriersEmpty(t *testing.T) {
	ctx := Background()
	if RIDFrom(ctx) != "" || UpdateIDFrom(ctx) != 0 || UserIDFrom(ctx) != 0 || ChatIDFrom(ctx) != 0 {
		t.Fatal("expected zero values from bare context")
	}
}

func TestBuildRID(t *testing.T) {
	a := BuildRID(42, 9, 7)
	b := BuildRID(42, 9, 7)
	if a != b {
		t.Fatalf("rid not deterministic: %q vs %q", a, b)
	}
	if a == BuildRID(43, 9, 7) {
		t.Fatal("distinct updates share a rid")
	}
}

func TestSanitize(t *testing.T) {
	in := "ok\x00\x08\x7ftext\nnext\ttab"
	out := Sanitize(in)
	if strings.ContainsAny(out, "\x00\x08\x7f") {
		t.Fatalf("control characters survived: %q", out)
	}
	// Tab and newline are kept.
	if !strings.Contains(out, "\n") || !strings.Contains(out, "\t") {
		t.Fatalf("whitespace stripped: %q", out)
	}
}

func TestSanitizeLimit(t *testing.T) {
	long := strings.Repeat("x", 100)
	if got := SanitizeLimit(long, 10); len([]rune(got)) != 10 {
		t.Fatalf("limit not applied: %d runes", len([]rune(got)))
	}
	if got := SanitizeLimit("short", 0); got != "" {
		t.Fatalf("expected empty for zero limit, got %q", got)
	}
}
