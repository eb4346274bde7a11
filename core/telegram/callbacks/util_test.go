package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		unique  string
		payload string
	}{
		{"unique with payload", "\\fapprove|ORD-7-1", "approve", "ORD-7-1"},
		{"form feed prefix", "\fapprove|ORD-7-1", "approve", "ORD-7-1"},
		{"unique only", "\\fpackage", "package", ""},
		{"no prefix", "reject|ORD-9", "reject", "ORD-9"},
		{"empty", "", "", ""},
		{"payload with separator", "\\fpkg|a|b", "pkg", "a|b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unique, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
			if unique != tc.unique {
				t.Fatalf("unique = %q, want %q", unique, tc.unique)
			}
			if payload != tc.payload {
				t.Fatalf("payload = %q, want %q", payload, tc.payload)
			}
		})
	}
}

func TestParseCallbackDataNil(t *testing.T) {
	unique, payload := ParseCallbackData(nil)
	if unique != "" || payload != "" {
		t.Fatalf("expected empty results, got %q %q", unique, payload)
	}
}
