package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestMessage(t *testing.T) {
	cases := map[string]string{
		"  hello  ":    "hello",
		"   ":          "",
		"<b>hi</b>":    "hi",
		"fish & chips": "fish &amp; chips",
		"a < b":        "a &lt; b",
	}
	for in, want := range cases {
		if got := Message(in); got != want {
			t.Errorf("Message(%q) = %q, want %q", in, got, want)
		}
	}

	if got := Message("<script>alert(1)</script>"); got != "" {
		t.Errorf("markup-only message should be empty, got %q", got)
	}

	long := strings.Repeat("ü", MaxMessageLength+10)
	if n := utf8.RuneCountInString(Message(long)); n != MaxMessageLength {
		t.Fatalf("expected truncation to %d runes, got %d", MaxMessageLength, n)
	}
}
