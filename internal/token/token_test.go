package token

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate_UniqueAndHyphenFree(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok := Generate()
		if strings.Contains(tok, "-") {
			t.Fatalf("токен содержит дефис: %q", tok)
		}
		if !Valid(tok) {
			t.Fatalf("невалидный токен: %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("повтор токена: %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	if got := Expiry(now, 10*time.Second); !got.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("получили %v", got)
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"":                                  false,
		"abc123":                            false,
		"0123456789abcdef0123456789abcdef":  true,
		"0123456789ABCDEF0123456789ABCDEF":  false,
		"0123456789abcdef-123456789abcdef":  false,
		"0123456789abcdef0123456789abcdef0": false,
	}
	for in, want := range cases {
		if got := Valid(in); got != want {
			t.Errorf("Valid(%q)=%v, ожидали %v", in, got, want)
		}
	}
}
