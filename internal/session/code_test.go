package session

import (
	"testing"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

func TestCodeRoundTrip(t *testing.T) {
	s := models.Session{ID: 42, QRToken: "0123456789abcdef0123456789abcdef"}
	code := Code(s)
	if code != "42-0123456789abcdef0123456789abcdef" {
		t.Fatalf("код: %q", code)
	}
	id, tok, err := ParseCode(code)
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 || tok != s.QRToken {
		t.Fatalf("получили %d %q", id, tok)
	}
}

func TestParseCode_SplitsOnFirstHyphen(t *testing.T) {
	id, tok, err := ParseCode(" 5-ab-cd ")
	if err != nil {
		t.Fatal(err)
	}
	if id != 5 || tok != "ab-cd" {
		t.Fatalf("получили %d %q", id, tok)
	}
}

func TestParseCode_Malformed(t *testing.T) {
	for _, code := range []string{"", "abc", "5-", "-tok", "x-tok", "0-tok", "-3-tok", "12 tok"} {
		if _, _, err := ParseCode(code); apperr.KindOf(err) != apperr.MalformedCode {
			t.Errorf("%q: ожидали MalformedCode, получили %v", code, err)
		}
	}
}
