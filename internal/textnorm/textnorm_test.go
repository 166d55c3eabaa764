package textnorm

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Pizza", "pizza"},
		{"  Hello   World  ", "hello world"},
		{"CAFÉ", "café"},
		{"Free\tPizza\nTonight", "free pizza tonight"},
		{"ＦＵＬＬＷＩＤＴＨ", "fullwidth"}, // NFKC folds fullwidth forms
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"CAFÉ  au   Lait", "Pizza Night!", "ｈｅｌｌｏ", "already normal"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent on %q: %q != %q", in, once, twice)
		}
	}
}

func TestDedupeKey(t *testing.T) {
	a := DedupeKey("Pizza Night", "2025-09-19", "19:00", "Common Room")
	b := DedupeKey("  PIZZA   night ", "2025-09-19", "19:00", "common ROOM")
	if a != b {
		t.Errorf("equivalent events produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key is not a sha256 hex digest: %q", a)
	}

	c := DedupeKey("Pizza Night", "2025-09-20", "19:00", "Common Room")
	if a == c {
		t.Error("different dates produced the same key")
	}
}

func TestCacheKey(t *testing.T) {
	k1 := CacheKey("msg-1", "hello world")
	k2 := CacheKey("msg-1", "hello world, edited")
	if k1 == k2 {
		t.Error("different bodies under one message id should produce different cache keys")
	}
	if !strings.HasPrefix(k1, "msg-1_") {
		t.Errorf("cache key should start with the message id: %q", k1)
	}
	// message id + separator + 8 bytes of hash as hex
	if len(k1) != len("msg-1_")+16 {
		t.Errorf("unexpected cache key length: %q", k1)
	}
}
