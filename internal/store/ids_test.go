package store

import (
	"strings"
	"testing"
)

func TestNewID_PrefixedAndShort(t *testing.T) {
	for _, prefix := range []string{prefixSeries, prefixImage, prefixJob} {
		id := newID(prefix)
		if !strings.HasPrefix(id, prefix+"-") {
			t.Fatalf("expected %s prefix, got %q", prefix, id)
		}
		suffix := strings.TrimPrefix(id, prefix+"-")
		if got, want := len(suffix), 12; got != want {
			t.Fatalf("expected id suffix len %d, got %d (%q)", want, got, suffix)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := newID(prefixImage)
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
