package noteid

import (
	"strings"
	"testing"
)

func TestForPath_Stable(t *testing.T) {
	a := ForPath("/home/user/notes/journal.md")
	b := ForPath("/home/user/notes/journal.md")
	if a != b {
		t.Error("same path must yield the same ID")
	}
	if !strings.HasPrefix(a, "file:") {
		t.Errorf("ID = %q, want file: prefix", a)
	}
}

func TestForPath_NormalizesPath(t *testing.T) {
	clean := ForPath("/home/user/notes/journal.md")
	dotted := ForPath("/home/user/./notes/../notes/journal.md")
	if clean != dotted {
		t.Error("equivalent paths must yield the same ID")
	}
}

func TestForPath_DistinctPaths(t *testing.T) {
	if ForPath("/a/x.md") == ForPath("/a/y.md") {
		t.Error("different paths must yield different IDs")
	}
}
