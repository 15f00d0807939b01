package object

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExportKey(t *testing.T) {
	at := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
	key, err := ExportKey("user-1", "resume-1", at)
	if err != nil {
		t.Fatalf("ExportKey: %v", err)
	}
	if strings.Contains(key, "user-1") {
		t.Fatalf("key leaks user id: %s", key)
	}
	if !strings.HasSuffix(key, "/resume-1/20260304T050607.000Z.pdf") {
		t.Fatalf("unexpected key %s", key)
	}
	prefix := strings.SplitN(key, "/", 2)[0]
	if len(prefix) != 32 || prefix != ownerPrefix("user-1") {
		t.Fatalf("unexpected owner prefix %q", prefix)
	}
	if ownerPrefix("user-2") == prefix {
		t.Fatalf("owners must not share a prefix")
	}
}

func TestExportKeyRejectsTraversal(t *testing.T) {
	if _, err := ExportKey("user-1", "../other", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCleanKey(t *testing.T) {
	got, err := CleanKey("/a//b/c.pdf")
	if err != nil {
		t.Fatalf("CleanKey: %v", err)
	}
	if got != "a/b/c.pdf" {
		t.Fatalf("got %q", got)
	}
	for _, bad := range []string{"", "../x", "a/../../x", "/"} {
		if _, err := CleanKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", bad, err)
		}
	}
}
