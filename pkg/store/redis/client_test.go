package redis

import "testing"

func TestKey(t *testing.T) {
	if got := Key("permissions", "42"); got != "pt:permissions:42" {
		t.Fatalf("Key() = %q", got)
	}
	if got := Key("lock"); got != "pt:lock" {
		t.Fatalf("Key() = %q", got)
	}
}
