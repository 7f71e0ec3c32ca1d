package socketio

import "testing"

func TestCorsOrigin(t *testing.T) {
	if got := corsOrigin(nil); got != "*" {
		t.Errorf("no origins should allow any, got %v", got)
	}
	if got := corsOrigin([]string{"https://a.example", "*"}); got != "*" {
		t.Errorf("wildcard should allow any, got %v", got)
	}

	got, ok := corsOrigin([]string{"https://a.example/", "http://localhost:5173"}).([]any)
	if !ok || len(got) != 2 {
		t.Fatalf("expected an origin list, got %v", got)
	}
	if got[0] != "https://a.example" || got[1] != "http://localhost:5173" {
		t.Errorf("unexpected origins %v", got)
	}
}
