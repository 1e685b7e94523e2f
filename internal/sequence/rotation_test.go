package sequence

import "testing"

func TestRotationWraps(t *testing.T) {
	r := NewRotation("Stue", "Ute", "Strømpris NO2")
	if k, _ := r.Current(); k != "Stue" {
		t.Fatalf("expected Stue first, got %q", k)
	}
	want := []string{"Ute", "Strømpris NO2", "Stue", "Ute"}
	for i, w := range want {
		if k, ok := r.Advance(); !ok || k != w {
			t.Fatalf("step %d: expected %q, got %q (ok=%v)", i, w, k, ok)
		}
	}
}

func TestRotationEmpty(t *testing.T) {
	r := NewRotation()
	if _, ok := r.Current(); ok {
		t.Fatal("empty rotation has no current key")
	}
	if _, ok := r.Advance(); ok {
		t.Fatal("empty rotation cannot advance")
	}
	r.Sync([]string{"A"})
	if k, ok := r.Advance(); !ok || k != "A" {
		t.Fatalf("single key rotation should stay on A, got %q", k)
	}
}

func TestRotationSyncKeepsCurrent(t *testing.T) {
	r := NewRotation("A", "B", "C")
	r.Advance() // B
	r.Sync([]string{"X", "B"})
	if k, _ := r.Current(); k != "B" {
		t.Fatalf("expected B to stay current, got %q", k)
	}

	r.Advance() // X
	r.Advance() // B
	r.Sync([]string{"P", "Q"})
	if k, _ := r.Current(); k != "Q" {
		t.Fatalf("expected position 1 to be kept, got %q", k)
	}

	r.Sync([]string{"Z"})
	if k, _ := r.Current(); k != "Z" {
		t.Fatalf("expected position to wrap to Z, got %q", k)
	}
}

func TestRotationSeek(t *testing.T) {
	r := NewRotation("A", "B", "C")
	if !r.Seek("C") {
		t.Fatal("expected C to be found")
	}
	if k, _ := r.Advance(); k != "A" {
		t.Fatalf("expected wrap to A, got %q", k)
	}
	if r.Seek("nope") {
		t.Fatal("unknown key must not be found")
	}
}
