package name

import "testing"

func TestCanonicalizeShorthand(t *testing.T) {
	cases := map[string]string{
		"echo":      "/_/echo",
		"pkg/echo":  "/_/pkg/echo",
		"/ns/echo":  "/ns/echo",
		"/ns/p/act": "/ns/p/act",
	}
	for in, want := range cases {
		got, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("Canonicalize(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalizeRejectsForbiddenShapes(t *testing.T) {
	for _, in := range []string{"/x", "a/b/c/d", "", "   ", "/ns//act", "a//b"} {
		if _, err := Canonicalize(in); err == nil {
			t.Errorf("Canonicalize(%q): expected error, got none", in)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	for _, in := range []string{"echo", "pkg/echo", "/ns/echo", "/ns/p/act"} {
		once, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", in, err)
		}
		twice, err := Canonicalize(once)
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("Canonicalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNamespaceAndAction(t *testing.T) {
	qualified, err := Canonicalize("pkg/echo")
	if err != nil {
		t.Fatal(err)
	}
	if got := Namespace(qualified); got != DefaultNamespace {
		t.Errorf("Namespace(%q) = %q, want %q", qualified, got, DefaultNamespace)
	}
	if got := Action(qualified); got != "echo" {
		t.Errorf("Action(%q) = %q, want %q", qualified, got, "echo")
	}
}
