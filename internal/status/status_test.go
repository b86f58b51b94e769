package status

import "testing"

func TestNameAndMessageForKnownCodes(t *testing.T) {
	if Name(int(NoSuchElement)) != "NoSuchElement" {
		t.Fatalf("Name(7) = %q", Name(int(NoSuchElement)))
	}
	if Message(int(Success)) == "" {
		t.Fatal("expected a non-empty message for Success")
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	if Name(9999) != "" {
		t.Fatalf("Name(9999) = %q, want empty", Name(9999))
	}
	if Message(9999) == "" {
		t.Fatal("expected a fallback message for an unrecognized code")
	}
}
