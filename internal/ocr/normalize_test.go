package ocr

import "testing"

func TestNormalize(t *testing.T) {
	in := "Last  Name:\tDoe   \r\n-----\r\nSTUDENT ID: S0123\n\n"
	want := "Last Name: Doe\n\nSTUDENT ID: S0123"
	if got := Normalize(in); got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestDedupeLinesKeepsFirstSeenOrder(t *testing.T) {
	got := DedupeLines("b\na\n", " a \nc", "", "b\nd")
	if got != "b\na\nc\nd" {
		t.Fatalf("DedupeLines = %q", got)
	}
	if DedupeLines("", "  \n ") != "" {
		t.Fatalf("blank outputs should dedupe to empty text")
	}
}
