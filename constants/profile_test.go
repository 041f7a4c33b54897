package constants

import (
	"reflect"
	"testing"
)

func TestParseProfiles(t *testing.T) {
	got, unknown := ParseProfiles("Sparse, 4, block, col, 99,")
	want := []Profile{ProfileSparse, ProfileColumn, ProfileBlock}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("profiles = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(unknown, []string{"99"}) {
		t.Fatalf("unknown = %v", unknown)
	}
	if ProfileSparse.PSM() != 11 || ProfileColumn.PSM() != 4 || ProfileBlock.PSM() != 6 {
		t.Fatal("unexpected psm mapping")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskStatusQueued, TaskStatusProcessing, true},
		{TaskStatusQueued, TaskStatusFailed, true},
		{TaskStatusQueued, TaskStatusCompleted, false},
		{TaskStatusProcessing, TaskStatusCompleted, true},
		{TaskStatusProcessing, TaskStatusQueued, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusProcessing, false},
		{TaskStatusQueued, TaskStatus("paused"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestIsAllowedFilename(t *testing.T) {
	for name, want := range map[string]bool{
		"card.png":  true,
		"CARD.JPEG": true,
		"scan.gif":  true,
		"doc.pdf":   false,
		"noext":     false,
		"":          false,
	} {
		if got := IsAllowedFilename(name); got != want {
			t.Errorf("IsAllowedFilename(%q) = %v, want %v", name, got, want)
		}
	}
}
