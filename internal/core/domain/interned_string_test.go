package domain_test

import (
	"encoding/json"
	"testing"

	"go.trai.ch/reactor/internal/core/domain"
)

func TestInternedString(t *testing.T) {
	is1 := domain.NewInternedString("hello")
	is2 := domain.NewInternedString("hello")

	if is1 != is2 {
		t.Errorf("Expected interned strings to be equal, got %v and %v", is1, is2)
	}
	if is1.String() != "hello" {
		t.Errorf("Expected String() to return %q, got %q", "hello", is1.String())
	}
}

func TestInternedString_Zero(t *testing.T) {
	var zero domain.InternedString
	if !zero.IsZero() {
		t.Error("Expected zero value to report IsZero")
	}
	data, err := json.Marshal(zero)
	if err != nil {
		t.Fatalf("Failed to marshal zero InternedString: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("Expected empty JSON string, got %s", data)
	}
}

func TestInternedStringJSON(t *testing.T) {
	original := domain.NewInternedString("com.example")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal InternedString: %v", err)
	}
	if string(data) != `"com.example"` {
		t.Errorf("Expected JSON %q, got %q", `"com.example"`, string(data))
	}

	var decoded domain.InternedString
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal InternedString: %v", err)
	}
	if decoded != original {
		t.Errorf("Expected decoded value to equal original")
	}
}
