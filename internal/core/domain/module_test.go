package domain_test

import (
	"testing"

	"go.trai.ch/reactor/internal/core/domain"
)

func TestParseModuleDependency(t *testing.T) {
	tests := []struct {
		in      string
		version string
		wantErr bool
	}{
		{in: "g:a", version: domain.VersionNone},
		{in: "g:a:1.2", version: "1.2"},
		{in: "g:a:${revision}", version: domain.VersionUnknown},
		{in: "g", wantErr: true},
		{in: ":a", wantErr: true},
		{in: "g:a:1:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dep, err := domain.ParseModuleDependency(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dep.Version != tt.version {
				t.Errorf("expected version %q, got %q", tt.version, dep.Version)
			}
		})
	}
}

func TestModuleDependency_Matches(t *testing.T) {
	name := domain.NewModuleName("g", "a")
	pinned := domain.ModuleDependency{Name: name, Version: "1.0"}
	if !pinned.Matches(name, "1.0") {
		t.Error("expected exact version to match")
	}
	if pinned.Matches(name, "2.0") {
		t.Error("expected different version not to match")
	}
	if pinned.Matches(domain.NewModuleName("g", "b"), "1.0") {
		t.Error("expected different module not to match")
	}

	unknown := domain.ModuleDependency{Name: name, Version: domain.VersionUnknown}
	if !unknown.Matches(name, "7.3") {
		t.Error("expected unknown version to match any version")
	}
}

func TestModuleName_TextAndEquality(t *testing.T) {
	parsed, err := domain.ParseModuleName("com.example:core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != domain.NewModuleName("com.example", "core") {
		t.Error("expected parsed and constructed names to be equal")
	}
	if parsed.FileName() != "com.example$core" {
		t.Errorf("unexpected file name %q", parsed.FileName())
	}
}

func TestFingerprint_Key(t *testing.T) {
	a := domain.Fingerprint{ToolHome: "/opt/tool", ToolOptions: "-x"}
	b := domain.Fingerprint{ToolHome: "/opt/tool", ToolOptions: "-x"}
	c := domain.Fingerprint{ToolHome: "/opt/tool-x", ToolOptions: ""}

	if a != b || a.Key() != b.Key() {
		t.Error("expected equal fingerprints to share a key")
	}
	if a.Key() == c.Key() {
		t.Error("expected field boundaries to affect the key")
	}
}
