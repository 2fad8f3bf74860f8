package mod

import (
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"simple", "sodium", "sodium", false},
		{"with dashes", "fabric-api", "fabric-api", false},
		{"with dots and plus", "mod.menu+extra", "mod.menu+extra", false},
		{"single char", "a", "a", false},
		{"starts with digit", "3dskinlayers", "3dskinlayers", false},
		{"upper case is normalized", "Fabric-API", "fabric-api", false},
		{"surrounding space is trimmed", "  lithium ", "lithium", false},
		{"empty", "", "", true},
		{"only spaces", "   ", "", true},
		{"ends with dash", "sodium-", "", true},
		{"starts with dot", ".sodium", "", true},
		{"inner space", "iris shaders", "", true},
		{"range separator", "sodium@1.0", "", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseID(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMustParseID(t *testing.T) {
	if got := MustParseID("sodium"); got != "sodium" {
		t.Errorf("MustParseID(\"sodium\") = %q", got)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParseID(\"bad id\") should have panicked")
		}
	}()
	MustParseID("bad id")
}
