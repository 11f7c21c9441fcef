package fuzzy

import (
	"testing"
)

func TestNew(t *testing.T) {
	finder := New("Select organization:")

	if finder == nil {
		t.Fatal("New should return a non-nil finder")
	}

	if finder.prompt != "Select organization:" {
		t.Errorf("Expected prompt 'Select organization:', got '%s'", finder.prompt)
	}

	if len(finder.options) != 0 {
		t.Errorf("Expected 0 options, got %d", len(finder.options))
	}
}

func TestAddOption(t *testing.T) {
	finder := New("Select organization:")

	finder.AddOption("eclipse-csi", "Eclipse CSI")
	finder.AddOption("adoptium", "Eclipse Adoptium")

	if len(finder.options) != 2 {
		t.Fatalf("Expected 2 options, got %d", len(finder.options))
	}

	if finder.options[0].Value != "eclipse-csi" {
		t.Errorf("Expected first option value 'eclipse-csi', got '%s'", finder.options[0].Value)
	}

	if finder.options[0].Description != "Eclipse CSI" {
		t.Errorf("Expected first option description 'Eclipse CSI', got '%s'", finder.options[0].Description)
	}

	if finder.options[1].Value != "adoptium" {
		t.Errorf("Expected second option value 'adoptium', got '%s'", finder.options[1].Value)
	}
}

func TestFilterOptions(t *testing.T) {
	finder := New("Select organization:")

	finder.AddOption("eclipse-csi", "Eclipse CSI project")
	finder.AddOption("adoptium", "Eclipse Adoptium working group")
	finder.AddOption("otterdog-demo", "Demo organization")

	// Filter by value
	filtered := finder.filterOptions("csi")
	if len(filtered) != 1 {
		t.Errorf("Expected 1 filtered option for 'csi', got %d", len(filtered))
	}
	if len(filtered) > 0 && filtered[0].Value != "eclipse-csi" {
		t.Errorf("Expected filtered option 'eclipse-csi', got '%s'", filtered[0].Value)
	}

	// Filter by description
	filtered = finder.filterOptions("working group")
	if len(filtered) != 1 {
		t.Errorf("Expected 1 filtered option for 'working group', got %d", len(filtered))
	}
	if len(filtered) > 0 && filtered[0].Value != "adoptium" {
		t.Errorf("Expected filtered option 'adoptium', got '%s'", filtered[0].Value)
	}

	// Filter matching multiple options
	filtered = finder.filterOptions("eclipse")
	if len(filtered) != 2 {
		t.Errorf("Expected 2 filtered options for 'eclipse', got %d", len(filtered))
	}

	// Filter matching nothing
	filtered = finder.filterOptions("nonexistent")
	if len(filtered) != 0 {
		t.Errorf("Expected 0 filtered options for 'nonexistent', got %d", len(filtered))
	}

	// Case insensitive
	filtered = finder.filterOptions("ADOPTIUM")
	if len(filtered) != 1 {
		t.Errorf("Expected 1 filtered option for 'ADOPTIUM', got %d", len(filtered))
	}
}

func TestSelectWithNoOptions(t *testing.T) {
	finder := New("Select organization:")

	if _, err := finder.Select(); err == nil {
		t.Error("Select should return an error when no options are available")
	}

	if _, err := finder.SelectWithFilter(); err == nil {
		t.Error("SelectWithFilter should return an error when no options are available")
	}
}

func TestIsInteractiveDumbTerminal(t *testing.T) {
	t.Setenv("TERM", "dumb")

	if IsInteractive() {
		t.Error("IsInteractive should be false for a dumb terminal")
	}
}
