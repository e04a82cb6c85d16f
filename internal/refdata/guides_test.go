package refdata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegionalGuide(t *testing.T) {
	dir := t.TempDir()
	content := "## Sydney regions\nHarbour crossings are slow at peak."
	if err := os.WriteFile(filepath.Join(dir, "sydney_regions.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(dir)
	if got := s.RegionalGuide("nsw"); got != content {
		t.Errorf("Expected the guide for a lowercase state code, got %q", got)
	}
	if got := s.RegionalGuide("TAS"); got != "" {
		t.Errorf("Expected no guide for an unmapped state, got %q", got)
	}
	// Missing file for a mapped state degrades to empty.
	if got := s.RegionalGuide("VIC"); got != "" {
		t.Errorf("Expected empty when the file is absent, got %q", got)
	}
}

func TestSubcategoryGuide(t *testing.T) {
	dir := t.TempDir()
	content := "Plumbing subcategories: blocked drains, hot water."
	// Only the second candidate file exists; the lookup falls through to it.
	if err := os.WriteFile(filepath.Join(dir, "plumbing_subcategories.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(dir)
	if got := s.SubcategoryGuide("Dans Plumbing Pty Ltd"); got != content {
		t.Errorf("Expected the plumbing guide, got %q", got)
	}
	if got := s.SubcategoryGuide("Acme Accounting"); got != "" {
		t.Errorf("Expected no guide for an unmatched trade, got %q", got)
	}
}
