package review

import (
	"testing"
	"unicode/utf8"
)

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{Severity("unknown"), 0},
	}
	for _, tt := range tests {
		got := SeverityRank(tt.severity)
		if got != tt.want {
			t.Errorf("SeverityRank(%q) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"high", SeverityHigh, true},
		{" Medium ", SeverityMedium, true},
		{"LOW", SeverityLow, true},
		{"critical", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMeetsThreshold(t *testing.T) {
	tests := []struct {
		severity  Severity
		threshold string
		want      bool
	}{
		{SeverityHigh, "none", false},
		{SeverityHigh, "", false},
		{SeverityHigh, "high", true},
		{SeverityHigh, "medium", true},
		{SeverityHigh, "low", true},
		{SeverityMedium, "high", false},
		{SeverityMedium, "medium", true},
		{SeverityMedium, "low", true},
		{SeverityLow, "high", false},
		{SeverityLow, "medium", false},
		{SeverityLow, "low", true},
		{SeverityHigh, "bogus", false},
	}
	for _, tt := range tests {
		got := MeetsThreshold(tt.severity, tt.threshold)
		if got != tt.want {
			t.Errorf("MeetsThreshold(%q, %q) = %v, want %v", tt.severity, tt.threshold, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hardcoded secret detected", "hardcoded secret detected"},
		{"  Hardcoded   SECRET detected! ", "hardcoded secret detected"},
		{"N+1 query pattern", "n 1 query pattern"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindingKey_IgnoresTitleFormatting(t *testing.T) {
	a := Finding{Category: CategorySecurity, Path: "a.py", Line: 3, Title: "Hardcoded secret detected"}
	b := Finding{Category: CategorySecurity, Path: "a.py", Line: 3, Title: "hardcoded secret detected."}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %+v vs %+v", a.Key(), b.Key())
	}
	c := b
	c.Line = 4
	if a.Key() == c.Key() {
		t.Error("keys on different lines should differ")
	}
}

func TestFindingLocation(t *testing.T) {
	if got := (Finding{Path: "a.go", Line: 12}).Location(); got != "a.go:12" {
		t.Errorf("Location = %q", got)
	}
	if got := (Finding{Path: "a.go"}).Location(); got != "a.go" {
		t.Errorf("Location = %q", got)
	}
	if got := (Finding{}).Location(); got != "" {
		t.Errorf("Location = %q", got)
	}
}

func TestImpactFor(t *testing.T) {
	tests := []struct {
		changes int
		want    Impact
	}{
		{0, ImpactLow},
		{50, ImpactLow},
		{51, ImpactMedium},
		{100, ImpactMedium},
		{101, ImpactHigh},
	}
	for _, tt := range tests {
		if got := ImpactFor(tt.changes); got != tt.want {
			t.Errorf("ImpactFor(%d) = %q, want %q", tt.changes, got, tt.want)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if Category("style").Valid() {
		t.Error("style should not be a valid category")
	}
}

func TestComputeSummary(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityLow},
		{Severity: SeverityLow},
	}

	s := ComputeSummary(findings)

	if s.Counts.High != 1 {
		t.Errorf("High count = %d, want 1", s.Counts.High)
	}
	if s.Counts.Medium != 2 {
		t.Errorf("Medium count = %d, want 2", s.Counts.Medium)
	}
	if s.Counts.Low != 3 {
		t.Errorf("Low count = %d, want 3", s.Counts.Low)
	}
	if s.HighestSeverity != SeverityHigh {
		t.Errorf("HighestSeverity = %q, want %q", s.HighestSeverity, SeverityHigh)
	}
}

func TestComputeSummary_Empty(t *testing.T) {
	s := ComputeSummary(nil)
	if s.Counts.High != 0 || s.Counts.Medium != 0 || s.Counts.Low != 0 {
		t.Errorf("Expected all zero counts for empty findings")
	}
	if s.HighestSeverity != "" {
		t.Errorf("HighestSeverity = %q, want empty", s.HighestSeverity)
	}
}

func TestCoveragePartial(t *testing.T) {
	if (Coverage{TotalFiles: 3, AnalyzedFiles: 3}).Partial() {
		t.Error("full coverage reported as partial")
	}
	if !(Coverage{ExcludedFiles: 1}).Partial() {
		t.Error("excluded files should be partial")
	}
	if !(Coverage{Malformed: []string{"a.go"}}).Partial() {
		t.Error("malformed diffs should be partial")
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		got := Clip(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Clip(%q, %d) is not valid UTF-8", tt.in, tt.n)
		}
	}
}
