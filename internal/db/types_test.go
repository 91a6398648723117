package db

import (
	"testing"
	"time"
)

// =============================================================================
// Helper Function Tests
// =============================================================================

func TestHashURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string // SHA-256 of the trimmed URL
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello", "hello", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"trimmed", "  hello  ", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HashURL(tt.url)
			if result != tt.expected {
				t.Errorf("HashURL(%q) = %q, want %q", tt.url, result, tt.expected)
			}
		})
	}

	// Same input should give same hash
	hash1 := HashURL("https://example.com/jobs/123")
	hash2 := HashURL("https://example.com/jobs/123")
	if hash1 != hash2 {
		t.Error("Same URL should produce same hash")
	}
}

func TestParsePostedDate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		parsed bool
	}{
		{"empty", "", false},
		{"relative phrase", "2 hours ago", false},
		{"iso date", "2026-01-15", true},
		{"rfc3339", "2026-01-15T10:30:00Z", true},
		{"long form", "January 15, 2026", true},
		{"short form", "Jan 2, 2026", true},
		{"garbage", "posted recently", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParsePostedDate(tt.text)
			if (result != nil) != tt.parsed {
				t.Errorf("ParsePostedDate(%q) parsed = %v, want %v", tt.text, result != nil, tt.parsed)
			}
		})
	}

	result := ParsePostedDate("2026-01-15")
	if result == nil || result.Year() != 2026 || result.Month() != time.January || result.Day() != 15 {
		t.Errorf("ParsePostedDate(2026-01-15) = %v, want 2026-01-15", result)
	}
}

func TestVectorLiteral(t *testing.T) {
	tests := []struct {
		name     string
		vector   []float32
		expected string
	}{
		{"single", []float32{1}, "[1]"},
		{"multiple", []float32{0.5, -1, 2}, "[0.5,-1,2]"},
		{"empty", nil, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VectorLiteral(tt.vector)
			if result != tt.expected {
				t.Errorf("VectorLiteral(%v) = %q, want %q", tt.vector, result, tt.expected)
			}
		})
	}
}

// =============================================================================
// DiscoveredJob Method Tests
// =============================================================================

func TestDiscoveredJob_IsEligible(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		status      string
		processedAt *time.Time
		expected    bool
	}{
		{"pending", StatusPending, nil, true},
		{"queued", StatusQueued, nil, true},
		{"processing", StatusProcessing, nil, false},
		{"completed", StatusCompleted, &now, false},
		{"failed", StatusFailed, nil, false},
		{"pending but processed", StatusPending, &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DiscoveredJob{ProcessingStatus: tt.status, ProcessedAt: tt.processedAt}
			if result := d.IsEligible(); result != tt.expected {
				t.Errorf("IsEligible() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDiscoveredJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{StatusPending, false},
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d := &DiscoveredJob{ProcessingStatus: tt.status}
			if result := d.IsTerminal(); result != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", result, tt.expected)
			}
		})
	}
}
