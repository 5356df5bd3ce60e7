package chapters

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/listenupapp/listenup-player/internal/domain"
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^track\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+\d+$`),
	regexp.MustCompile(`(?i)^part\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^\d+\.\s*$`),
	regexp.MustCompile(`^\d+\s*-\s*$`),
}

// AnalysisResult contains chapter title statistics.
type AnalysisResult struct {
	Total          int     `json:"total"`
	GenericCount   int     `json:"generic_count"`
	GenericPercent float64 `json:"generic_percent"`
}

// IsGenericName returns true if the chapter name is a placeholder.
func IsGenericName(name string) bool {
	name = strings.TrimSpace(name)

	// Empty or whitespace-only
	if name == "" {
		return true
	}

	for _, pattern := range genericPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}

	return false
}

// DisplayTitle returns the title shown for a chapter.
// Placeholder titles from rippers ("Track 03", "7.") become "Chapter N".
func DisplayTitle(c domain.Chapter) string {
	if IsGenericName(c.Title) {
		return "Chapter " + strconv.Itoa(c.Number)
	}
	return strings.TrimSpace(c.Title)
}

// Analyze returns statistics about the chapter names.
func Analyze(chapters []domain.Chapter) AnalysisResult {
	if len(chapters) == 0 {
		return AnalysisResult{}
	}

	generic := 0
	for _, ch := range chapters {
		if IsGenericName(ch.Title) {
			generic++
		}
	}

	return AnalysisResult{
		Total:          len(chapters),
		GenericCount:   generic,
		GenericPercent: float64(generic) / float64(len(chapters)),
	}
}
