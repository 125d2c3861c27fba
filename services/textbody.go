package services

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"editorial-desk/models"
)

var (
	blockBreakRE   = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/h[1-6]|/li|/tr)\s*>`)
	listItemRE     = regexp.MustCompile(`(?i)<\s*li[^>]*>`)
	anchorRE       = regexp.MustCompile(`(?is)<a\s[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	tagRE          = regexp.MustCompile(`(?s)<[^>]*>`)
	horizontalWSRE = regexp.MustCompile("[ \t\f\v\u00A0]+")
	multiNewlineRE = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText derives the plain-text alternative of an HTML mail body.
func HTMLToText(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	// markup line breaks are the only ones that count
	s = strings.ReplaceAll(s, "\n", " ")
	s = anchorRE.ReplaceAllStringFunc(s, func(m string) string {
		parts := anchorRE.FindStringSubmatch(m)
		label := strings.TrimSpace(tagRE.ReplaceAllString(parts[2], ""))
		if label == "" || label == parts[1] {
			return parts[1]
		}
		return label + " (" + parts[1] + ")"
	})
	s = listItemRE.ReplaceAllString(s, "- ")
	s = blockBreakRE.ReplaceAllString(s, "\n")
	s = tagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = normalizeUnicode(s)
	return collapseWhitespace(s)
}

func normalizeUnicode(s string) string {
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		return s
	}
	return normalized
}

func collapseWhitespace(s string) string {
	s = horizontalWSRE.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimFunc(lines[i], unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlineRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// humanize turns an enum value like DESK_REJECT into "Desk Reject".
func humanize(raw string) string {
	// Casers are stateful, one per call
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(raw), "_", " "))
}

// StatusLabel renders a status for people.
func StatusLabel(s models.SubmissionStatus) string {
	return humanize(string(s))
}

// DeadlineTypeLabel renders a deadline type for people.
func DeadlineTypeLabel(t models.DeadlineType) string {
	return humanize(string(t))
}

// DaysLeft is the number of whole days until due, never negative.
func DaysLeft(due, now time.Time) int {
	if !due.After(now) {
		return 0
	}
	return int(due.Sub(now) / (24 * time.Hour))
}

// DaysLeftLabel renders a day count: "due today", "1 day left", "3 days left".
func DaysLeftLabel(days int) string {
	switch {
	case days <= 0:
		return "due today"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2 Jan 2006")
}
