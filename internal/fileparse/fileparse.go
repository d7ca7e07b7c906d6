// Package fileparse validates uploaded review files and extracts the
// review texts they contain. Supported formats are CSV, TXT and JSON.
package fileparse

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sentiq/sentiq-api/internal/domain"
)

// Extensions accepted for batch uploads, without the leading dot.
var supportedExtensions = map[string]struct{}{
	"csv":  {},
	"txt":  {},
	"json": {},
}

// Limits applied during content validation.
const (
	maxCSVLineLength  = 5000
	maxCSVFieldLength = 10000
	maxCSVColumns     = 100
	maxTextLineLength = 50 * 1000 * 1000
)

// forbiddenPatterns are substrings rejected anywhere in submitted content:
// script injection vectors, event-handler attributes, and SQL keywords.
var forbiddenPatterns = []string{
	"<script", "javascript:", "vbscript:", "onload=", "onerror=",
	"eval(", "exec(", "system(", "shell_exec(", "passthru(",
	"drop table", "delete from", "insert into", "update set",
}

// SupportedExtension reports whether the extension (without dot,
// case-insensitive) is one the system analyzes.
func SupportedExtension(ext string) bool {
	_, ok := supportedExtensions[strings.ToLower(ext)]
	return ok
}

// Extension extracts the lowercase extension from a filename, without the
// leading dot. Returns "" when the filename has none.
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// FindForbiddenPattern returns the first forbidden substring found in the
// text, or "" when the text is clean. Matching is case-insensitive.
func FindForbiddenPattern(text string) string {
	lower := strings.ToLower(text)
	for _, pattern := range forbiddenPatterns {
		if strings.Contains(lower, pattern) {
			return pattern
		}
	}
	return ""
}

// Validate checks uploaded content before a task is accepted: UTF-8
// encoding, no null bytes, no forbidden patterns, and format-specific
// shape rules. Returns errors wrapping domain.ErrValidation with enough
// detail for the caller to self-correct.
func Validate(content []byte, ext string) error {
	if len(strings.TrimSpace(string(content))) == 0 {
		return fmt.Errorf("%w: file cannot be empty", domain.ErrValidation)
	}

	if !utf8.Valid(content) {
		return fmt.Errorf("%w: file must be valid UTF-8 text", domain.ErrValidation)
	}

	text := string(content)
	if strings.ContainsRune(text, 0) {
		return fmt.Errorf("%w: file contains null bytes", domain.ErrValidation)
	}

	if pattern := FindForbiddenPattern(text); pattern != "" {
		return fmt.Errorf("%w: file contains forbidden content: %q", domain.ErrValidation, pattern)
	}

	ext = strings.ToLower(ext)
	isCSV := ext == "csv"

	for i, line := range strings.Split(text, "\n") {
		if isCSV && len(line) > maxCSVLineLength {
			return fmt.Errorf("%w: CSV line %d is too long (%d characters)",
				domain.ErrValidation, i+1, len(line))
		}
		if !isCSV && len(line) >= maxTextLineLength {
			return fmt.Errorf("%w: line %d is too long (%d characters)",
				domain.ErrValidation, i+1, len(line))
		}
	}

	switch ext {
	case "csv":
		return validateCSV(text)
	case "json":
		return validateJSON(text)
	default:
		return nil
	}
}

// validateCSV enforces shape rules that make a file safely parseable:
// balanced quoting, consistent column counts, and bounded field sizes.
func validateCSV(content string) error {
	if strings.Count(content, `"`)%2 != 0 {
		return fmt.Errorf("%w: CSV contains unclosed quotes", domain.ErrValidation)
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: invalid CSV format: %v", domain.ErrValidation, err)
	}

	if len(rows) == 0 {
		return fmt.Errorf("%w: CSV file has no content", domain.ErrValidation)
	}

	expectedCols := len(rows[0])
	if expectedCols > maxCSVColumns {
		return fmt.Errorf("%w: CSV file has too many columns (%d)",
			domain.ErrValidation, expectedCols)
	}

	for i, row := range rows {
		if len(row) != expectedCols {
			return fmt.Errorf("%w: CSV row %d has %d columns, expected %d",
				domain.ErrValidation, i+1, len(row), expectedCols)
		}
		for j, field := range row {
			if len(field) > maxCSVFieldLength {
				return fmt.Errorf("%w: CSV field in row %d, column %d is too long",
					domain.ErrValidation, i+1, j+1)
			}
		}
	}

	return nil
}

// validateJSON checks the content parses as JSON at all. Shape checks
// happen at parse time.
func validateJSON(content string) error {
	if !json.Valid([]byte(content)) {
		return fmt.Errorf("%w: invalid JSON format", domain.ErrValidation)
	}
	return nil
}

// Parse extracts the review texts from validated content. CSV files are
// read first-column-first with a heuristic header skip; TXT files yield
// one review per non-empty line; JSON files accept an array of strings or
// an array of objects with a "text" field.
func Parse(content []byte, ext string) ([]string, error) {
	switch strings.ToLower(ext) {
	case "csv":
		return parseCSV(string(content))
	case "txt":
		return parseTXT(string(content)), nil
	case "json":
		return parseJSON(content)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

func parseCSV(content string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CSV format: %v", domain.ErrValidation, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: CSV file has no content", domain.ErrValidation)
	}

	start := 0
	if len(rows) > 1 && looksLikeHeader(rows[0][0]) {
		start = 1
	}

	texts := make([]string, 0, len(rows))
	for _, row := range rows[start:] {
		if len(row) == 0 {
			continue
		}
		if text := strings.TrimSpace(row[0]); text != "" {
			texts = append(texts, text)
		}
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no review texts found in CSV", domain.ErrValidation)
	}
	return texts, nil
}

func parseTXT(content string) []string {
	var texts []string
	for _, line := range strings.Split(content, "\n") {
		if text := strings.TrimSpace(line); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func parseJSON(content []byte) ([]string, error) {
	// Array of plain strings first.
	var asStrings []string
	if err := json.Unmarshal(content, &asStrings); err == nil {
		texts := make([]string, 0, len(asStrings))
		for _, text := range asStrings {
			if text = strings.TrimSpace(text); text != "" {
				texts = append(texts, text)
			}
		}
		if len(texts) == 0 {
			return nil, fmt.Errorf("%w: no review texts found in JSON", domain.ErrValidation)
		}
		return texts, nil
	}

	// Otherwise an array of objects carrying a "text" field.
	var asObjects []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &asObjects); err != nil {
		return nil, fmt.Errorf("%w: JSON must be an array of strings or objects with a text field",
			domain.ErrValidation)
	}

	texts := make([]string, 0, len(asObjects))
	for _, obj := range asObjects {
		if text := strings.TrimSpace(obj.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no review texts found in JSON", domain.ErrValidation)
	}
	return texts, nil
}

// looksLikeHeader guesses whether the first CSV cell is a column label
// rather than review data: short, single token, no digits.
func looksLikeHeader(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" || len(cell) > 30 {
		return false
	}
	if strings.ContainsAny(cell, "0123456789") {
		return false
	}
	return !strings.Contains(cell, " ")
}

// IsValidationError reports whether err stems from content validation as
// opposed to format or size problems.
func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}
