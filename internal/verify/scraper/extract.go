package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"afmcheck/internal/verify/models"
)

// Ordered marker and selector lists. Order matters: first match wins, so the
// most specific entries come first and generic catch-alls last.
var (
	// blockMarkers flag CAPTCHA or bot-detection interstitials. Matched
	// case-insensitively against visible page text.
	blockMarkers = []string{
		"captcha",
		"recaptcha",
		"δεν είστε ρομπότ",
		"επιβεβαιώστε ότι είστε άνθρωπος",
		"access denied",
		"unusual traffic",
		"checking your browser",
	}

	// noResultsMarkers are the registry's locale-specific empty-result
	// phrases, with and without accents since the page is inconsistent.
	noResultsMarkers = []string{
		"δεν βρέθηκαν αποτελέσματα",
		"δεν βρεθηκαν αποτελεσματα",
		"δεν βρέθηκαν εγγραφές",
		"καμία εγγραφή",
		"no results found",
		"no records",
	}

	// resultRowSelectors locate result rows across the page layouts the
	// registry has shipped so far.
	resultRowSelectors = []string{
		"table tbody tr",
		"table tr",
		".results .result-item",
		".search-results .row",
		".card",
	}

	// Uppercase Greek drops accents when lowercased, so both spellings
	// appear here.
	activeKeywords   = []string{"ενεργή", "ενεργη", "ενεργός", "ενεργος", "εν ενεργεία", "active"}
	inactiveKeywords = []string{"ανενεργ", "διακοπή", "διακοπη", "διαγραφή", "διαγραφη", "λύθηκε", "λυθηκε", "εκκαθάριση", "εκκαθαριση", "inactive", "dissolved", "closed"}
)

// taxOfficePattern captures the labelled tax-office (ΔΟΥ) value up to the end
// of the line.
var taxOfficePattern = regexp.MustCompile(`(?i)Δ\.?\s?Ο\.?\s?Υ\.?\s*[:.]?\s*([^\n\r,]+)`)

// findings is what extraction recovers from a result page. Every field is
// best-effort except Found.
type findings struct {
	Found     bool
	LegalName string
	TaxOffice string
	Activity  models.ActivityStatus
}

// isBlocked reports whether visible page text contains a bot-detection
// marker. Checked before touching any form field.
func isBlocked(pageText string) bool {
	normalized := strings.ToLower(pageText)
	for _, marker := range blockMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// hasNoResults checks the registry's empty-result phrases in normalized page
// text.
func hasNoResults(pageText string) bool {
	normalized := strings.ToLower(pageText)
	for _, marker := range noResultsMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// extract pulls structured findings out of a result page. pageText drives the
// no-results and activity classification; html drives the row scan.
func extract(pageText, html string) findings {
	if hasNoResults(pageText) {
		return findings{Found: false, Activity: models.ActivityUnknown}
	}

	f := findings{Activity: classifyActivity(pageText)}
	f.LegalName = extractLegalName(html)
	f.TaxOffice = extractTaxOffice(pageText)
	f.Found = f.LegalName != ""
	return f
}

// extractLegalName scans result-row patterns and takes the leading line of
// the first non-empty row as the candidate legal name.
func extractLegalName(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, selector := range resultRowSelectors {
		name := ""
		doc.Find(selector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			text := strings.TrimSpace(row.Text())
			if text == "" {
				return true
			}
			name = firstLine(text)
			return false
		})
		if name != "" {
			return name
		}
	}
	return ""
}

// classifyActivity scans lowercased page text against the keyword sets;
// first match wins, default unknown. The inactive set runs first because
// "ανενεργή" contains "ενεργή" as a substring.
func classifyActivity(pageText string) models.ActivityStatus {
	normalized := strings.ToLower(pageText)
	for _, kw := range inactiveKeywords {
		if strings.Contains(normalized, kw) {
			return models.ActivityInactive
		}
	}
	for _, kw := range activeKeywords {
		if strings.Contains(normalized, kw) {
			return models.ActivityActive
		}
	}
	return models.ActivityUnknown
}

// extractTaxOffice pulls the labelled ΔΟΥ value; absence is non-fatal.
func extractTaxOffice(pageText string) string {
	match := taxOfficePattern.FindStringSubmatch(pageText)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\n\r"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
