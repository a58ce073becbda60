package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"afmcheck/internal/verify/models"
)

func TestIsBlocked(t *testing.T) {
	assert.True(t, isBlocked("Please solve the reCAPTCHA below"))
	assert.True(t, isBlocked("ACCESS DENIED"))
	assert.True(t, isBlocked("Checking your browser before accessing"))
	assert.False(t, isBlocked("Αναζήτηση επιχείρησης με ΑΦΜ"))
	assert.False(t, isBlocked(""))
}

func TestHasNoResults(t *testing.T) {
	assert.True(t, hasNoResults("ΔΕΝ ΒΡΕΘΗΚΑΝ ΑΠΟΤΕΛΕΣΜΑΤΑ"))
	assert.True(t, hasNoResults("Δεν βρέθηκαν αποτελέσματα για την αναζήτησή σας"))
	assert.True(t, hasNoResults("No results found for this query"))
	assert.False(t, hasNoResults("1 αποτέλεσμα"))
}

func TestClassifyActivity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.ActivityStatus
	}{
		{"active greek", "Κατάσταση: Ενεργή", models.ActivityActive},
		{"inactive greek", "Κατάσταση: Ανενεργή", models.ActivityInactive},
		{"dissolved", "Η εταιρεία λύθηκε το 2019", models.ActivityInactive},
		{"discontinued", "Διακοπή εργασιών", models.ActivityInactive},
		{"english active", "Status: ACTIVE", models.ActivityActive},
		{"nothing", "Στοιχεία επιχείρησης", models.ActivityUnknown},
		{"empty", "", models.ActivityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyActivity(tt.text))
		})
	}
}

func TestExtractTaxOffice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain label", "ΔΟΥ: Α' ΑΘΗΝΩΝ", "Α' ΑΘΗΝΩΝ"},
		{"dotted label", "Δ.Ο.Υ. ΧΟΛΑΡΓΟΥ", "ΧΟΛΑΡΓΟΥ"},
		{"label mid-text", "Έδρα: Αθήνα\nΔΟΥ: ΦΑΕ ΠΕΙΡΑΙΑ\nΚατάσταση: Ενεργή", "ΦΑΕ ΠΕΙΡΑΙΑ"},
		{"absent is empty", "Στοιχεία επιχείρησης", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTaxOffice(tt.text))
		})
	}
}

func TestExtractLegalName(t *testing.T) {
	t.Run("first non-empty table row wins", func(t *testing.T) {
		html := `<html><body><table><tbody>
			<tr><td>   </td></tr>
			<tr><td>ALPHA SYSTEMS IKE</td><td>090000045</td></tr>
			<tr><td>SECOND ROW SA</td></tr>
		</tbody></table></body></html>`
		assert.Equal(t, "ALPHA SYSTEMS IKE", extractLegalName(html))
	})

	t.Run("result card fallback", func(t *testing.T) {
		html := `<html><body><div class="results">
			<div class="result-item">BETA HOLDINGS AE
Αριθμός ΓΕΜΗ 123456</div>
		</div></body></html>`
		assert.Equal(t, "BETA HOLDINGS AE", extractLegalName(html))
	})

	t.Run("no rows yields empty", func(t *testing.T) {
		assert.Equal(t, "", extractLegalName("<html><body><p>nothing here</p></body></html>"))
	})
}

func TestExtract(t *testing.T) {
	t.Run("no-results marker short-circuits row scan", func(t *testing.T) {
		f := extract("Δεν βρέθηκαν αποτελέσματα", "<table><tr><td>GHOST ROW</td></tr></table>")
		assert.False(t, f.Found)
		assert.Empty(t, f.LegalName)
	})

	t.Run("full findings", func(t *testing.T) {
		text := "ΔΟΥ: ΚΕΦΟΔΕ ΑΤΤΙΚΗΣ\nΚατάσταση: Ενεργή"
		html := `<html><body><table><tbody><tr><td>GAMMA AE</td></tr></tbody></table></body></html>`
		f := extract(text, html)
		assert.True(t, f.Found)
		assert.Equal(t, "GAMMA AE", f.LegalName)
		assert.Equal(t, "ΚΕΦΟΔΕ ΑΤΤΙΚΗΣ", f.TaxOffice)
		assert.Equal(t, models.ActivityActive, f.Activity)
	})

	t.Run("row without activity or tax office is still a find", func(t *testing.T) {
		html := `<html><body><table><tbody><tr><td>DELTA MONOPROSOPI EPE</td></tr></tbody></table></body></html>`
		f := extract("Αποτελέσματα αναζήτησης", html)
		assert.True(t, f.Found)
		assert.Equal(t, models.ActivityUnknown, f.Activity)
		assert.Empty(t, f.TaxOffice)
	})
}
