package extractor

import (
	"regexp"
	"strings"
)

// pattern is one structural pattern with its specificity weight. Higher
// weights mark more specific formats; OCR-confusion variants sit lowest.
type pattern struct {
	re     *regexp.Regexp
	name   string
	weight float64
}

// Mandate references: MD/2412034, MD-2412034, "N° Mandat: MD/2412034",
// plus the confusions OCR produces for MD (ND, MO, NO).
var mandatPatterns = []pattern{
	{regexp.MustCompile(`(?i)N[°o]?\s*Mandat[:\s]*MD[/\-](\d{7})`), "mandat_with_label", 1.0},
	{regexp.MustCompile(`(?i)MD[/\-](\d{7})`), "mandat_standard", 0.95},
	{regexp.MustCompile(`(?i)MD\s+(\d{7})`), "mandat_with_space", 0.7},
	{regexp.MustCompile(`(?i)[MN][DO][/\-](\d{7})`), "mandat_ocr_variant", 0.5},
}

// Bordereau references: BOR/2402756 and friends; 8OR is the usual confusion.
var bordereauPatterns = []pattern{
	{regexp.MustCompile(`(?i)N[°o]?\s*Bordereau[:\s]*BOR[/\-](\d{7})`), "bordereau_with_label", 1.0},
	{regexp.MustCompile(`(?i)BOR[/\-](\d{7})`), "bordereau_standard", 0.95},
	{regexp.MustCompile(`(?i)BOR\s+(\d{7})`), "bordereau_with_space", 0.7},
	{regexp.MustCompile(`(?i)[B8]OR[/\-](\d{7})`), "bordereau_ocr_variant", 0.5},
}

// Fiscal year: "Exercice: 2024", "GB/2024", or a bare plausible year.
var exercicePatterns = []pattern{
	{regexp.MustCompile(`(?i)Exercice[:\s]+(\d{4})`), "exercice_with_label", 1.0},
	{regexp.MustCompile(`(?i)GB[/\-](\d{4})`), "exercice_gb", 0.85},
	{regexp.MustCompile(`\b(20[1-3][0-9])\b`), "exercice_year_only", 0.5},
}

// French administrative dates: numeric, textual month and ISO.
var datePatterns = []pattern{
	{regexp.MustCompile(`\b(\d{2})[/\-](\d{2})[/\-](\d{4})\b`), "date_jj_mm_aaaa", 1.0},
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:er)?\s+(janvier|f[ée]vrier|mars|avril|mai|juin|juillet|ao[ûu]t|septembre|octobre|novembre|d[ée]cembre)\s+(\d{4})\b`), "date_texte", 0.9},
	{regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`), "date_iso", 0.8},
}

// Amounts in FCFA with space, comma or dot grouping, or a Montant/Total label.
var amountPatterns = []pattern{
	{regexp.MustCompile(`(?i)\b((?:\d{1,3}(?:[ \x{00a0}]\d{3})+|\d{1,3}(?:[.,]\d{3})+|\d+)(?:[.,]\d{2})?)\s*(FCFA|F\s*CFA|francs?\s*CFA|XAF|EUR|€)`), "amount_with_currency", 1.0},
	{regexp.MustCompile(`(?i)\b((?:\d{1,3}(?:[.,]\d{3})+)(?:[.,]\d{2})?)\s*(FCFA|F\s*CFA|XAF)`), "amount_with_separators", 0.9},
	{regexp.MustCompile(`(?i)(?:Montant|Total|Somme)[:\s]+([\d \x{00a0},\.]+\d)\s*(FCFA|F\s*CFA|XAF)?`), "amount_with_label", 0.8},
}

var (
	wsRun        = regexp.MustCompile(`\s+`)
	ocrSlashFix  = regexp.MustCompile(`[l\\]/`)
	frenchMonths = map[string]int{
		"janvier": 1, "fevrier": 2, "février": 2, "mars": 3, "avril": 4,
		"mai": 5, "juin": 6, "juillet": 7, "aout": 8, "août": 8,
		"septembre": 9, "octobre": 10, "novembre": 11, "decembre": 12,
		"décembre": 12,
	}
)

// cleanOCRText normalizes whitespace and repairs the separator confusions
// engines commonly produce before pattern matching runs.
func cleanOCRText(text string) string {
	if text == "" {
		return ""
	}
	text = wsRun.ReplaceAllString(text, " ")
	text = ocrSlashFix.ReplaceAllString(text, "/")
	text = strings.ReplaceAll(text, `\/`, "/")
	return strings.TrimSpace(text)
}
