package util

import "strings"

// pdfGlyphs maps characters PDF extractors commonly emit in financial reports
// to their plain equivalents. French layouts use no-break and narrow no-break
// spaces as thousands separators ("1 234 567 €").
var pdfGlyphs = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ",
	"\u202f", " ",
	"\u2007", " ",
	"\u00ad", "",
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
)

// SanitizeText cleans extracted page text. NUL and other control characters
// are dropped (Postgres text columns reject NUL), line endings become \n and
// typographic spaces and ligatures are flattened.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = pdfGlyphs.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch < 0x20 && ch != '\n' && ch != '\t' {
			continue
		}
		if ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}
