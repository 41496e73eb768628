package utils

import (
	"regexp"
	"strings"
)

// Vehicle plate extraction from invoice line descriptions.
//
// The tax authority returns the plate buried in free text ("SERVICIO DE
// TRANSPORTE PLACA: ABC-123 LIMA-CALLAO"), so this is a best-effort
// heuristic: a missing plate is acceptable and expected. The label-first /
// fallback split exists to keep unrelated alphanumeric substrings in long
// descriptions from being picked up as plates.

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// "PLACA" label followed by separators and a 5-8 char candidate run.
	plateLabelPattern = regexp.MustCompile(`(?i)\bPLACA\b[\s:#.\-]*([A-Za-z0-9-]{5,8})`)
	plateTokenPattern = regexp.MustCompile(`^[A-Za-z0-9-]{5,8}$`)

	hasLetterPattern = regexp.MustCompile(`[A-Za-z]`)
	hasDigitPattern  = regexp.MustCompile(`[0-9]`)
)

// ExtractPlate extracts a vehicle plate code from a free-text description.
// Returns ("", false) when no acceptable candidate is found.
func ExtractPlate(text string) (string, bool) {
	clean := htmlTagPattern.ReplaceAllString(text, " ")
	clean = whitespacePattern.ReplaceAllString(clean, " ")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "", false
	}

	if m := plateLabelPattern.FindStringSubmatch(clean); m != nil {
		return normalizePlate(m[1])
	}

	// No explicit label: take the first 5-8 char token mixing letters and
	// digits. Only the first such token is considered.
	for _, token := range strings.Fields(clean) {
		token = strings.Trim(token, ".,;:()[]")
		if !plateTokenPattern.MatchString(token) {
			continue
		}
		if !hasLetterPattern.MatchString(token) || !hasDigitPattern.MatchString(token) {
			continue
		}
		return normalizePlate(token)
	}

	return "", false
}

func normalizePlate(candidate string) (string, bool) {
	plate := strings.ToUpper(strings.ReplaceAll(candidate, "-", ""))
	if len(plate) < 5 || len(plate) > 7 {
		return "", false
	}
	if !hasLetterPattern.MatchString(plate) || !hasDigitPattern.MatchString(plate) {
		return "", false
	}
	return plate, true
}
