package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Locale groups the phrasings one site language uses around host and
// licensing information.
type Locale struct {
	Code string

	// LicenseSections introduce the registration details block.
	LicenseSections *regexp.Regexp
	// HostSection marks the "meet your host" card.
	HostSection *regexp.Regexp
	// ViewProfile is the text of the link to the full host profile.
	ViewProfile []string
	// HostName captures the name following a host anchor in group 1.
	HostName *regexp.Regexp
	// Reviews captures a review count in group 1.
	Reviews *regexp.Regexp
	// Rating captures a rating "out of 5" in group 1.
	Rating *regexp.Regexp
	// TenureYears and TenureMonths capture a hosting duration in group 1.
	TenureYears  []*regexp.Regexp
	TenureMonths []*regexp.Regexp
	// MonthsLabel is the unit written for tenures shorter than a year.
	MonthsLabel string
}

const (
	nameTail  = `[ \t]*([^\n]{1,80})`
	ratingNum = `(\d(?:[.,]\d{1,2})?)`
	countNum  = `(\d{1,3}(?:[.,\s]\d{3})+|\d+)`
)

var builtinLocales = map[string]Locale{
	"en": {
		Code:            "en",
		LicenseSections: phraseRegexp([]string{"Registration details", "Registration number", "License", "Licence", "Permit"}),
		HostSection:     phraseRegexp([]string{"Meet your host", "About the host", "About your host"}),
		ViewProfile:     []string{"View full profile", "View profile", "Show profile"},
		HostName:        regexp.MustCompile(`(?i)(?:hosted by|your host\s*:)` + nameTail),
		Reviews:         regexp.MustCompile(`(?i)` + countNum + `\s+reviews?\b`),
		Rating:          regexp.MustCompile(`(?i)` + ratingNum + `\s+out\s+of\s+5\b`),
		TenureYears: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(\d+)\s+years?\s+hosting\b`),
			regexp.MustCompile(`(?i)hosting\s+since\s+(\d+)\s+years?\b`),
		},
		TenureMonths: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(\d+)\s+months?\s+hosting\b`),
			regexp.MustCompile(`(?i)hosting\s+since\s+(\d+)\s+months?\b`),
		},
		MonthsLabel: "months",
	},
	"fr": {
		Code: "fr",
		LicenseSections: phraseRegexp([]string{
			"Infos d'enregistrement", "Détails de l'enregistrement", "Numéro d'enregistrement", "Licence", "Permis",
		}),
		HostSection: phraseRegexp([]string{"Rencontrez votre hôte", "Votre hôte", "À propos de l'hôte"}),
		ViewProfile: []string{"Accéder au profil", "Afficher le profil", "Voir le profil"},
		HostName:    regexp.MustCompile(`(?i)(?:votre\s+hôte|hôte)\s*:` + nameTail),
		Reviews:     regexp.MustCompile(`(?i)` + countNum + `\s+(?:commentaires?|évaluations?)\b`),
		Rating:      regexp.MustCompile(`(?i)` + ratingNum + `\s+sur\s+5\b`),
		TenureYears: []*regexp.Regexp{
			regexp.MustCompile(`(?i)hôte\s+depuis\s+(\d+)\s+ans?\b`),
			regexp.MustCompile(`(?i)(\d+)\s+ans?\s+en\s+tant\s+qu['’]hôte`),
		},
		TenureMonths: []*regexp.Regexp{
			regexp.MustCompile(`(?i)hôte\s+depuis\s+(\d+)\s+mois\b`),
			regexp.MustCompile(`(?i)(\d+)\s+mois\s+en\s+tant\s+qu['’]hôte`),
		},
		MonthsLabel: "mois",
	},
	"es": {
		Code:            "es",
		LicenseSections: phraseRegexp([]string{"Detalles del registro", "Número de registro", "Licencia", "Permiso"}),
		HostSection:     phraseRegexp([]string{"Conoce a tu anfitrión", "Conoce a tu anfitriona", "Acerca del anfitrión"}),
		ViewProfile:     []string{"Ver perfil completo", "Ver perfil", "Mostrar perfil"},
		HostName:        regexp.MustCompile(`(?i)(?:anfitri[oó]na?\s*:|alojamiento\s+ofrecido\s+por)` + nameTail),
		Reviews:         regexp.MustCompile(`(?i)` + countNum + `\s+(?:reseñas?|evaluaciones)\b`),
		Rating:          regexp.MustCompile(`(?i)` + ratingNum + `\s+de\s+5\b`),
		TenureYears: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(\d+)\s+años?\s+como\s+anfitri[oó]na?`),
			regexp.MustCompile(`(?i)anfitri[oó]na?\s+desde\s+hace\s+(\d+)\s+años?`),
		},
		TenureMonths: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(\d+)\s+mes(?:es)?\s+como\s+anfitri[oó]na?`),
			regexp.MustCompile(`(?i)anfitri[oó]na?\s+desde\s+hace\s+(\d+)\s+mes(?:es)?`),
		},
		MonthsLabel: "meses",
	},
	"de": {
		Code:            "de",
		LicenseSections: phraseRegexp([]string{"Registrierungsdetails", "Registrierungsnummer", "Lizenz", "Genehmigung"}),
		HostSection: phraseRegexp([]string{
			"Lerne deinen Gastgeber kennen", "Lerne deine Gastgeberin kennen", "Über den Gastgeber",
		}),
		ViewProfile: []string{"Vollständiges Profil anzeigen", "Profil anzeigen"},
		HostName:    regexp.MustCompile(`(?i)(?:gastgeber(?:in)?\s*:|gastgeber(?:in)?\s+ist)` + nameTail),
		Reviews:     regexp.MustCompile(`(?i)` + countNum + `\s+Bewertungen?\b`),
		Rating:      regexp.MustCompile(`(?i)` + ratingNum + `\s+von\s+5\b`),
		TenureYears: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gastgeber(?:in)?\s+seit\s+(\d+)\s+Jahr(?:en)?`),
			regexp.MustCompile(`(?i)(\d+)\s+Jahre?\s+als\s+Gastgeber`),
		},
		TenureMonths: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gastgeber(?:in)?\s+seit\s+(\d+)\s+Monat(?:en)?`),
			regexp.MustCompile(`(?i)(\d+)\s+Monate?\s+als\s+Gastgeber`),
		},
		MonthsLabel: "Monaten",
	},
}

// DefaultLocaleOrder is tried when no order is configured.
var DefaultLocaleOrder = []string{"fr", "en", "es", "de"}

// Locales resolves codes to built-in locales, keeping their order.
func Locales(codes []string) ([]Locale, error) {
	if len(codes) == 0 {
		codes = DefaultLocaleOrder
	}
	out := make([]Locale, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		loc, ok := builtinLocales[code]
		if !ok {
			return nil, fmt.Errorf("unsupported locale %q", code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, loc)
	}
	return out, nil
}
