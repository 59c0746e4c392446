package locale

import "github.com/avvvet/bookbuddy/internal/models"

// Detect classifies text as Chinese when it contains any CJK Unified
// Ideograph, English otherwise.
func Detect(text string) models.Locale {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return models.LocaleChinese
		}
	}
	return models.LocaleEnglish
}

// T picks the string for the given locale
func T(en, zh string, loc models.Locale) string {
	if loc == models.LocaleChinese {
		return zh
	}
	return en
}
