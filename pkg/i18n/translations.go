package i18n

// translations maps key → language → format string
var translations = map[string]map[string]string{

	// ─── Receipt ─────────────────────────────────────────────────────────────
	"receipt.line.estimated": {
		"en": "Estimated fare",
		"fr": "Tarif estimé",
		"ar": "الأجرة التقديرية",
	},
	"receipt.line.adjustment": {
		"en": "Meter adjustment",
		"fr": "Ajustement du compteur",
		"ar": "تعديل العداد",
	},
	"receipt.rate.day": {
		"en": "Day rate",
		"fr": "Tarif de jour",
		"ar": "تعريفة النهار",
	},
	"receipt.rate.night": {
		"en": "Night rate",
		"fr": "Tarif de nuit",
		"ar": "تعريفة الليل",
	},
	// %s = pickup, %s = destination
	"receipt.route": {
		"en": "%s to %s",
		"fr": "%s vers %s",
		"ar": "من %s إلى %s",
	},
	// %s = driver name, %s = plate number
	"receipt.driver": {
		"en": "Driver: %s (%s)",
		"fr": "Chauffeur : %s (%s)",
		"ar": "السائق: %s (%s)",
	},
}
