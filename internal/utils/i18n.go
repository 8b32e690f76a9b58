package utils

// Server-side messages. Portuguese is the default; English is the fallback
// for keys a locale lacks.

const DefaultLocale = "pt"

var Locales = []string{"pt", "en"}

var translations = map[string]map[string]string{
	"pt": {
		"health.ok":          "ok",
		"error.incomplete":   "Responda todas as perguntas antes de enviar.",
		"error.duplicate":    "Este teste já foi realizado para esta pessoa.",
		"error.invalid":      "Os dados enviados são inválidos.",
		"error.unknown":      "Não foi possível concluir a operação. Tente novamente.",
		"error.unauthorized": "Faça login para continuar.",
		"error.forbidden":    "Você não tem permissão para acessar este recurso.",
		"error.not_found":    "Registro não encontrado.",
		"error.conflict":     "Este e-mail já está cadastrado.",
	},
	"en": {
		"health.ok":          "ok",
		"error.incomplete":   "Answer every question before submitting.",
		"error.duplicate":    "This test has already been taken for this person.",
		"error.invalid":      "The submitted data is invalid.",
		"error.unknown":      "The operation could not be completed. Please try again.",
		"error.unauthorized": "Sign in to continue.",
		"error.forbidden":    "You are not allowed to access this resource.",
		"error.not_found":    "Record not found.",
		"error.conflict":     "This email is already registered.",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["en"][key]; ok {
		return v
	}
	return key
}
