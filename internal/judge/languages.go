package judge

import "strings"

// languageIDs maps platform language names to judge backend language ids.
var languageIDs = map[string]int{
	"cpp":        54,
	"c++":        54,
	"java":       62,
	"javascript": 63,
	"js":         63,
}

// LanguageID resolves a language name to the judge backend id.
// Matching is case-insensitive. Returns false for unsupported languages.
func LanguageID(language string) (int, bool) {
	id, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]
	return id, ok
}

// SupportedLanguages returns the canonical names accepted by LanguageID.
func SupportedLanguages() []string {
	return []string{"cpp", "java", "javascript"}
}
