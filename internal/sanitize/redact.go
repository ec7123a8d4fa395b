package sanitize

import "regexp"

// RedactionMarker replaces credential values in redacted output.
const RedactionMarker = "[REDACTED]"

// keyVocabulary matches credential-shaped key names. Word separators inside
// a name may be underscores, hyphens, dots, or nothing at all, so the same
// vocabulary covers snake_case, kebab-case, dotted, and header casing.
const keyVocabulary = `(?:` +
	`api[_\-. ]?key|` +
	`access[_\-. ]?key|` +
	`secret[_\-. ]?access[_\-. ]?key|` +
	`client[_\-. ]?secret|` +
	`private[_\-. ]?key|` +
	`auth[_\-. ]?token|` +
	`refresh[_\-. ]?token|` +
	`session[_\-. ]?token|` +
	`secret|token|password|passwd|pwd|credentials?|` +
	`authorization|bearer` +
	`)`

// keyName matches a full key whose vocabulary word is bounded by a
// separator or the name's edge, so "x-api-key", "db.admin.password", and
// "aws:secret_key" match while "max_tokens" and "tokenizer" do not.
const keyName = `(?:[\w.:-]*[_.:-])?` + keyVocabulary + `(?:[_.:-][\w.:-]*)?`

// redactionRule rewrites one credential encoding. Replacement strings use
// ${n} group references; only the value portion is replaced.
type redactionRule struct {
	// Name identifies the encoding for debugging.
	Name string

	// Regex matches key-value occurrences of the encoding.
	Regex *regexp.Regexp

	// Replacement is the rewrite with the value redacted.
	Replacement string
}

// redactionRules are applied in order. JSON first (its quoted keys would
// otherwise confuse the line-anchored header rule), then headers, then
// CLI assignments, then bare bearer credentials.
var redactionRules = []redactionRule{
	{
		Name: "json-pair",
		Regex: regexp.MustCompile(
			`(?i)("` + keyName + `"\s*:\s*)"(?:[^"\\]|\\.)*"`,
		),
		Replacement: `${1}"` + RedactionMarker + `"`,
	},
	{
		Name: "header-line",
		Regex: regexp.MustCompile(
			`(?im)^([ \t]*` + keyName + `[ \t]*:)[ \t]*.+$`,
		),
		Replacement: `${1} ` + RedactionMarker,
	},
	{
		Name: "cli-assignment",
		Regex: regexp.MustCompile(
			`(?i)(^|[\s"'])(-{0,2}` + keyName + `)=(\S+)`,
		),
		Replacement: `${1}${2}=` + RedactionMarker,
	},
	{
		Name: "bearer-token",
		Regex: regexp.MustCompile(
			`(?i)\b(bearer)[ \t]+[A-Za-z0-9._~+/-]+=*`,
		),
		Replacement: `${1} ` + RedactionMarker,
	},
}

// secretKeyName matches a metadata key that names a credential.
var secretKeyName = regexp.MustCompile(`(?i)^` + keyName + `$`)

// Redact replaces credential-shaped values in free text with the redaction
// marker, across every occurrence and encoding, leaving non-matching keys
// and values untouched.
func Redact(s string) string {
	for _, rule := range redactionRules {
		s = rule.Regex.ReplaceAllString(s, rule.Replacement)
	}

	return s
}

// RedactMap redacts values of credential-shaped keys in structured
// metadata. Non-secret values are additionally run through Redact so an
// innocuously named argument cannot smuggle an inline credential pair.
func RedactMap(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}

	redacted := make(map[string]string, len(metadata))

	for key, value := range metadata {
		if secretKeyName.MatchString(key) {
			redacted[key] = RedactionMarker

			continue
		}

		redacted[key] = Redact(value)
	}

	return redacted
}
