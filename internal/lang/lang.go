// Package lang maps language labels and free text to canonical codes.
package lang

import (
	"strings"
)

// DefaultCode is used when no default is configured.
const DefaultCode = "en"

var aliases = map[string]string{
	"en":      "en",
	"eng":     "en",
	"en-us":   "en",
	"en_us":   "en",
	"english": "en",
	"es":      "es",
	"spa":     "es",
	"es-es":   "es",
	"es_es":   "es",
	"spanish": "es",
	"espanol": "es",
}

// hint describes how to spot one language in recognized text.
type hint struct {
	code     string
	markers  string
	keywords map[string]struct{}
}

var hints = []hint{
	{
		code:    "es",
		markers: "áéíóúñü¿¡",
		keywords: set(
			"gracias", "hola", "adiós", "por", "favor",
			"mañana", "ayer", "somos", "usted", "estoy",
		),
	},
}

const tokenPunct = ".,!?;:"

type Classifier struct {
	def string
}

// New returns a Classifier falling back to def. An empty def means "en".
func New(def string) *Classifier {
	def = strings.ToLower(strings.TrimSpace(def))
	if def == "" {
		def = DefaultCode
	}
	return &Classifier{def: def}
}

func (c *Classifier) Default() string {
	return c.def
}

// Canonicalize maps a caller supplied label ("ES-es", "spanish", " Spa ")
// to a canonical code. Unknown labels yield the default.
func (c *Classifier) Canonicalize(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.NewReplacer("#", "", " ", "").Replace(normalized)
	if normalized == "" {
		return c.def
	}

	if code, ok := aliases[normalized]; ok {
		return code
	}

	root, _, _ := strings.Cut(normalized, "-")
	root, _, _ = strings.Cut(root, "_")
	if code, ok := aliases[root]; ok {
		return code
	}

	return c.def
}

// Infer guesses the language of text. Marker characters are checked for all
// languages before any keyword is.
func (c *Classifier) Infer(text string) string {
	lowered := strings.ToLower(text)

	for _, h := range hints {
		if strings.ContainsAny(lowered, h.markers) {
			return h.code
		}
	}

	tokens := strings.Fields(lowered)
	for _, h := range hints {
		for _, tok := range tokens {
			if _, ok := h.keywords[strings.Trim(tok, tokenPunct)]; ok {
				return h.code
			}
		}
	}

	return c.def
}

// Resolve returns the canonical form of requested, or infers a code from
// text when nothing was requested.
func (c *Classifier) Resolve(requested, text string) string {
	if strings.TrimSpace(requested) != "" {
		return c.Canonicalize(requested)
	}
	return c.Infer(text)
}

func set(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
