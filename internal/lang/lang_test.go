package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	c := New("en")

	tests := []struct {
		label string
		want  string
	}{
		{"ES-es", "es"},
		{"spanish", "es"},
		{" Spa ", "es"},
		{"es_MX", "es"},
		{"#es", "es"},
		{"English", "en"},
		{"en-GB", "en"},
		{"eng_uk", "en"},
		{"", "en"},
		{"   ", "en"},
		{"fr", "en"},
		{"de-DE", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Canonicalize(tt.label))
		})
	}
}

func TestCanonicalize_ConfiguredDefault(t *testing.T) {
	c := New(" ES ")

	assert.Equal(t, "es", c.Default())
	assert.Equal(t, "es", c.Canonicalize(""))
	assert.Equal(t, "es", c.Canonicalize("klingon"))
	assert.Equal(t, "en", c.Canonicalize("en-us"))
}

func TestNew_EmptyDefault(t *testing.T) {
	assert.Equal(t, DefaultCode, New("").Default())
}

func TestInfer(t *testing.T) {
	c := New("en")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"markers", "Hola, ¿cómo estás?", "es"},
		{"inverted exclamation", "¡vamos", "es"},
		{"keyword only", "muchas gracias amigo", "es"},
		{"keyword with punctuation", "Por favor!", "es"},
		{"keyword uppercase", "HOLA", "es"},
		{"english", "Hello there", "en"},
		{"empty", "", "en"},
		{"substring is not a keyword", "portable holamundo", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Infer(tt.text))
		})
	}
}

func TestResolve(t *testing.T) {
	c := New("en")

	assert.Equal(t, "es", c.Resolve("spanish", "Hello there"))
	assert.Equal(t, "es", c.Resolve("", "gracias"))
	assert.Equal(t, "en", c.Resolve("  ", "Hello"))
}
