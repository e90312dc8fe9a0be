package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"plain", "anna@example.com", "anna@example.com", true},
		{"inside sentence", "Пишите на Anna.Petrova@Mail.ru, спасибо", "anna.petrova@mail.ru", true},
		{"first of two", "a@b.io или c@d.io", "a@b.io", true},
		{"plus tag", "anna+clinic@gmail.com", "anna+clinic@gmail.com", true},
		{"no domain zone", "anna@localhost", "", false},
		{"handle only", "мой ник @anna", "", false},
		{"no address", "хочу на чистку лица", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Email(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeEmailWriteOnce(t *testing.T) {
	got, changed := MergeEmail("", "anna@example.com")
	assert.True(t, changed)
	assert.Equal(t, "anna@example.com", got)

	got, changed = MergeEmail("anna@example.com", "other@example.com")
	assert.False(t, changed)
	assert.Equal(t, "anna@example.com", got)
}
