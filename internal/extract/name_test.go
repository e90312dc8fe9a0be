package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
)

func newFinder(t *testing.T) *NameFinder {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewNameFinder(c.Names, c.Vocabulary()...)
}

func TestNameFinderFind(t *testing.T) {
	f := newFinder(t)

	tests := []struct {
		name   string
		text   string
		hint   NameHint
		want   string
		marked bool
		found  bool
	}{
		{"marker", "Меня зовут Анна, телефон 89261234567, хочу записаться на чистку лица", NoPhone, "Анна", true, true},
		{"marker lower case", "меня зовут ольга", NoPhone, "Ольга", true, true},
		{"my name marker", "моё имя Светлана", NoPhone, "Светлана", true, true},
		{"english marker", "Hi, my name is kate", NoPhone, "Kate", true, true},
		{"bare name", "Иван", NoPhone, "Иван", false, true},
		{"short stopword is exact", "Дарья", NoPhone, "Дарья", false, true},
		{"greeting only", "Здравствуйте!", NoPhone, "", false, false},
		{"procedure word", "Ботокс", NoPhone, "", false, false},
		{"stopwords", "Хочу на эпиляцию", NoPhone, "", false, false},
		{"long message without phone", "Подскажите пожалуйста Марина сколько стоит чистка", NoPhone, "", false, false},
		{"long message expecting name", "Записывайте на меня, я Марина из Сочи, спасибо большое", NameHint{PhoneOffset: -1, ExpectingName: true}, "Марина", false, true},
		{"marker skips stopword", "имя телефон", NoPhone, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.Find(tt.text, tt.hint)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.marked, got.Marked)
		})
	}
}

func TestNameFinderRejectsInflectedCatalogWords(t *testing.T) {
	f := newFinder(t)

	for _, text := range []string{
		"Чистку лица хочу",
		"Биоревитализацию можно?",
		"Консультацию хочу",
		"Морщины",
		"Хорошо",
		"Интересно",
		"Лазерную эпиляцию",
		"Ботоксом",
	} {
		t.Run(text, func(t *testing.T) {
			got, ok := f.Find(text, NoPhone)
			assert.False(t, ok, "found %q", got.Name)
		})
	}
}

func TestNameFinderRejectsConversationalOpeners(t *testing.T) {
	f := newFinder(t)

	for _, text := range []string{
		"Какая цена?",
		"Нужна консультация",
		"Угревая сыпь",
		"Ага",
		"Подумаю",
		"Дорого",
		"Может завтра",
	} {
		t.Run(text, func(t *testing.T) {
			got, ok := f.Find(text, NoPhone)
			assert.False(t, ok, "found %q", got.Name)
		})
	}
}

func TestNameFinderPrefersWordNearPhone(t *testing.T) {
	f := newFinder(t)
	text := "Марина посоветовала вас. Пишу по поводу записи, Елена 89261234567"

	m, ok := FindPhone(text)
	require.True(t, ok)

	got, ok := f.Find(text, NameHint{PhoneOffset: m.Offset})
	require.True(t, ok)
	assert.Equal(t, "Елена", got.Name)
	assert.False(t, got.Marked)
}

func TestNameFinderMergeWriteOnce(t *testing.T) {
	f := newFinder(t)
	anna := NameMatch{Name: "Анна", Marked: true}
	maria := NameMatch{Name: "Мария", Marked: true}

	got, changed := f.Merge(NameMatch{}, anna)
	assert.True(t, changed)
	assert.Equal(t, anna, got)

	got, changed = f.Merge(anna, maria)
	assert.False(t, changed)
	assert.Equal(t, anna, got)

	// a greeting captured by mistake is a placeholder and can be replaced
	got, changed = f.Merge(NameMatch{Name: "Привет"}, maria)
	assert.True(t, changed)
	assert.Equal(t, maria, got)

	got, changed = f.Merge(anna, NameMatch{})
	assert.False(t, changed)
	assert.Equal(t, anna, got)
}

func TestNameFinderMergeMarkedReplacesGuess(t *testing.T) {
	f := newFinder(t)
	guess := NameMatch{Name: "Елена"}

	// guesses do not overwrite each other
	got, changed := f.Merge(guess, NameMatch{Name: "Марина"})
	assert.False(t, changed)
	assert.Equal(t, guess, got)

	got, changed = f.Merge(guess, NameMatch{Name: "Анна", Marked: true})
	assert.True(t, changed)
	assert.Equal(t, NameMatch{Name: "Анна", Marked: true}, got)

	// confirming the same name only upgrades its confidence
	got, changed = f.Merge(guess, NameMatch{Name: "Елена", Marked: true})
	assert.False(t, changed)
	assert.True(t, got.Marked)
}

func TestNameFinderValidate(t *testing.T) {
	f := newFinder(t)

	got, ok := f.Validate(" анна ")
	assert.True(t, ok)
	assert.Equal(t, "Анна", got)

	for _, bad := range []string{"", "Анна Петрова", "Здравствуйте", "12"} {
		_, ok := f.Validate(bad)
		assert.False(t, ok, bad)
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Анна", TitleCase("аННА"))
	assert.Equal(t, "", TitleCase(""))
}
