package textanalysis

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anamnesis-symptom-engine/internal/catalog"
	"github.com/anamnesis-symptom-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func threeSymptomCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("test", []domain.Symptom{
		domain.NewSymptom("температура", [][]string{{"температура"}}),
		domain.NewSymptom("недомогание", [][]string{{"недомогание"}}),
		domain.NewSymptom("болеть голова", [][]string{{"болеть", "голова"}}),
	})
	require.NoError(t, err)
	return c
}

func newTestAnalyzer(t *testing.T, c *catalog.Catalog) *RuleAnalyzer {
	t.Helper()
	a, err := NewDefaultRuleAnalyzer(c, testLogger())
	require.NoError(t, err)
	return a
}

type mention struct {
	id      string
	negated bool
}

func mentions(entities []Entity) []mention {
	out := make([]mention, len(entities))
	for i, e := range entities {
		out[i] = mention{id: e.ID, negated: e.Negated}
	}
	return out
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("У меня нет температуры, но есть недомогание. Всё ещё кашляю!")

	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Lower
	}
	assert.Equal(t, []string{"у", "меня", "нет", "температуры", "но", "есть", "недомогание", "все", "еще", "кашляю"}, words)
	assert.Equal(t, 0, tokens[6].Sentence)
	assert.Equal(t, 1, tokens[7].Sentence)
	assert.Equal(t, "температуры", tokens[3].Text)
	assert.Equal(t, "температуры", "У меня нет температуры, но"[tokens[3].Start:tokens[3].End])
}

func TestTokenize_MarksPunctuation(t *testing.T) {
	tokens := Tokenize("Температуры нет, кашель есть. Жар")
	require.Len(t, tokens, 5)
	assert.False(t, tokens[1].AfterPunct)
	assert.True(t, tokens[2].AfterPunct)
	assert.False(t, tokens[3].AfterPunct)
	assert.False(t, tokens[4].AfterPunct)
}

func TestTokenize_HyphenatedWords(t *testing.T) {
	tokens := Tokenize("какой-то жар - сильный")
	require.Len(t, tokens, 3)
	assert.Equal(t, "какой-то", tokens[0].Lower)
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Болит голова. Температуры нет!\nЕсть недомогание... ")
	assert.Equal(t, []string{"Болит голова", "Температуры нет", "Есть недомогание"}, got)
	assert.Empty(t, SplitSentences(" ... "))
}

func TestRuleAnalyzer_MixedNegation(t *testing.T) {
	a := newTestAnalyzer(t, threeSymptomCatalog(t))

	entities, err := a.Analyze(context.Background(), "У меня нет температуры, но есть недомогание и не болит голова")
	require.NoError(t, err)

	assert.Equal(t, []mention{
		{"температура", true},
		{"недомогание", false},
		{"болеть голова", true},
	}, mentions(entities))

	for _, e := range entities {
		assert.Equal(t, LabelSymptom, e.Label)
	}
	assert.Equal(t, "болит голова", entities[2].Text)
	assert.Equal(t, "болеть голова", entities[2].Lemma)
}

func TestRuleAnalyzer_ContradictionInOneText(t *testing.T) {
	a := newTestAnalyzer(t, threeSymptomCatalog(t))

	entities, err := a.Analyze(context.Background(), "У меня нет температуры и есть температура, я запутался")
	require.NoError(t, err)

	assert.Equal(t, []mention{
		{"температура", true},
		{"температура", false},
	}, mentions(entities))
}

func TestRuleAnalyzer_NegationCues(t *testing.T) {
	a := newTestAnalyzer(t, threeSymptomCatalog(t))

	tests := []struct {
		name     string
		text     string
		expected []mention
	}{
		{"plain affirmation", "Сильное недомогание", []mention{{"недомогание", false}}},
		{"preceding без", "Без температуры", []mention{{"температура", true}}},
		{"following нет", "Температуры нет", []mention{{"температура", true}}},
		{"following outside scope", "Температура, но недомогания нет", []mention{{"температура", false}, {"недомогание", true}}},
		{"negation stops at sentence end", "Температуры нет. Недомогание сильное", []mention{{"температура", true}, {"недомогание", false}}},
		{"pseudo negation ignored", "Не только температура", []mention{{"температура", false}}},
		{"following cue stays before comma", "Температуры нет, недомогание есть", []mention{{"температура", true}, {"недомогание", false}}},
		{"preceding cue stays after comma", "Температура, нет недомогания", []mention{{"температура", false}, {"недомогание", true}}},
		{"affirmation after mention", "Нет температуры, недомогание есть", []mention{{"температура", true}, {"недомогание", false}}},
		{"reversed word order", "Голова не болит", nil},
		{"no symptoms", "Всё хорошо", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, err := a.Analyze(context.Background(), tt.text)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Empty(t, entities)
				return
			}
			assert.Equal(t, tt.expected, mentions(entities))
		})
	}
}

func TestRuleAnalyzer_LongestPatternWins(t *testing.T) {
	c, err := catalog.New("test", []domain.Symptom{
		domain.NewSymptom("боль", [][]string{{"боль"}}),
		domain.NewSymptom("боль в горло", [][]string{{"боль", "в", "горло"}}),
	})
	require.NoError(t, err)
	a := newTestAnalyzer(t, c)

	entities, err := a.Analyze(context.Background(), "Сильная боль в горле")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "боль в горло", entities[0].ID)
}

func TestRuleAnalyzer_DefaultCatalog(t *testing.T) {
	c, err := catalog.LoadDefault()
	require.NoError(t, err)
	a := newTestAnalyzer(t, c)

	entities, err := a.Analyze(context.Background(), "Не болит голова, но тошнит и есть кашель. Головная боль была вчера")
	require.NoError(t, err)

	assert.Equal(t, []mention{
		{"болеть голова", true},
		{"тошнота", false},
		{"кашель", false},
		{"болеть голова", false},
	}, mentions(entities))
}

func TestRuleAnalyzer_AnalyzeBatch(t *testing.T) {
	a := newTestAnalyzer(t, threeSymptomCatalog(t))
	texts := []string{"нет температуры", "недомогание", ""}

	batch, err := a.AnalyzeBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := a.Analyze(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestRuleAnalyzer_CancelledContext(t *testing.T) {
	a := newTestAnalyzer(t, threeSymptomCatalog(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "температура")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadLexicon(t *testing.T) {
	lex, err := LoadLexicon(strings.NewReader("lemmas:\n  голова: [Головы, голову]\n"))
	require.NoError(t, err)

	assert.Equal(t, "голова", lex.Lemma("головы"))
	assert.Equal(t, "голова", lex.Lemma("голова"))
	assert.Equal(t, "неизвестно", lex.Lemma("неизвестно"))
	assert.Equal(t, 3, lex.Size())

	_, err = LoadLexicon(strings.NewReader("lemmas:\n  a: [x]\n  b: [x]\n"))
	assert.Error(t, err)
}

func TestDefaultResources(t *testing.T) {
	lex, err := DefaultLexicon()
	require.NoError(t, err)
	assert.Equal(t, "болеть", lex.Lemma("болит"))

	ts, err := DefaultTermset()
	require.NoError(t, err)
	assert.Contains(t, ts.Preceding, "не")
	assert.Contains(t, ts.Termination, "но")
	assert.Contains(t, ts.Affirmation, "есть")

	_, err = LoadTermset(strings.NewReader("pseudo: [не только]\n"))
	assert.Error(t, err)
}
