package questionnaire

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQuestions(t *testing.T) {
	t.Parallel()

	src := `{
		"questions": {
			"2": {"text": "Для кого публикация?"},
			"1": {"text": "О каком событии пишем?"},
			"3": {"text": "Куда приглашаем?"}
		}
	}`

	qs, err := ReadQuestions(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 3, qs.Len())

	q, ok := qs.At(1)
	require.True(t, ok)
	assert.Equal(t, Question{Key: 1, Text: "О каком событии пишем?"}, q)

	q, ok = qs.At(3)
	require.True(t, ok)
	assert.Equal(t, "Куда приглашаем?", q.Text)

	_, ok = qs.At(0)
	assert.False(t, ok)
	_, ok = qs.At(4)
	assert.False(t, ok)
}

func TestReadQuestionsRejectsMalformedSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "not json", src: `questions: [`},
		{name: "no questions", src: `{"questions": {}}`},
		{name: "missing section", src: `{"other": 1}`},
		{name: "gap in keys", src: `{"questions": {"1": {"text": "a"}, "3": {"text": "c"}}}`},
		{name: "does not start at one", src: `{"questions": {"2": {"text": "b"}}}`},
		{name: "non numeric key", src: `{"questions": {"first": {"text": "a"}}}`},
		{name: "empty text", src: `{"questions": {"1": {"text": "  "}}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadQuestions(strings.NewReader(tc.src))
			assert.ErrorIs(t, err, ErrInvalidQuestions)
		})
	}
}

func TestLoadQuestions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"questions": {"1": {"text": "Q1"}}}`), 0o600))

	qs, err := LoadQuestions(path)
	require.NoError(t, err)
	assert.Equal(t, 1, qs.Len())

	_, err = LoadQuestions(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrInvalidQuestions)
}
