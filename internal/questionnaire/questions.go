package questionnaire

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidQuestions is returned when the question source is missing or
// malformed. The engine cannot run without at least one question.
var ErrInvalidQuestions = errors.New("invalid question source")

// Question is a single prompt shown to the user. Key is its 1-based position.
type Question struct {
	Key  int
	Text string
}

// QuestionSet is an ordered, immutable list of questions keyed 1..N.
type QuestionSet struct {
	questions []Question
}

// questionSource mirrors the JSON layout {"questions": {"1": {"text": "..."}}}.
type questionSource struct {
	Questions map[string]struct {
		Text string `mapstructure:"text"`
	} `mapstructure:"questions"`
}

// LoadQuestions reads the question source file at path.
func LoadQuestions(path string) (QuestionSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return QuestionSet{}, fmt.Errorf("%w: %v", ErrInvalidQuestions, err)
	}
	defer f.Close()

	return ReadQuestions(f)
}

// ReadQuestions parses a JSON question source.
func ReadQuestions(r io.Reader) (QuestionSet, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(r); err != nil {
		return QuestionSet{}, fmt.Errorf("%w: failed to parse: %v", ErrInvalidQuestions, err)
	}

	var src questionSource
	if err := v.Unmarshal(&src); err != nil {
		return QuestionSet{}, fmt.Errorf("%w: failed to decode: %v", ErrInvalidQuestions, err)
	}

	texts := make(map[string]string, len(src.Questions))
	for key, q := range src.Questions {
		texts[key] = q.Text
	}
	return NewQuestionSet(texts)
}

// NewQuestionSet builds a question set from ordinal keys ("1", "2", ...) to
// prompt texts. Keys must form the contiguous range 1..N and every text must
// be non-empty.
func NewQuestionSet(texts map[string]string) (QuestionSet, error) {
	if len(texts) == 0 {
		return QuestionSet{}, fmt.Errorf("%w: no questions defined", ErrInvalidQuestions)
	}

	questions := make([]Question, 0, len(texts))
	for key, text := range texts {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return QuestionSet{}, fmt.Errorf("%w: key %q is not a number", ErrInvalidQuestions, key)
		}
		if strings.TrimSpace(text) == "" {
			return QuestionSet{}, fmt.Errorf("%w: question %d has empty text", ErrInvalidQuestions, n)
		}
		questions = append(questions, Question{Key: n, Text: text})
	}

	sort.Slice(questions, func(i, j int) bool { return questions[i].Key < questions[j].Key })
	for i, q := range questions {
		if q.Key != i+1 {
			return QuestionSet{}, fmt.Errorf("%w: expected question %d, found %d", ErrInvalidQuestions, i+1, q.Key)
		}
	}

	return QuestionSet{questions: questions}, nil
}

// Len returns the number of questions.
func (s QuestionSet) Len() int {
	return len(s.questions)
}

// At returns the question with the given 1-based key.
func (s QuestionSet) At(key int) (Question, bool) {
	if key < 1 || key > len(s.questions) {
		return Question{}, false
	}
	return s.questions[key-1], true
}
