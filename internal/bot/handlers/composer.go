package handlers

import (
	"context"
	"sort"
	"strconv"

	"github.com/edgard/nkobot/internal/ai"
	"github.com/edgard/nkobot/internal/questionnaire"
)

// NewComposer pairs questionnaire answers with their questions, in question
// order, and asks gen for the final text. The pinned context is the user's
// system context captured when the questionnaire started.
func NewComposer(gen Generator, questions questionnaire.QuestionSet) questionnaire.Composer {
	return questionnaire.ComposerFunc(func(ctx context.Context, answers map[string]string, pinned string) (string, error) {
		keys := make([]int, 0, len(answers))
		for k := range answers {
			if n, err := strconv.Atoi(k); err == nil {
				keys = append(keys, n)
			}
		}
		sort.Ints(keys)

		qas := make([]ai.QA, 0, len(keys))
		for _, k := range keys {
			q, ok := questions.At(k)
			if !ok {
				continue
			}
			qas = append(qas, ai.QA{Question: q.Text, Answer: answers[strconv.Itoa(k)]})
		}
		return gen.Compose(ctx, pinned, qas)
	})
}
