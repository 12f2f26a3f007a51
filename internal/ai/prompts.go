package ai

import (
	"fmt"
	"strings"

	"github.com/edgard/nkobot/internal/database"
)

// RewriteSystemInstruction asks the model to proof-read a text without
// changing it otherwise.
const RewriteSystemInstruction = `Исправь грамматические, орфографические и пунктуационные ошибки в тексте. Сохраняй исходный порядок слов.`

// ContentPlanSystemInstruction describes the structure of a social media
// content plan for an NKO. The user message carries the period and wishes.
const ContentPlanSystemInstruction = `Создай контент-план для социальных сетей НКО [Название НКО] на период [указать временной промежуток, например, месяц] с учётом следующих параметров:

1. **Цель и задачи:** опиши основные цели и задачи НКО [Название НКО] в социальных сетях.
2. **Целевая аудитория:** укажи основные группы людей, которых нужно охватить (например, молодёжь, семьи с детьми, пожилые люди).
3. **Тематика постов:** предложи разнообразие тем для публикаций, которые будут интересны целевой аудитории (например, социальные проблемы, благотворительные акции, истории успеха, советы и рекомендации).
4. **Частота публикаций:** определи оптимальное количество постов в день/неделю для каждой социальной сети (например, 3–5 постов в неделю).
5. **Формат постов:** укажи предпочтительные форматы публикаций (например, текст, фото, видео, инфографика).
6. **Взаимодействие с аудиторией:** предложи способы взаимодействия с аудиторией (например, комментарии, опросы, конкурсы).
7. **Аналитика и обратная связь:** опиши, какие метрики можно использовать для оценки эффективности публикаций (например, количество лайков, комментариев, репостов).
8. **Специальные мероприятия и акции:** включи в план проведение специальных мероприятий и акций, которые помогут привлечь внимание к деятельности НКО.
9. **Привлечение новых подписчиков:** предложи способы привлечения новых подписчиков в социальные сети НКО.
10. **Упоминание конкурентов и коллег:** определи, нужно ли учитывать деятельность других НКО в контент-плане, и если да, то каким образом.`

// SystemPromptBuilderInstruction turns a free-form organisation description
// into a system prompt reused in every later request of the user.
const SystemPromptBuilderInstruction = `Ты эксперт в создании промтов для yandexgpt-lite.
Сделай системный промпт так, чтобы нейросеть учитывала полученные данные на протяжении всего диалога с пользователем.
Нейросеть не может задать вопрос в процессе диалога, все данные предоставлены до него в полученном тобой сообщении`

// ComposeSystemInstruction frames the questionnaire answers.
const ComposeSystemInstruction = `Ты помогаешь некоммерческой организации готовить публикации для социальных сетей. Пользователь ответил на уточняющие вопросы. Составь по его ответам готовый текст публикации. Не задавай встречных вопросов; если ответ на вопрос пустой, опусти этот пункт.`

// settingsTemplate expects style, tone and the approximate word count.
const settingsTemplate = "Пиши в стиле:%s, в тоне: %s, около %s слов"

// Temperatures of the calls that do not use the configured default.
const (
	SystemPromptTemperature float32 = 0.3
)

var sizeWords = map[int]string{1: "100", 2: "250", 3: "500"}

// SizeWords maps a size setting to its approximate word count.
func SizeWords(size int) string {
	if w, ok := sizeWords[size]; ok {
		return w
	}
	return sizeWords[database.DefaultSize]
}

// PromptFromSettings renders the style instruction for a user's settings.
func PromptFromSettings(s *database.UserSettings) string {
	if s == nil {
		return fmt.Sprintf(settingsTemplate, database.DefaultStyle, database.DefaultTone, SizeWords(database.DefaultSize))
	}
	return fmt.Sprintf(settingsTemplate, s.Style, s.Tone, SizeWords(s.Size))
}

// SystemContext combines the style instruction with what is known about the
// user's organisation. A generated system prompt wins over the raw
// description.
func SystemContext(s *database.UserSettings) string {
	parts := []string{PromptFromSettings(s)}
	if s != nil {
		switch {
		case strings.TrimSpace(s.SystemPrompt) != "":
			parts = append(parts, strings.TrimSpace(s.SystemPrompt))
		case strings.TrimSpace(s.OrgDescription) != "":
			parts = append(parts, "Информация об организации: "+strings.TrimSpace(s.OrgDescription))
		}
	}
	return strings.Join(parts, "\n\n")
}

// QA is one questionnaire question with the user's answer.
type QA struct {
	Question string
	Answer   string
}

// FormatAnswers lists the answers as numbered question and answer pairs.
func FormatAnswers(answers []QA) string {
	var sb strings.Builder
	for i, qa := range answers {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s\nОтвет: %s", i+1, qa.Question, qa.Answer)
	}
	return sb.String()
}
