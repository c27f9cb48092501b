package analysis

import (
	"encoding/json"
	"strings"
)

// MaxPromptText bounds the document text sent to a provider.
const MaxPromptText = 20000

// SystemPrompt instructs providers to answer with a single JSON object.
const SystemPrompt = `Ты аккуратный анализатор текстов PDF. По содержимому документа определи его объём, общую сложность текста, тематику и категорию.
Верни строго один валидный JSON-объект без Markdown со следующими полями:
{"doc_language": "ru|en|...",
 "volume": {"word_count": int, "char_count": int, "page_count": int|null, "byte_size": int|null, "reading_time_min": number},
 "complexity": {"score": 0-100, "level": "low|medium|high", "estimated_grade": "school|undergraduate|graduate|expert", "drivers": [string], "notes": string},
 "topics": [{"label": string, "score": 0-1, "keywords": [string], "rationale": string}],
 "category": {"label": string, "score": 0-1, "basis": string, "keywords": [string]},
 "limitations": {"short_or_noisy_input": bool, "comments": string}}
Не более 6 тем.`

// BuildUserPrompt renders the per-document prompt.
func BuildUserPrompt(in Input) string {
	text := in.Text
	if r := []rune(text); len(r) > MaxPromptText {
		text = string(r[:MaxPromptText])
	}

	meta, err := json.Marshal(in.Meta)
	if err != nil {
		meta = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Входные данные для анализа PDF.\n")
	b.WriteString("TEXT содержит только первую страницу документа.\n")
	b.WriteString("Оцени объём и время чтения по META; если есть precomputed_word_count, используй его как основной источник.\n")
	b.WriteString("Не придумывай page_count и byte_size: бери их из META или верни null.\n")
	b.WriteString("Категорию определи по TEXT и META.source_name (имя файла или последний сегмент URL).\n")
	if cats := nonEmpty(in.ExistingCategories); len(cats) > 0 {
		b.WriteString("Если подходит, выбери category.label из уже существующих категорий пользователя: ")
		b.WriteString(strings.Join(cats, ", "))
		b.WriteString(".\n")
	}
	b.WriteString("\nTEXT:\n")
	b.WriteString(text)
	b.WriteString("\n\nMETA (JSON):\n")
	b.Write(meta)
	return b.String()
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
