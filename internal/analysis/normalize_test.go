package analysis

import (
	"errors"
	"strings"
	"testing"

	"PDFLibraryBot/internal/domain"
)

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		key     string
	}{
		{"bare", `{"doc_language":"en"}`, "doc_language"},
		{"fenced", "Here you go:\n```json\n{\"doc_language\": \"ru\"}\n```", "doc_language"},
		{"prose", `Result: {"category": {"label": "ML"}} hope it helps`, "category"},
		{"trailing comma", `{"topics": ["a", "b",], "doc_language": "en",}`, "topics"},
		{"truncated", `{"complexity": {"score": 55, "level": "medium"`, "complexity"},
		{"braces in strings", `noise {"notes": "use {curly} braces", "doc_language": "en"} tail`, "notes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			obj, err := ExtractJSONObject(tc.content)
			if err != nil {
				t.Fatalf("ExtractJSONObject returned error: %v", err)
			}
			if _, ok := obj[tc.key]; !ok {
				t.Fatalf("key %q missing in %v", tc.key, obj)
			}
		})
	}
}

func TestExtractJSONObjectRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "no json here", "[1,2,3]"} {
		if _, err := ExtractJSONObject(content); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("content %q: err = %v, want ErrMalformedResponse", content, err)
		}
	}
}

func TestNormalizeRussianKeysAndRescaling(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"язык": "ru",
		"сложность": map[string]any{
			"оценка":  0.62,
			"уровень": "высокая",
			"класс":   "магистратура",
		},
		"категория": map[string]any{
			"название":    "Машинное обучение",
			"уверенность": 85.0,
		},
		"тематика": []any{
			map[string]any{"label": "нейросети", "score": 0.9},
			"оптимизация",
		},
	}

	res := NewNormalizer(nil).Normalize(raw, Input{Text: "короткий текст", Meta: Meta{WordCount: 1800}})

	if res.Language != "ru" {
		t.Fatalf("language = %s, want ru", res.Language)
	}
	if res.Complexity.Score != 62 || res.Complexity.Level != domain.LevelHigh || res.Complexity.Grade != domain.GradeGraduate {
		t.Fatalf("unexpected complexity: %+v", res.Complexity)
	}
	if res.Category.Label != "Машинное обучение" || res.Category.Score != 0.85 || res.Category.Basis != "llm" {
		t.Fatalf("unexpected category: %+v", res.Category)
	}
	if len(res.Topics) != 2 || res.Topics[1].Label != "оптимизация" {
		t.Fatalf("unexpected topics: %+v", res.Topics)
	}
	// 1800 words at floor(180*0.70)=126 wpm.
	if res.Volume.ReadingMinutes != 14.3 {
		t.Fatalf("reading minutes = %v, want 14.3", res.Volume.ReadingMinutes)
	}
	if res.Volume.Method != "precomputed" || res.Volume.WordCount != 1800 {
		t.Fatalf("unexpected volume: %+v", res.Volume)
	}
	if !res.Limitations.ShortOrNoisyInput {
		t.Fatalf("short input not flagged")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	res := NewNormalizer(nil).Normalize(map[string]any{}, Input{Text: strings.Repeat("word ", 400)})

	if res.Complexity.Score != 40 || res.Complexity.Level != domain.LevelMedium {
		t.Fatalf("unexpected default complexity: %+v", res.Complexity)
	}
	if res.Category.Label != domain.DefaultCategory || res.Category.Score != 0 || res.Category.Basis != "none" {
		t.Fatalf("unexpected default category: %+v", res.Category)
	}
	if res.Language != "ru" {
		t.Fatalf("language = %s, want ru", res.Language)
	}
	if res.Volume.WordCount != 400 || res.Volume.Method != "first_page" {
		t.Fatalf("unexpected volume: %+v", res.Volume)
	}
	if res.Volume.ReadingMinutes <= 0 {
		t.Fatalf("reading minutes must be positive, got %v", res.Volume.ReadingMinutes)
	}
}

func TestNormalizeScoreScales(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  any
		want float64
	}{
		{0.3, 30},
		{4.0, 80},
		{73.0, 73},
		{"55", 55},
		{250.0, 100},
		{-3.0, 0},
	}
	n := NewNormalizer(nil)
	for _, tc := range cases {
		res := n.Normalize(map[string]any{"complexity": map[string]any{"score": tc.raw}}, sampleInput)
		if res.Complexity.Score != tc.want {
			t.Errorf("score %v -> %v, want %v", tc.raw, res.Complexity.Score, tc.want)
		}
	}
}

func TestNormalizeProviderReadingTimeWithoutHostCount(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"volume": map[string]any{"read_time_minutes": 7.25}}
	res := NewNormalizer(nil).Normalize(raw, sampleInput)
	if res.Volume.ReadingMinutes != 7.3 {
		t.Fatalf("reading minutes = %v, want 7.3", res.Volume.ReadingMinutes)
	}
}

func TestNormalizeHostScanOverridesProviderReadingTime(t *testing.T) {
	t.Parallel()

	host := &domain.ReadingBreakdown{
		Words: 1260, EffectiveWPM: 153,
		SlidesSec: 60, ImagesSec: 30, TablesSec: 24, CodeSec: 6,
		Pages: domain.PageClasses{Text: 5, Slide: 2},
	}
	raw := map[string]any{
		"doc_language": "ru",
		"complexity":   map[string]any{"level": "высокая"},
		"volume":       map[string]any{"reading_time_min": 3.0, "word_count": 999},
	}
	in := Input{Text: "текст", Meta: Meta{WordCount: 1260, ReadingMinutes: 10.02, Reading: host}}

	res := NewNormalizer(nil).Normalize(raw, in)

	// 1260 words at floor(180*0.70)=126 wpm plus 120s of slides, images, tables and code.
	if res.Volume.ReadingMinutes != 12 {
		t.Fatalf("reading minutes = %v, want 12", res.Volume.ReadingMinutes)
	}
	if res.Volume.Method != MethodContentScan || res.Volume.WordCount != 1260 {
		t.Fatalf("unexpected volume %+v", res.Volume)
	}
	b := res.Volume.Breakdown
	if b == nil || b.EffectiveWPM != 126 || b.SlidesSec != 60 || b.Pages.Slide != 2 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
	if host.EffectiveWPM != 153 {
		t.Fatalf("input breakdown must not be modified")
	}
}

func TestNormalizeHostMinutesWithoutBreakdown(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"volume": map[string]any{"reading_time_min": 30.0}}
	res := NewNormalizer(nil).Normalize(raw, Input{Text: "текст", Meta: Meta{ReadingMinutes: 4.26}})
	if res.Volume.ReadingMinutes != 4.3 {
		t.Fatalf("reading minutes = %v, want 4.3", res.Volume.ReadingMinutes)
	}
	if res.Volume.Breakdown != nil {
		t.Fatalf("no breakdown expected, got %+v", res.Volume.Breakdown)
	}
}

func TestScannedReadingMinutes(t *testing.T) {
	t.Parallel()

	b := domain.ReadingBreakdown{Words: 306, SlidesSec: 45, ImagesSec: 9}
	if got := ScannedReadingMinutes(b, 153); got != 2.9 {
		t.Fatalf("ScannedReadingMinutes = %v, want 2.9", got)
	}
	if got := ScannedReadingMinutes(domain.ReadingBreakdown{Words: 10}, 0); got != 10 {
		t.Fatalf("zero wpm must not divide by zero, got %v", got)
	}
	if got := EffectiveWPM("en", 0.1); got != 60 {
		t.Fatalf("EffectiveWPM floor = %d, want 60", got)
	}
}

func TestNormalizerExtraAliasesWin(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(Aliases{"category.label": {"topic_area"}})
	res := n.Normalize(map[string]any{"category": map[string]any{"topic_area": "Physics", "label": "ignored"}}, sampleInput)
	if res.Category.Label != "Physics" {
		t.Fatalf("category = %s, want Physics", res.Category.Label)
	}
}

func TestNormalizeCapsTopics(t *testing.T) {
	t.Parallel()

	topics := make([]any, 0, 9)
	for _, l := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		topics = append(topics, l)
	}
	res := NewNormalizer(nil).Normalize(map[string]any{"topics": topics}, sampleInput)
	if len(res.Topics) != domain.MaxTopics {
		t.Fatalf("topics = %d, want %d", len(res.Topics), domain.MaxTopics)
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	_, err := NewNormalizer(nil).Decode("I cannot analyze this document.", sampleInput)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestEstimateReadingMinutes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		lang  string
		words int
		coef  float64
		want  float64
	}{
		{"en", 2000, 1.0, 10},
		{"ru", 1800, 1.0, 10},
		{"ru", 900, 0.85, 5.9},
		{"en", 60, 0.1, 1},
		{"en", 0, 1.0, domain.MinReadingMinutes},
	}
	for _, tc := range cases {
		if got := EstimateReadingMinutes(tc.lang, tc.words, tc.coef); got != tc.want {
			t.Errorf("EstimateReadingMinutes(%s, %d, %v) = %v, want %v", tc.lang, tc.words, tc.coef, got, tc.want)
		}
	}
}

func TestLevelCoefficient(t *testing.T) {
	t.Parallel()

	if got := LevelCoefficient("очень высокая", domain.LevelHigh); got != 0.55 {
		t.Fatalf("very high = %v, want 0.55", got)
	}
	if got := LevelCoefficient("very low", domain.LevelLow); got != 1.10 {
		t.Fatalf("very low = %v, want 1.10", got)
	}
	if got := LevelCoefficient("", domain.LevelMedium); got != 0.85 {
		t.Fatalf("medium = %v, want 0.85", got)
	}
}

func TestBuildUserPromptListsCategories(t *testing.T) {
	t.Parallel()

	prompt := BuildUserPrompt(Input{
		Text:               "body",
		Meta:               Meta{SourceName: "paper.pdf", WordCount: 42},
		ExistingCategories: []string{"ML", " ", "Физика"},
	})
	for _, want := range []string{"ML, Физика", `"source_name":"paper.pdf"`, `"precomputed_word_count":42`, "body"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt lacks %q:\n%s", want, prompt)
		}
	}
}
