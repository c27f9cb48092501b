package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"PDFLibraryBot/internal/domain"
)

// shortInputWords marks first pages too short to analyze reliably.
const shortInputWords = 150

// MethodContentScan marks volumes whose reading time came from a page scan.
const MethodContentScan = "content_based_full_scan"

// Aliases maps a canonical field path ("volume.word_count") to the keys a
// provider may use for it, in lookup order.
type Aliases map[string][]string

// DefaultAliases covers the English schema and the Russian keys providers
// fall back to when they follow the prompt language.
var DefaultAliases = Aliases{
	"doc_language": {"doc_language", "language", "lang", "язык"},
	"volume":       {"volume", "объём", "объем"},
	"complexity":   {"complexity", "сложность"},
	"topics":       {"topics", "тематика", "темы"},
	"category":     {"category", "категория"},
	"limitations":  {"limitations", "ограничения"},

	"volume.word_count":       {"word_count", "words", "количество_слов"},
	"volume.char_count":       {"char_count", "chars", "количество_символов"},
	"volume.page_count":       {"page_count", "pages", "количество_страниц"},
	"volume.byte_size":        {"byte_size", "size", "размер_в_байтах"},
	"volume.reading_time_min": {"reading_time_min", "read_time_minutes", "reading_time_minutes", "время_чтения_минут", "time_to_read_minutes"},

	"complexity.score":   {"score", "оценка", "оценка_1_5"},
	"complexity.level":   {"level", "label", "уровень"},
	"complexity.grade":   {"estimated_grade", "grade", "класс"},
	"complexity.drivers": {"drivers", "ключевые_слова", "keywords"},
	"complexity.notes":   {"notes", "description", "basis", "основание", "описание"},

	"category.label":    {"label", "name", "title", "название"},
	"category.score":    {"score", "confidence", "уверенность"},
	"category.basis":    {"basis", "description", "основание", "описание"},
	"category.keywords": {"keywords", "ключевые_слова"},

	"topic.label":     {"label", "major", "name", "название"},
	"topic.score":     {"score", "confidence"},
	"topic.keywords":  {"keywords", "minor", "ключевые_слова"},
	"topic.rationale": {"rationale", "basis", "основание"},

	"limitations.short_or_noisy_input": {"short_or_noisy_input"},
	"limitations.comments":             {"comments", "description", "комментарии"},
}

// Normalizer maps a provider's JSON reply onto domain.AnalysisResult.
type Normalizer struct {
	aliases Aliases
}

// NewNormalizer builds a normalizer whose extra aliases are tried before the defaults.
func NewNormalizer(extra Aliases) *Normalizer {
	merged := make(Aliases, len(DefaultAliases))
	for path, keys := range DefaultAliases {
		merged[path] = append([]string(nil), keys...)
	}
	for path, keys := range extra {
		merged[path] = append(append([]string(nil), keys...), merged[path]...)
	}
	return &Normalizer{aliases: merged}
}

// Decode extracts and normalizes a raw provider reply.
func (n *Normalizer) Decode(content string, in Input) (domain.AnalysisResult, error) {
	raw, err := ExtractJSONObject(content)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return n.Normalize(raw, in), nil
}

// Normalize fills every canonical field, rescales scores and recomputes reading
// time on the host. A page-scan breakdown in Meta wins over the provider's
// figure and is re-priced at the final complexity level. The result is clamped.
func (n *Normalizer) Normalize(raw map[string]any, in Input) domain.AnalysisResult {
	var res domain.AnalysisResult

	res.Language = firstNonEmpty(asString(n.get(raw, "doc_language")), in.Meta.LanguageHint, "ru")

	firstPageWords, firstPageChars := CountWords(in.Text)

	vol := asMap(n.get(raw, "volume"))
	res.Volume = domain.Volume{
		WordCount: asInt(n.get(vol, "volume.word_count")),
		CharCount: asInt(n.get(vol, "volume.char_count")),
		PageCount: asInt(n.get(vol, "volume.page_count")),
		ByteSize:  int64(asInt(n.get(vol, "volume.byte_size"))),
		Method:    "llm",
	}
	switch {
	case in.Meta.WordCount > 0:
		res.Volume.WordCount = in.Meta.WordCount
		res.Volume.Method = "precomputed"
	case res.Volume.WordCount <= 0:
		res.Volume.WordCount = firstPageWords
		res.Volume.Method = "first_page"
	}
	if res.Volume.CharCount <= 0 {
		res.Volume.CharCount = firstPageChars
	}
	if in.Meta.PageCount > 0 {
		res.Volume.PageCount = in.Meta.PageCount
	}
	if in.Meta.ByteSize > 0 {
		res.Volume.ByteSize = in.Meta.ByteSize
	}

	rawLevel := n.normalizeComplexity(raw, &res)

	coef := LevelCoefficient(rawLevel, res.Complexity.Level)
	providerMinutes, _ := asFloat(n.get(vol, "volume.reading_time_min"))
	switch {
	case in.Meta.Reading != nil:
		b := *in.Meta.Reading
		if b.Words <= 0 {
			b.Words = res.Volume.WordCount
		}
		b.EffectiveWPM = EffectiveWPM(res.Language, coef)
		res.Volume.ReadingMinutes = math.Round(ScannedReadingMinutes(b, b.EffectiveWPM)*10) / 10
		res.Volume.Method = MethodContentScan
		res.Volume.Breakdown = &b
	case in.Meta.ReadingMinutes > 0:
		res.Volume.ReadingMinutes = math.Round(in.Meta.ReadingMinutes*10) / 10
	case in.Meta.WordCount > 0:
		res.Volume.ReadingMinutes = EstimateReadingMinutes(res.Language, in.Meta.WordCount, coef)
	case providerMinutes > 0:
		res.Volume.ReadingMinutes = math.Round(providerMinutes*10) / 10
	default:
		res.Volume.ReadingMinutes = EstimateReadingMinutes(res.Language, res.Volume.WordCount, coef)
	}

	res.Topics = n.normalizeTopics(n.get(raw, "topics"))
	res.Category = n.normalizeCategory(n.get(raw, "category"))

	lim := asMap(n.get(raw, "limitations"))
	res.Limitations.ShortOrNoisyInput = firstPageWords < shortInputWords
	if v, ok := n.get(lim, "limitations.short_or_noisy_input").(bool); ok {
		res.Limitations.ShortOrNoisyInput = v
	}
	res.Limitations.Comments = asString(n.get(lim, "limitations.comments"))

	res.Clamp()
	return res
}

func (n *Normalizer) normalizeComplexity(raw map[string]any, res *domain.AnalysisResult) string {
	value := n.get(raw, "complexity")
	comp := asMap(value)
	if s, ok := value.(string); ok {
		comp = map[string]any{"level": s}
	}

	rawLevel := asString(n.get(comp, "complexity.level"))
	level, levelOK := ParseLevel(rawLevel)

	score, scoreOK := asFloat(n.get(comp, "complexity.score"))
	switch {
	case scoreOK:
		score = rescaleComplexity(score)
	case levelOK:
		score = map[domain.ComplexityLevel]float64{domain.LevelLow: 25, domain.LevelMedium: 50, domain.LevelHigh: 75}[level]
	default:
		score = 40
	}
	if !levelOK {
		level = domain.LevelForScore(score)
	}

	grade, ok := ParseGrade(asString(n.get(comp, "complexity.grade")))
	if !ok {
		grade = domain.GradeForScore(score)
	}

	res.Complexity = domain.Complexity{
		Score:   math.Round(score),
		Level:   level,
		Grade:   grade,
		Drivers: asStrings(n.get(comp, "complexity.drivers")),
		Notes:   asString(n.get(comp, "complexity.notes")),
	}
	return rawLevel
}

func (n *Normalizer) normalizeTopics(value any) []domain.Topic {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	case string:
		for _, part := range strings.Split(v, ",") {
			items = append(items, part)
		}
	}

	topics := make([]domain.Topic, 0, len(items))
	for _, item := range items {
		var t domain.Topic
		switch v := item.(type) {
		case string:
			t = domain.Topic{Label: strings.TrimSpace(v), Score: 0.5}
		case map[string]any:
			t.Label = strings.TrimSpace(asString(n.get(v, "topic.label")))
			t.Score = 0.5
			if s, ok := asFloat(n.get(v, "topic.score")); ok {
				t.Score = rescaleUnit(s)
			}
			t.Keywords = asStrings(n.get(v, "topic.keywords"))
			t.Rationale = asString(n.get(v, "topic.rationale"))
		}
		if t.Label != "" {
			topics = append(topics, t)
		}
		if len(topics) == domain.MaxTopics {
			break
		}
	}
	return topics
}

func (n *Normalizer) normalizeCategory(value any) domain.Category {
	cat := asMap(value)
	if s, ok := value.(string); ok {
		cat = map[string]any{"label": s}
	}

	c := domain.Category{
		Label:    strings.TrimSpace(asString(n.get(cat, "category.label"))),
		Basis:    asString(n.get(cat, "category.basis")),
		Keywords: asStrings(n.get(cat, "category.keywords")),
	}
	if c.Label == "" {
		c.Label = domain.DefaultCategory
	}
	if s, ok := asFloat(n.get(cat, "category.score")); ok {
		c.Score = rescaleUnit(s)
	}
	if c.Basis == "" {
		c.Basis = "none"
		if c.Label != domain.DefaultCategory {
			c.Basis = "llm"
		}
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return c
}

func (n *Normalizer) get(m map[string]any, path string) any {
	if m == nil {
		return nil
	}
	keys := n.aliases[path]
	if len(keys) == 0 {
		keys = []string{path[strings.LastIndexByte(path, '.')+1:]}
	}
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	for _, key := range keys {
		for k, v := range m {
			if v != nil && strings.EqualFold(k, key) {
				return v
			}
		}
	}
	return nil
}

// ParseLevel maps free-form level text (English or Russian) onto a level.
func ParseLevel(s string) (domain.ComplexityLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", false
	case containsAny(s, "низк", "low", "easy", "прост", "лёгк", "легк", "basic"):
		return domain.LevelLow, true
	case containsAny(s, "средн", "medium", "moderate", "intermediate", "average"):
		return domain.LevelMedium, true
	case containsAny(s, "высок", "high", "hard", "advanced", "difficult"):
		return domain.LevelHigh, true
	}
	return "", false
}

// ParseGrade maps free-form grade text (English or Russian) onto a grade.
func ParseGrade(s string) (domain.Grade, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", false
	case containsAny(s, "школ", "school"):
		return domain.GradeSchool, true
	case containsAny(s, "бакалав", "студен", "вуз", "undergrad", "bachelor", "university", "college"):
		return domain.GradeUndergraduate, true
	case containsAny(s, "магистр", "аспир", "graduate", "master", "phd"):
		return domain.GradeGraduate, true
	case containsAny(s, "эксперт", "профес", "специалист", "expert", "professional", "research"):
		return domain.GradeExpert, true
	}
	return "", false
}

// CountWords returns the number of words and non-space characters in text.
// URLs and tokens with fewer than two letters or digits are not words.
func CountWords(text string) (words, chars int) {
	for _, field := range strings.Fields(text) {
		chars += len([]rune(field))
		lower := strings.ToLower(field)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			continue
		}
		alnum := 0
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				alnum++
			}
		}
		if alnum > 1 {
			words++
		}
	}
	return words, chars
}

// rescaleComplexity accepts 0..1 fractions and 1..5 ratings as well as 0..100 scores.
func rescaleComplexity(v float64) float64 {
	switch {
	case v >= 0 && v <= 1:
		return v * 100
	case v == math.Trunc(v) && v > 1 && v <= 5:
		return v / 5 * 100
	}
	return v
}

// rescaleUnit accepts percentages for 0..1 scores.
func rescaleUnit(v float64) float64 {
	if v > 1 && v <= 100 {
		return v / 100
	}
	return v
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case []any:
		return strings.Join(asStrings(s), ", ")
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func asStrings(v any) []string {
	switch s := v.(type) {
	case string:
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := asString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(n), "%")
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) int {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return int(math.Round(f))
}
