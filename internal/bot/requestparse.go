package bot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"PDFLibraryBot/internal/domain"
)

// Go's \b is ASCII-only, so word edges are spelled out with \p{L}.
const (
	wordStart = `(?:^|[^\p{L}])`
	wordEnd   = `(?:[^\p{L}]|$)`
)

var numberWords = map[string]float64{
	"один": 1, "одна": 1, "одного": 1, "одной": 1,
	"два": 2, "две": 2, "двух": 2,
	"три": 3, "трёх": 3, "трех": 3,
	"четыре": 4, "четырёх": 4, "четырех": 4,
	"пять": 5, "пяти": 5,
	"шесть": 6, "шести": 6,
	"семь": 7, "семи": 7,
	"восемь": 8, "восьми": 8,
	"девять": 9, "девяти": 9,
	"десять": 10, "десяти": 10,
	"пятнадцать": 15, "двадцать": 20, "тридцать": 30, "сорок": 40, "пятьдесят": 50,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
}

var (
	digitMinutesExpr = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:минут\p{L}*|мин|minutes?|mins?|m)` + wordEnd)
	digitHoursExpr   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:час\p{L}*|ч|hours?|hrs?|h)` + wordEnd)
	oneAndHalfExpr   = regexp.MustCompile(wordStart + `(?:полтора|полутора)\s+час`)
	halfHourExpr     = regexp.MustCompile(wordStart + `(?:полчаса|пол\s+часа|половин\p{L}*\s+часа|half\s+an\s+hour|half\s+hour)` + wordEnd)
	wordUnitExpr     = regexp.MustCompile(wordStart + `(` + numberWordAlternation() + `)\s+(час\p{L}*|hours?|минут\p{L}*|мин|minutes?)` + wordEnd)
	singleHourExpr   = regexp.MustCompile(wordStart + `(?:час|an\s+hour|one\s+hour|a\s+hour)` + wordEnd)
	bareNumberExpr   = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*$`)

	themeExpr   = regexp.MustCompile(`по\s+(?:тематике|теме|темам)\s+(.+?)(?:\s+на\s|\s+у\s+меня|\s+за\s|[.!?]|$)`)
	aboutExpr   = regexp.MustCompile(wordStart + `(?:про|об|о|about|on)\s+(.+?)(?:\s+на\s|\s+у\s+меня|\s+for\s|\s+in\s|[.!?]|$)`)
	byTopicExpr = regexp.MustCompile(wordStart + `по\s+(.+?)(?:\s+на\s|\s+у\s+меня|\s+за\s|[.!?]|$)`)
	tagSplitter = regexp.MustCompile(`\s*,\s*|\s+и\s+|\s+and\s+`)

	urlExpr = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

	exportExprs = []*regexp.Regexp{
		regexp.MustCompile(wordStart + `выгруз`),
		regexp.MustCompile(wordStart + `дай` + wordEnd),
		regexp.MustCompile(wordStart + `покаж`),
		regexp.MustCompile(wordStart + `почитать`),
		regexp.MustCompile(wordStart + `читать`),
		regexp.MustCompile(wordStart + `материал`),
		regexp.MustCompile(wordStart + `стать[иья]`),
		regexp.MustCompile(wordStart + `у\s+меня\s+есть\s+\d+`),
		regexp.MustCompile(wordStart + `на\s+\d+\s*(?:минут|час)`),
		regexp.MustCompile(wordStart + `подбер`),
		regexp.MustCompile(wordStart + `порекомендуй`),
		regexp.MustCompile(wordStart + `(?:give\s+me|recommend|something\s+to\s+read|i\s+have\s+\d+)`),
	}
)

func numberWordAlternation() string {
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, w)
	}
	// longer words first so "двадцать" is not read as "два"
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return strings.Join(words, "|")
}

// ParseMinutes extracts a reading budget in minutes from free text.
// "1 час 30 минут" sums both parts.
func ParseMinutes(text string) (float64, bool) {
	lower := strings.ToLower(text)

	hours, hasHours := parseNumberMatch(digitHoursExpr, lower)
	minutes, hasMinutes := parseNumberMatch(digitMinutesExpr, lower)
	if hasHours || hasMinutes {
		total := hours*60 + minutes
		return total, total > 0
	}

	switch {
	case oneAndHalfExpr.MatchString(lower):
		return 90, true
	case halfHourExpr.MatchString(lower):
		return 30, true
	}

	if m := wordUnitExpr.FindStringSubmatch(lower); m != nil {
		value := numberWords[m[1]]
		if isHourUnit(m[2]) {
			return value * 60, true
		}
		return value, true
	}

	if singleHourExpr.MatchString(lower) {
		return 60, true
	}
	return 0, false
}

// ParseBareMinutes accepts a plain number such as "45".
func ParseBareMinutes(text string) (float64, bool) {
	m := bareNumberExpr.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseNumberMatch(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isHourUnit(unit string) bool {
	return strings.HasPrefix(unit, "час") || strings.HasPrefix(unit, "hour")
}

// ParseTags finds requested topics in text. With a non-empty available list
// only tags from that list are returned; matching is exact, then partial,
// then by a shared word stem. Tags mentioned verbatim anywhere in the text
// are included too.
func ParseTags(text string, available []string) []string {
	lower := strings.ToLower(text)

	var candidates []string
	if m := themeExpr.FindStringSubmatch(lower); m != nil {
		candidates = append(candidates, splitTags(m[1])...)
	} else if m := byTopicExpr.FindStringSubmatch(lower); m != nil {
		candidates = append(candidates, splitTags(m[1])...)
	}
	if m := aboutExpr.FindStringSubmatch(lower); m != nil {
		candidates = append(candidates, splitTags(m[1])...)
	}

	if len(available) == 0 {
		return dedupe(candidates)
	}

	var matched []string
	for _, c := range candidates {
		if tag, ok := MatchTag(c, available); ok {
			matched = append(matched, tag)
		}
	}
	for _, tag := range available {
		if mentions(lower, strings.ToLower(tag)) {
			matched = append(matched, tag)
		}
	}
	return dedupe(matched)
}

// MatchTag resolves a user-typed topic against the available tags.
func MatchTag(candidate string, available []string) (string, bool) {
	c := domain.NormalizeTag(candidate)
	if utf8.RuneCountInString(c) < 2 {
		return "", false
	}
	for _, tag := range available {
		if domain.NormalizeTag(tag) == c {
			return tag, true
		}
	}
	for _, tag := range available {
		t := domain.NormalizeTag(tag)
		if utf8.RuneCountInString(t) >= 2 && (strings.Contains(t, c) || strings.Contains(c, t)) {
			return tag, true
		}
	}
	for _, tag := range available {
		if sameStem(c, domain.NormalizeTag(tag)) {
			return tag, true
		}
	}
	return "", false
}

// sameStem treats words differing only in a short ending as equal
// ("экономику" and "экономика").
func sameStem(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	shorter := min(len(ra), len(rb))
	if shorter < 4 {
		return false
	}
	common := 0
	for common < shorter && ra[common] == rb[common] {
		common++
	}
	return common >= 4 && common >= shorter-2
}

func mentions(text, tag string) bool {
	if tag == "" {
		return false
	}
	re, err := regexp.Compile(wordStart + regexp.QuoteMeta(tag) + wordEnd)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func splitTags(s string) []string {
	var out []string
	for _, part := range tagSplitter.Split(s, -1) {
		part = strings.Trim(strings.TrimSpace(part), `"'«»`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		key := domain.NormalizeTag(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// IsExportRequest reports whether free text asks for reading material.
func IsExportRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range exportExprs {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// ExtractURLs returns the distinct http(s) links in text, in order.
func ExtractURLs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, u := range urlExpr.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?)»")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
