package bot

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/mattn/go-runewidth"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/selector"
	"PDFLibraryBot/internal/usecase"
)

const (
	titleWidth     = 60
	urlWidth       = 50
	shortIDLen     = 8
	noTagsLabel    = "Без тегов"
	unknownLabel   = "Неизвестно"
	minutesOfRead  = "чтения"
	greetingFormat = "Привет, %s! 👋\n\n" +
		"Я собираю вашу личную библиотеку PDF.\n" +
		"• Отправьте PDF-файл или ссылку на статью, и я сохраню и проанализирую её.\n" +
		"• Напишите, сколько у вас времени (например, «у меня есть 30 минут про ML»), и я подберу материалы.\n\n" +
		"Команды: /library, /export, /tags, /stats, /help"
	helpText = "Что я умею:\n\n" +
		"📄 PDF-файл: сохраню в библиотеку и оценю время чтения, сложность и темы.\n" +
		"🔗 Ссылка: сохраню страницу в PDF и проанализирую.\n" +
		"📤 /export: подберу материалы под ваше время, можно выбрать тему.\n" +
		"📚 /library: список сохранённых материалов.\n" +
		"🏷 /tags: темы вашей библиотеки.\n" +
		"📊 /stats: статистика.\n" +
		"🗑 /delete <id>: удалить материал по первым символам id.\n" +
		"✖️ /cancel: отменить текущий диалог."
)

var complexityNames = map[domain.ComplexityLevel]string{
	domain.LevelLow:    "низкая",
	domain.LevelMedium: "средняя",
	domain.LevelHigh:   "высокая",
}

// pluralRu picks the Russian noun form for n: one (1, 21), few (2-4, 22-24)
// or many (0, 5-20, 25...).
func pluralRu(n int, one, few, many string) string {
	n = int(math.Abs(float64(n)))
	switch {
	case n%100 >= 11 && n%100 <= 14:
		return many
	case n%10 == 1:
		return one
	case n%10 >= 2 && n%10 <= 4:
		return few
	default:
		return many
	}
}

func wholeMinutes(m float64) int {
	return int(math.Max(1, math.Round(m)))
}

func formatMinutes(m float64) string {
	n := wholeMinutes(m)
	return fmt.Sprintf("%d %s", n, pluralRu(n, "минута", "минуты", "минут"))
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func truncateTitle(title string) string {
	return runewidth.Truncate(title, titleWidth, "…")
}

func complexityName(level domain.ComplexityLevel) string {
	if name, ok := complexityNames[level]; ok {
		return name
	}
	if level == "" {
		return unknownLabel
	}
	return string(level)
}

func tagsLine(tags []string) string {
	if len(tags) == 0 {
		return noTagsLabel
	}
	return strings.Join(tags, ", ")
}

// FormatAnalysisCard renders a saved document for the chat.
func FormatAnalysisCard(doc domain.Document) string {
	vol := doc.Analysis.Volume
	pages := "?"
	if vol.PageCount > 0 {
		pages = strconv.Itoa(vol.PageCount)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 \"%s\"\n", truncateTitle(doc.Title))
	if doc.SourceURL != "" {
		b.WriteString(doc.SourceURL + "\n")
	}
	b.WriteString("\n")

	if vol.ByteSize > 0 {
		fmt.Fprintf(&b, "Объём: %s стр. (%s) • %d слов (%d мин)\n",
			pages, units.HumanSize(float64(vol.ByteSize)), vol.WordCount, wholeMinutes(doc.ReadingMinutes))
	} else {
		fmt.Fprintf(&b, "Объём: %s стр. • %d слов (%d мин)\n", pages, vol.WordCount, wholeMinutes(doc.ReadingMinutes))
	}
	fmt.Fprintf(&b, "Сложность: %s (%.0f/100)\n", complexityName(doc.Analysis.Complexity.Level), doc.Analysis.Complexity.Score)
	fmt.Fprintf(&b, "Темы: %s\n", tagsLine(doc.Tags))
	fmt.Fprintf(&b, "ID: %s", shortID(doc.ID))
	return b.String()
}

// FormatDocumentCaption is the short caption sent with an exported file.
func FormatDocumentCaption(doc domain.Document) string {
	return fmt.Sprintf("📄 %s\n⏱ %d мин • 📊 %s • 🏷 %s",
		truncateTitle(doc.Title), wholeMinutes(doc.ReadingMinutes),
		complexityName(doc.Analysis.Complexity.Level), tagsLine(doc.Tags))
}

// FormatLibraryPage renders one page of the library listing.
func FormatLibraryPage(page usecase.LibraryPage, pageSize int) string {
	if page.Total == 0 {
		return "📚 Ваша библиотека пуста.\nОтправьте PDF или ссылку, чтобы добавить первый материал."
	}
	if pageSize <= 0 {
		pageSize = usecase.DefaultPageSize
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 Ваша библиотека: %d %s\n\n", page.Total, pluralRu(page.Total, "материал", "материала", "материалов"))

	start := (page.Page-1)*pageSize + 1
	for i, doc := range page.Documents {
		fmt.Fprintf(&b, "%d. 📄 %s\n", start+i, truncateTitle(doc.Title))
		fmt.Fprintf(&b, "   ⏱ %d мин • 📊 %s • 🏷 %s\n",
			wholeMinutes(doc.ReadingMinutes), complexityName(doc.Analysis.Complexity.Level), tagsLine(doc.Tags))
		if doc.SourceURL != "" {
			fmt.Fprintf(&b, "   🔗 %s\n", runewidth.Truncate(doc.SourceURL, urlWidth, "..."))
		}
		fmt.Fprintf(&b, "   🆔 %s\n\n", shortID(doc.ID))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatExportSummary closes an export.
func FormatExportSummary(res selector.Result) string {
	n := len(res.Documents)
	return fmt.Sprintf("✅ Отправлено %d %s (%s %s)",
		n, pluralRu(n, "материал", "материала", "материалов"), formatMinutes(res.TotalMinutes), minutesOfRead)
}

// FormatFallbackNotice explains why the export exceeds the budget.
func FormatFallbackNotice(target float64) string {
	return fmt.Sprintf("⚠️ Ни один материал не помещается в %s. Вот последние добавленные:", formatMinutes(target))
}

// IngestSummaryItem is one line of the multi-link summary.
type IngestSummaryItem struct {
	URL        string
	Minutes    float64
	Topic      string
	Complexity domain.ComplexityLevel
}

// FormatMultipleSummary summarizes several ingested links.
func FormatMultipleSummary(items []IngestSummaryItem) string {
	var b strings.Builder
	n := len(items)
	fmt.Fprintf(&b, "✓ Добавлено %d %s:\n\n", n, pluralRu(n, "материал", "материала", "материалов"))

	total := 0.0
	for i, it := range items {
		total += it.Minutes
		fmt.Fprintf(&b, "%d. %s (%d мин, %s): %s\n", i+1, hostOf(it.URL), wholeMinutes(it.Minutes), complexityName(it.Complexity), it.Topic)
	}
	fmt.Fprintf(&b, "\nВсего: %s %s", formatMinutes(total), minutesOfRead)
	return b.String()
}

// FormatStats renders library statistics.
func FormatStats(stats domain.LibraryStats) string {
	var b strings.Builder
	b.WriteString("📊 Статистика\n\n")
	fmt.Fprintf(&b, "Материалов: %d\n", stats.Documents)
	fmt.Fprintf(&b, "Общее время чтения: %s\n", formatTotal(stats.TotalMinutes))
	fmt.Fprintf(&b, "Выгрузок: %d\n", stats.Exports)
	if len(stats.TopTags) > 0 {
		b.WriteString("\nПопулярные темы:\n")
		for _, tc := range stats.TopTags {
			fmt.Fprintf(&b, "🏷 %s: %d\n", tc.Tag, tc.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTags lists the library topics.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return "🏷 Тем пока нет. Добавьте материалы, и я разберу их по темам."
	}
	var b strings.Builder
	b.WriteString("🏷 Темы вашей библиотеки:\n\n")
	for _, t := range tags {
		b.WriteString("• " + t + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTotal(minutes float64) string {
	if minutes <= 0 {
		return "0 минут"
	}
	total := wholeMinutes(minutes)
	if total < 60 {
		return formatMinutes(minutes)
	}
	h, m := total/60, total%60
	if m == 0 {
		return fmt.Sprintf("%d ч", h)
	}
	return fmt.Sprintf("%d ч %d мин", h, m)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
