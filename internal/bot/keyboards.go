package bot

import (
	"fmt"
	"sort"
	"strings"

	"PDFLibraryBot/internal/ports"
)

// Reply keyboard captions.
const (
	btnLibrary   = "📚 Моя библиотека"
	btnExport    = "📤 Выгрузить материалы"
	btnStats     = "📊 Статистика"
	btnHelp      = "❓ Помощь"
	btnAllTopics = "📚 Все темы"
	tagPrefix    = "🏷 "
)

const (
	callbackLibrary = "lib"
	callbackNoop    = "noop"
)

func mainKeyboard() [][]string {
	return [][]string{
		{btnLibrary, btnExport},
		{btnStats, btnHelp},
	}
}

func timeKeyboard() [][]string {
	return [][]string{
		{"15 минут", "30 минут"},
		{"1 час", "2 часа"},
	}
}

// tagsKeyboard lists tags two per row under an "all topics" button.
func tagsKeyboard(tags []string) [][]string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	rows := [][]string{{btnAllTopics}}
	var row []string
	for _, tag := range sorted {
		row = append(row, tagPrefix+tag)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// paginationButtons returns nil when everything fits on one page.
// Pages are 1-based.
func paginationButtons(page, pages int) [][]ports.Button {
	if pages <= 1 {
		return nil
	}
	var nav []ports.Button
	if page > 1 {
		nav = append(nav, ports.Button{Text: "⬅️ Назад", Data: fmt.Sprintf("%s:%d", callbackLibrary, page-1)})
	}
	nav = append(nav, ports.Button{Text: fmt.Sprintf("%d/%d", page, pages), Data: callbackNoop})
	if page < pages {
		nav = append(nav, ports.Button{Text: "Вперед ➡️", Data: fmt.Sprintf("%s:%d", callbackLibrary, page+1)})
	}
	return [][]ports.Button{nav}
}

func stripTagButton(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), strings.TrimSpace(tagPrefix)))
}
