package bot

import (
	"reflect"
	"testing"
)

func TestParseMinutes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"у меня есть 30 минут", 30, true},
		{"1 час 30 минут", 90, true},
		{"1.5 часа", 90, true},
		{"2,5 ч", 150, true},
		{"полтора часа про Go", 90, true},
		{"есть полчаса", 30, true},
		{"два часа", 120, true},
		{"двадцать минут", 20, true},
		{"дай что-нибудь на час", 60, true},
		{"45 min about kafka", 45, true},
		{"2 hours", 120, true},
		{"half an hour", 30, true},
		{"0 минут", 0, false},
		{"привет", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseMinutes(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseMinutes(%q) = %v, %v; want %v, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseBareMinutes(t *testing.T) {
	t.Parallel()

	if got, ok := ParseBareMinutes(" 45 "); !ok || got != 45 {
		t.Fatalf("expected 45, got %v %v", got, ok)
	}
	if got, ok := ParseBareMinutes("12,5"); !ok || got != 12.5 {
		t.Fatalf("expected 12.5, got %v %v", got, ok)
	}
	for _, text := range []string{"0", "abc", "45 минут", ""} {
		if _, ok := ParseBareMinutes(text); ok {
			t.Fatalf("expected %q to be rejected", text)
		}
	}
}

func TestParseTagsWithoutAvailable(t *testing.T) {
	t.Parallel()

	got := ParseTags("дай материалы по теме базы данных и Go на 30 минут", nil)
	want := []string{"базы данных", "go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseTagsMatchesAvailable(t *testing.T) {
	t.Parallel()

	available := []string{"Базы данных", "Go", "Python"}
	got := ParseTags("дай материалы по теме базы данных и Go на 30 минут", available)
	want := []string{"Базы данных", "Go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = ParseTags("хочу почитать про экономику", []string{"Экономика", "Go"})
	if !reflect.DeepEqual(got, []string{"Экономика"}) {
		t.Fatalf("expected stem match, got %v", got)
	}

	if got := ParseTags("у меня есть 30 минут", available); len(got) != 0 {
		t.Fatalf("expected no tags, got %v", got)
	}
}

func TestMatchTag(t *testing.T) {
	t.Parallel()

	available := []string{"PostgreSQL", "Машинное обучение", "Go"}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"go", "Go", true},
		{"postgres", "PostgreSQL", true},
		{"машинное", "Машинное обучение", true},
		{"a", "", false},
		{"rust", "", false},
	}
	for _, tc := range cases {
		got, ok := MatchTag(tc.in, available)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("MatchTag(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsExportRequest(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"дай что-нибудь почитать", "у меня есть 20 минут", "Выгрузи статьи", "give me something"} {
		if !IsExportRequest(text) {
			t.Fatalf("expected %q to be an export request", text)
		}
	}
	for _, text := range []string{"привет", "спасибо!"} {
		if IsExportRequest(text) {
			t.Fatalf("expected %q not to be an export request", text)
		}
	}
}

func TestExtractURLs(t *testing.T) {
	t.Parallel()

	text := "смотри https://habr.com/ru/articles/1/, и https://go.dev/doc. и ещё раз https://go.dev/doc"
	got := ExtractURLs(text)
	want := []string{"https://habr.com/ru/articles/1/", "https://go.dev/doc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := ExtractURLs("без ссылок"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
