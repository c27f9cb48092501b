package domain

import "time"

// ExtractedText is what the PDF reader learned about a document before analysis.
type ExtractedText struct {
	SourceName string
	FirstPage  string
	FullText   string
	PageCount  int
	ByteSize   int64
	WordCount  int
	CharCount  int
	WordMethod string
	Language   string

	// ReadingMinutes and Reading are the host-side estimate from a page scan;
	// zero and nil when the scan did not run.
	ReadingMinutes float64
	Reading        *ReadingBreakdown
}

// FetchedPDF is a PDF obtained from a URL, either downloaded or rendered.
type FetchedPDF struct {
	SourceURL string
	FileName  string
	Title     string
	Data      []byte
	Rendered  bool
}

// DialogStep is a position in the export conversation.
type DialogStep string

const (
	StepAwaitMinutes DialogStep = "await_minutes"
	StepAwaitTag     DialogStep = "await_tag"
)

// Dialog is the per-user conversation state.
type Dialog struct {
	Step      DialogStep `json:"step"`
	Minutes   float64    `json:"minutes,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
