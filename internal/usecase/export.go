package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"PDFLibraryBot/internal/ports"
	"PDFLibraryBot/internal/selector"
)

// ExporterDeps wires repositories and the selector into the export use case.
type ExporterDeps struct {
	Documents ports.DocumentRepository
	Requests  ports.RequestRepository
	Selector  *selector.Selector
	Logger    *slog.Logger
}

// Exporter picks library documents that fit a reading budget.
type Exporter struct {
	documents ports.DocumentRepository
	requests  ports.RequestRepository
	selector  *selector.Selector
	logger    *slog.Logger
}

// NewExporter constructs the export use case.
func NewExporter(deps ExporterDeps) *Exporter {
	sel := deps.Selector
	if sel == nil {
		sel = selector.New()
	}
	return &Exporter{
		documents: deps.Documents,
		requests:  deps.Requests,
		selector:  sel,
		logger:    deps.Logger,
	}
}

// Export selects documents for the user and records the export. The tag
// filter is applied by the selector so an unmatched tag falls back to the
// whole library.
func (e *Exporter) Export(ctx context.Context, userID int64, req selector.Request) (selector.Result, error) {
	docs, err := e.documents.ListByUser(ctx, userID, nil)
	if err != nil {
		return selector.Result{}, fmt.Errorf("load library: %w", err)
	}

	res, err := e.selector.Select(docs, req)
	if err != nil {
		return selector.Result{}, err
	}
	if len(res.Documents) == 0 {
		return res, nil
	}

	ids := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		ids[i] = d.ID
	}
	if e.requests != nil {
		if err := e.requests.Record(ctx, userID, ids); err != nil {
			return selector.Result{}, fmt.Errorf("record export: %w", err)
		}
	}

	if e.logger != nil {
		e.logger.Info("export selected",
			"user_id", userID,
			"target_min", req.TargetMinutes,
			"tags", req.Tags,
			"documents", len(res.Documents),
			"total_min", res.TotalMinutes,
			"fallback", res.Fallback,
		)
	}
	return res, nil
}
