// Package report renders request audit trails as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/frahmantamala/travel-approval/internal/travelrequest"
)

const (
	requestsSheet = "Requests"
	historySheet  = "History"
	timeLayout    = "2006-01-02 15:04:05"
	dateLayout    = "2006-01-02"
)

var (
	requestColumns = []string{"Request Number", "Type", "Requester", "Department", "Destination", "Start", "End", "Budget", "Status", "Exec Level", "Returns", "Final Approved", "Updated"}
	historyColumns = []string{"Request Number", "When", "Action", "Actor", "Role", "From", "To", "Comments"}
)

// Source is the slice of the request repository an export reads.
type Source interface {
	List(ctx context.Context, filter travelrequest.ListFilter) ([]*travelrequest.Request, error)
	ListHistory(ctx context.Context, requestID string) ([]*travelrequest.History, error)
}

type Exporter struct {
	src    Source
	logger *slog.Logger
}

func NewExporter(src Source, logger *slog.Logger) *Exporter {
	return &Exporter{src: src, logger: logger}
}

// Workbook builds a two sheet workbook: one row per request, then every
// history row of those requests in chain order.
func (e *Exporter) Workbook(ctx context.Context, filter travelrequest.ListFilter) (*excelize.File, int, error) {
	requests, err := e.src.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", requestsSheet); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := file.NewSheet(historySheet); err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to add history sheet: %w", err)
	}
	if err := writeHeader(file, requestsSheet, requestColumns); err != nil {
		file.Close()
		return nil, 0, err
	}
	if err := writeHeader(file, historySheet, historyColumns); err != nil {
		file.Close()
		return nil, 0, err
	}

	historyRow := 2
	for i, req := range requests {
		if err := writeRow(file, requestsSheet, i+2, requestValues(req)); err != nil {
			file.Close()
			return nil, 0, err
		}

		rows, err := e.src.ListHistory(ctx, req.ID)
		if err != nil {
			file.Close()
			return nil, 0, err
		}
		for _, h := range rows {
			if err := writeRow(file, historySheet, historyRow, historyValues(req.RequestNumber, h)); err != nil {
				file.Close()
				return nil, 0, err
			}
			historyRow++
		}
	}

	e.logger.InfoContext(ctx, "history workbook built",
		"requests", len(requests),
		"history_rows", historyRow-2)
	return file, len(requests), nil
}

// Write streams the workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, filter travelrequest.ListFilter) (int, error) {
	file, n, err := e.Workbook(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return n, nil
}

// Save writes the workbook to path.
func (e *Exporter) Save(ctx context.Context, path string, filter travelrequest.ListFilter) (int, error) {
	file, n, err := e.Workbook(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	if err := file.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}
	return n, nil
}

func writeHeader(file *excelize.File, sheet string, columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := writeRow(file, sheet, 1, values); err != nil {
		return err
	}
	return file.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set %s row %d: %w", sheet, row, err)
	}
	return nil
}

func requestValues(req *travelrequest.Request) []interface{} {
	budget := ""
	if req.HasBudget {
		budget = travelrequest.EffectiveBudget(req).StringFixed(2)
	}
	return []interface{}{
		req.RequestNumber,
		req.RequestType,
		req.RequesterID,
		req.DepartmentID,
		req.Destination,
		formatDate(req.TravelStartDate),
		formatDate(req.TravelEndDate),
		budget,
		req.Status,
		req.ExecLevel,
		req.ReturnCount,
		formatTimePtr(req.FinalApprovedAt),
		formatTime(req.UpdatedAt),
	}
}

func historyValues(number string, h *travelrequest.History) []interface{} {
	return []interface{}{
		number,
		formatTime(h.CreatedAt),
		h.Action,
		h.ActorID,
		h.ActorRole,
		h.PreviousStatus,
		h.NewStatus,
		h.Comments,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
