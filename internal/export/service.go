// Package export renders retained verification task records as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/store"
)

const sheetName = "Tasks"

// RecordSource lists task records, oldest first.
type RecordSource interface {
	List() []store.TaskRecord
}

// Filter narrows an export. Zero values match everything.
type Filter struct {
	Status constants.TaskStatus
	From   time.Time // inclusive, on CreatedAt
	To     time.Time // exclusive, on CreatedAt
}

func (f Filter) match(r store.TaskRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Service produces XLSX bytes for task exports.
type Service struct {
	source RecordSource
	logger *zap.Logger
}

func NewService(source RecordSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, logger: logger.Named("export")}
}

// ExportTasksXLSX returns a workbook with one row per record matching filter.
func (s *Service) ExportTasksXLSX(ctx context.Context, filter Filter) ([]byte, int, error) {
	start := time.Now()

	var recs []store.TaskRecord
	for _, r := range s.source.List() {
		if filter.match(r) {
			recs = append(recs, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	f, err := BuildWorkbook(recs)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.String("status", string(filter.Status)),
		zap.Int("rows", len(recs)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), len(recs), nil
}

var headers = []string{
	"Task ID",
	"File",
	"Status",
	"Created At",
	"Finished At",
	"Verified",
	"Last Name",
	"Birthday",
	"Student ID",
	"Error Code",
	"Error",
}

// BuildWorkbook lays out records on the Tasks sheet. The caller closes the file.
func BuildWorkbook(recs []store.TaskRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, r.ID)
		write(2, r.Filename)
		write(3, string(r.Status))
		write(4, r.CreatedAt.Format(time.RFC3339))
		if r.FinishedAt != nil {
			write(5, r.FinishedAt.Format(time.RFC3339))
		}
		if r.Result != nil {
			v := r.Result.Verification
			write(6, yesNo(r.Result.Verified))
			write(7, yesNo(v.LastName.Verified))
			write(8, yesNo(v.Birthday.Verified))
			write(9, yesNo(v.StudentID.Verified))
		}
		write(10, r.ErrorCode)
		write(11, truncate(r.Error, 140))
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38) // task id
	_ = f.SetColWidth(sheetName, "B", "B", 24) // file
	_ = f.SetColWidth(sheetName, "C", "C", 12) // status
	_ = f.SetColWidth(sheetName, "D", "E", 22) // timestamps
	_ = f.SetColWidth(sheetName, "F", "I", 11) // verdicts
	_ = f.SetColWidth(sheetName, "J", "J", 22) // error code
	_ = f.SetColWidth(sheetName, "K", "K", 60) // error
	if len(recs) > 0 {
		_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
	return f, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
