package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/ocr"
)

const studentCard = "STUDENT ID: S12345678\nLast Name: Doe\nFirst Name: John\nDate of Birth: 1990-01-15"

type documentEngine struct{}

func (documentEngine) Recognize(context.Context, []byte, constants.Profile) (string, error) {
	return studentCard, nil
}

func (documentEngine) Probe(context.Context) error { return nil }

func (documentEngine) Info(context.Context) ocr.EngineInfo { return ocr.EngineInfo{Name: "document"} }

func TestReadManifest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []manifestRow
	}{
		{
			name:  "no header",
			input: "card.png,Doe,1990-01-15,S12345678\n",
			want:  []manifestRow{{Line: 1, Image: "/data/card.png", LastName: "Doe", Birthday: "1990-01-15", StudentID: "S12345678"}},
		},
		{
			name:  "reordered header and comment",
			input: "# batch 7\nstudent_id,image,birthday,last_name\nS1, /abs/a.jpg, \"March 3, 2001\", Smith\n",
			want:  []manifestRow{{Line: 3, Image: "/abs/a.jpg", LastName: "Smith", Birthday: "March 3, 2001", StudentID: "S1"}},
		},
		{
			name:  "short row keeps empty claims",
			input: "card.png,Doe\n",
			want:  []manifestRow{{Line: 1, Image: "/data/card.png", LastName: "Doe"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readManifest(strings.NewReader(tt.input), "/data")
			if err != nil {
				t.Fatalf("readManifest: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("rows = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("row %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := readManifest(strings.NewReader(",Doe,1990-01-15,1\n"), "/data"); err == nil {
		t.Fatal("expected an error for an empty image path")
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 16))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "good.png"))
	writePNG(t, filepath.Join(dir, "wrong.png"))

	rows := []manifestRow{
		{Line: 1, Image: filepath.Join(dir, "good.png"), LastName: "Doe", Birthday: "1990-01-15", StudentID: "S12345678"},
		{Line: 2, Image: filepath.Join(dir, "wrong.png"), LastName: "Doe", Birthday: "1990-01-15", StudentID: "ZZZZZZZZ"},
		{Line: 3, Image: filepath.Join(dir, "missing.png"), LastName: "Doe", Birthday: "1990-01-15", StudentID: "S12345678"},
		{Line: 4, Image: filepath.Join(dir, "good.png"), LastName: "", Birthday: "1990-01-15", StudentID: "S12345678"},
	}
	extractor := ocr.NewExtractor(documentEngine{}, ocr.Config{WorkingWidth: 64}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := runBatch(ctx, rows, extractor, batchOptions{Workers: 2, TaskTimeout: 5 * time.Second, PollInterval: 10 * time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}

	if summary.Rows != 4 || summary.Submitted != 2 || summary.Rejected != 2 {
		t.Fatalf("unexpected submission counts %+v", summary)
	}
	if summary.Verified != 1 || summary.NotVerified != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected verdict counts %+v", summary)
	}

	f, err := excelize.OpenReader(bytes.NewReader(summary.XLSX))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()
	xrows, err := f.GetRows("Tasks")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(xrows) != 3 {
		t.Fatalf("expected header + 2 task rows, got %d", len(xrows))
	}
}
