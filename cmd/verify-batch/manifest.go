package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// manifestRow is one verification to run: an image path and the claims to check.
type manifestRow struct {
	Line      int
	Image     string
	LastName  string
	Birthday  string
	StudentID string
}

var manifestColumns = []string{"image", "last_name", "birthday", "student_id"}

// readManifest parses image,last_name,birthday,student_id rows. A header row
// naming those columns is optional and may reorder them. Relative image paths
// resolve against baseDir.
func readManifest(r io.Reader, baseDir string) ([]manifestRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	index := map[string]int{"image": 0, "last_name": 1, "birthday": 2, "student_id": 3}
	var rows []manifestRow
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if header, ok := parseHeader(rec); ok {
				index = header
				continue
			}
		}

		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		row := manifestRow{
			Line:      line,
			Image:     get("image"),
			LastName:  get("last_name"),
			Birthday:  get("birthday"),
			StudentID: get("student_id"),
		}
		if row.Image == "" {
			return nil, fmt.Errorf("manifest line %d: image path is empty", line)
		}
		if !filepath.IsAbs(row.Image) {
			row.Image = filepath.Join(baseDir, row.Image)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseHeader(rec []string) (map[string]int, bool) {
	index := make(map[string]int, len(rec))
	for i, name := range rec {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range manifestColumns {
		if _, ok := index[col]; !ok {
			return nil, false
		}
	}
	return index, true
}
