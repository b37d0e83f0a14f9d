package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

var longColumns = append(append([]string(nil), BaseColumns...), "field_path", "field_value", "confidence")

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// longRows emits one row per field; a document without fields still gets
// one row with empty field columns.
func longRows(doc *repository.Document, fields []repository.Field) [][]string {
	base := baseRow(doc)
	if len(fields) == 0 {
		return [][]string{append(append([]string(nil), base...), "", "", "")}
	}
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		row := append(append([]string(nil), base...), f.Path, f.Value, floatCell(f.Confidence))
		rows = append(rows, row)
	}
	return rows
}

// DocumentCSVLong exports one document in long format.
func (s *Service) DocumentCSVLong(ctx context.Context, id uuid.UUID) ([]byte, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return writeCSV(append([][]string{longColumns}, longRows(doc, fields)...))
}

// AllCSVLong exports every document in long format, newest first.
func (s *Service) AllCSVLong(ctx context.Context) ([]byte, error) {
	docs, err := s.store.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	rows := [][]string{longColumns}
	for _, d := range docs {
		fields, err := s.store.ListFields(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, longRows(d, fields)...)
	}
	s.logger.Info("export.csv_long.ok", "documents", len(docs), "rows", len(rows)-1)
	return writeCSV(rows)
}

// wide lays out documents one per row under the base columns plus the
// sorted union of their field paths.
func wide(docs []*repository.Document, fields map[uuid.UUID][]repository.Field) [][]string {
	paths := map[string]struct{}{}
	for _, fs := range fields {
		for _, f := range fs {
			paths[f.Path] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	header := append(append([]string(nil), BaseColumns...), sorted...)
	rows := [][]string{header}
	for _, d := range docs {
		values := make(map[string]string, len(fields[d.ID]))
		for _, f := range fields[d.ID] {
			values[f.Path] = f.Value
		}
		row := baseRow(d)
		for _, p := range sorted {
			row = append(row, values[p])
		}
		rows = append(rows, row)
	}
	return rows
}

// DocumentCSVWide exports one document as a single wide row.
func (s *Service) DocumentCSVWide(ctx context.Context, id uuid.UUID) ([]byte, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListFields(ctx, id)
	if err != nil {
		return nil, err
	}
	return writeCSV(wide([]*repository.Document{doc}, map[uuid.UUID][]repository.Field{id: fields}))
}

// AllCSVWide exports every document as one wide row each.
func (s *Service) AllCSVWide(ctx context.Context) ([]byte, error) {
	docs, err := s.store.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	fields := make(map[uuid.UUID][]repository.Field, len(docs))
	for _, d := range docs {
		fs, err := s.store.ListFields(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		fields[d.ID] = fs
	}
	rows := wide(docs, fields)
	s.logger.Info("export.csv_wide.ok", "documents", len(docs), "columns", len(rows[0]))
	return writeCSV(rows)
}
