package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

const (
	sheetDocuments    = "Documents"
	sheetFields       = "Fields"
	sheetTransactions = "Transactions"
)

// WorkbookXLSX returns an XLSX workbook (as bytes) with a Documents sheet,
// a long-format Fields sheet and a Transactions sheet for 1099-DA rows.
func (s *Service) WorkbookXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	docs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheetDocuments); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetFields, sheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	docHeader := append(append([]string(nil), BaseColumns...), "status", "notes", "file_path")
	if err := setRow(f, sheetDocuments, 1, stringsToCells(docHeader)); err != nil {
		return nil, err
	}
	if err := setRow(f, sheetFields, 1, stringsToCells([]string{"document_id", "field_path", "field_value", "confidence"})); err != nil {
		return nil, err
	}
	txHeader := []string{"document_id", "seq"}
	txHeader = append(txHeader, repository.TransactionTextColumns()...)
	txHeader = append(txHeader, repository.TransactionFlagColumns()...)
	txHeader = append(txHeader, "transaction_count", "confidence")
	if err := setRow(f, sheetTransactions, 1, stringsToCells(txHeader)); err != nil {
		return nil, err
	}

	fieldRow, txRow := 2, 2
	for i, d := range docs {
		row := stringsToCells(baseRow(d))
		row = append(row, string(d.Status), strCell(d.Notes), d.FilePath)
		if err := setRow(f, sheetDocuments, i+2, row); err != nil {
			return nil, err
		}

		fields, err := s.store.ListFields(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, fld := range fields {
			cells := []any{d.ID.String(), fld.Path, fld.Value, nil}
			if fld.Confidence != nil {
				cells[3] = *fld.Confidence
			}
			if err := setRow(f, sheetFields, fieldRow, cells); err != nil {
				return nil, err
			}
			fieldRow++
		}

		txs, err := s.store.ListTransactions(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if err := setRow(f, sheetTransactions, txRow, transactionCells(d, tx)); err != nil {
				return nil, err
			}
			txRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheetDocuments, "A", "A", 38) // id
	_ = f.SetColWidth(sheetDocuments, "B", "B", 18) // doc type
	_ = f.SetColWidth(sheetDocuments, "D", "G", 24) // names
	_ = f.SetColWidth(sheetFields, "A", "A", 38)
	_ = f.SetColWidth(sheetFields, "B", "C", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"fields", fieldRow-2,
		"transactions", txRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func transactionCells(d *repository.Document, tx repository.Transaction) []any {
	cells := []any{d.ID.String(), tx.Seq}
	for _, c := range repository.TransactionTextColumns() {
		cells = append(cells, strCell(tx.Text[c]))
	}
	for _, c := range repository.TransactionFlagColumns() {
		if v := tx.Flags[c]; v != nil {
			cells = append(cells, *v)
		} else {
			cells = append(cells, nil)
		}
	}
	if tx.TransactionCount != nil {
		cells = append(cells, *tx.TransactionCount)
	} else {
		cells = append(cells, nil)
	}
	if tx.Confidence != nil {
		cells = append(cells, *tx.Confidence)
	} else {
		cells = append(cells, nil)
	}
	return cells
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func stringsToCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
