package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/forms"
)

const insertChunk = 100

// SaveExtraction appends an extraction record, replaces the document's
// flattened fields and transactions, and updates the document, all in one
// transaction.
func (s *Store) SaveExtraction(ctx context.Context, req SaveExtractionRequest) (*Extraction, error) {
	raw, err := json.Marshal(req.Data)
	if err != nil {
		return nil, common.NewAppError("INVALID_EXTRACTION", "extraction is not JSON encodable", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := s.now()
	status := constants.StatusProcessed
	if req.NeedsReview {
		status = constants.StatusNeedsReview
	}

	var nFields, nTx int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getOne(ctx, tx, s.selectDocuments().Where(entsql.EQ("id", req.DocumentID)), req.DocumentID.String()); err != nil {
			return err
		}

		ins := s.b.Insert(tableExtractions).
			Columns("id", "document_id", "form_type", "raw_json", "confidence", "created_at").
			Values(id, req.DocumentID, string(req.DocType), string(raw), req.OverallConfidence, now)
		if _, err := exec(ctx, tx, ins); err != nil {
			return common.NewDatabaseError("insert extraction", err)
		}

		if nFields, err = s.replaceFields(ctx, tx, req.DocumentID, id, req.Data); err != nil {
			return err
		}
		if nTx, err = s.replaceTransactions(ctx, tx, req.DocumentID, req.DocType, req.Data); err != nil {
			return err
		}

		upd := s.b.Update(tableDocuments).
			Set("doc_type", string(req.DocType)).
			Set("classification_confidence", req.ClassificationConfidence).
			Set("classification_method", string(req.ClassificationMethod)).
			Set("overall_confidence", req.OverallConfidence).
			Set("needs_review", req.NeedsReview).
			Set("status", string(status)).
			Set("extracted_at", now)
		ident := forms.IdentityOf(req.Data)
		if ident.PayerName != nil {
			upd.Set("payer_name", *ident.PayerName)
		}
		if ident.RecipientName != nil {
			upd.Set("recipient_name", *ident.RecipientName)
		}
		if ident.AccountNumber != nil {
			upd.Set("account_number", *ident.AccountNumber)
		}
		return s.updateOne(ctx, tx, req.DocumentID, upd)
	})
	if err != nil {
		s.logger.Error("store.extraction.save_failed", "document_id", req.DocumentID, "error", err)
		return nil, err
	}

	s.logger.Info("store.extraction.saved",
		"document_id", req.DocumentID,
		"extraction_id", id,
		"form_type", req.DocType,
		"fields", nFields,
		"transactions", nTx,
		"needs_review", req.NeedsReview,
	)
	conf := req.OverallConfidence
	return &Extraction{
		ID:         id,
		DocumentID: req.DocumentID,
		FormType:   req.DocType,
		Data:       raw,
		Confidence: &conf,
		CreatedAt:  now,
	}, nil
}

func (s *Store) replaceFields(ctx context.Context, tx *sql.Tx, docID, extractionID uuid.UUID, data any) (int, error) {
	if _, err := exec(ctx, tx, s.b.Delete(tableFields).Where(entsql.EQ("document_id", docID))); err != nil {
		return 0, common.NewDatabaseError("clear fields", err)
	}

	seen := make(map[string]bool)
	var rows []forms.Field
	for _, f := range forms.Flatten(data) {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		rows = append(rows, f)
	}

	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		ins := s.b.Insert(tableFields).Columns("id", "document_id", "extraction_id", "field_path", "field_value", "confidence")
		for _, f := range rows[start:end] {
			id, err := uuid.NewV7()
			if err != nil {
				return 0, err
			}
			ins.Values(id, docID, extractionID, f.Path, f.Value, f.Confidence)
		}
		if _, err := exec(ctx, tx, ins); err != nil {
			return 0, common.NewDatabaseError("insert fields", err)
		}
	}
	return len(rows), nil
}

// replaceTransactions clears the document's transactions and, for 1099-DA
// extractions, writes one typed row per transaction in extraction order.
func (s *Store) replaceTransactions(ctx context.Context, tx *sql.Tx, docID uuid.UUID, ft constants.FormType, data any) (int, error) {
	if _, err := exec(ctx, tx, s.b.Delete(tableTransactions).Where(entsql.EQ("document_id", docID))); err != nil {
		return 0, common.NewDatabaseError("clear transactions", err)
	}
	if ft != constants.Form1099DA {
		return 0, nil
	}
	decoded, err := forms.Decode(ft, data)
	if err != nil {
		s.logger.Warn("store.transactions.skipped", "document_id", docID, "error", err)
		return 0, nil
	}
	da, ok := decoded.(forms.DA)
	if !ok || len(da.Transactions) == 0 {
		return 0, nil
	}

	cols := append([]string{"id", "document_id", "seq"}, transactionTextColumns...)
	cols = append(cols, transactionFlagColumns...)
	cols = append(cols, "transaction_count", "confidence", "raw_json")

	for start := 0; start < len(da.Transactions); start += insertChunk {
		end := min(start+insertChunk, len(da.Transactions))
		ins := s.b.Insert(tableTransactions).Columns(cols...)
		for i, t := range da.Transactions[start:end] {
			id, err := uuid.NewV7()
			if err != nil {
				return 0, err
			}
			text, flags := transactionColumns(t)
			vals := []any{id, docID, start + i}
			for _, c := range transactionTextColumns {
				vals = append(vals, text[c])
			}
			for _, c := range transactionFlagColumns {
				vals = append(vals, flags[c])
			}
			var rawJSON *string
			if t.Raw != nil {
				if b, err := json.Marshal(t.Raw); err == nil {
					r := string(b)
					rawJSON = &r
				}
			}
			vals = append(vals, t.TransactionCount.Ptr(), t.Confidence, rawJSON)
			ins.Values(vals...)
		}
		if _, err := exec(ctx, tx, ins); err != nil {
			return 0, common.NewDatabaseError("insert transactions", err)
		}
	}
	return len(da.Transactions), nil
}

func transactionColumns(t forms.DATransaction) (map[string]*string, map[string]*int) {
	text := map[string]*string{
		"asset_code":              t.AssetCode.Ptr(),
		"asset_name":              t.AssetName.Ptr(),
		"units":                   t.Units.Ptr(),
		"date_acquired":           t.DateAcquired.Ptr(),
		"date_sold":               t.DateSold.Ptr(),
		"proceeds":                t.Proceeds.Ptr(),
		"cost_basis":              t.CostBasis.Ptr(),
		"accrued_market_discount": t.AccruedMarketDiscount.Ptr(),
		"wash_sale_disallowed":    t.WashSaleDisallowed.Ptr(),
		"proceeds_type":           t.ProceedsType.Ptr(),
		"federal_withheld":        t.FederalWithheld.Ptr(),
		"gain_loss_term":          t.GainLossTerm.Ptr(),
		"aggregate_flag":          t.AggregateFlag.Ptr(),
		"nft_first_sale_proceeds": t.NFTFirstSaleProceeds.Ptr(),
		"units_transferred_in":    t.UnitsTransferredIn.Ptr(),
		"transfer_in_date":        t.TransferInDate.Ptr(),
		"form_8949_code":          t.Form8949Code.Ptr(),
		"state_name":              t.StateName.Ptr(),
		"state_id":                t.StateID.Ptr(),
		"state_withheld":          t.StateWithheld.Ptr(),
	}
	flags := map[string]*int{
		"basis_reported_to_irs": t.BasisReportedToIRS.Ptr(),
		"qof_proceeds":          t.QOFProceeds.Ptr(),
		"loss_not_allowed":      t.LossNotAllowed.Ptr(),
		"cash_only":             t.CashOnly.Ptr(),
		"customer_info_used":    t.CustomerInfoUsed.Ptr(),
		"noncovered":            t.Noncovered.Ptr(),
	}
	return text, flags
}

// LatestExtraction returns the most recent extraction record for a document.
func (s *Store) LatestExtraction(ctx context.Context, documentID uuid.UUID) (*Extraction, error) {
	sel := s.b.Select("id", "document_id", "form_type", "raw_json", "confidence", "created_at").
		From(s.b.Table(tableExtractions)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(1)
	query, args := sel.Query()

	var (
		e        Extraction
		formType string
		raw      []byte
		conf     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&e.ID, &e.DocumentID, &formType, &raw, &conf, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("extraction for document", documentID.String())
	}
	if err != nil {
		return nil, common.NewDatabaseError("get latest extraction", err)
	}
	e.FormType = constants.FormType(formType)
	e.Data = json.RawMessage(raw)
	e.Confidence = nullFloat(conf)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// ListFields returns a document's flattened fields ordered by path.
func (s *Store) ListFields(ctx context.Context, documentID uuid.UUID) ([]Field, error) {
	sel := s.b.Select("field_path", "field_value", "confidence").
		From(s.b.Table(tableFields)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy("field_path")
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewDatabaseError("list fields", err)
	}
	defer rows.Close()

	var out []Field
	for rows.Next() {
		var (
			f    Field
			conf sql.NullFloat64
		)
		if err := rows.Scan(&f.Path, &f.Value, &conf); err != nil {
			return nil, common.NewDatabaseError("scan field", err)
		}
		f.Confidence = nullFloat(conf)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewDatabaseError("list fields", err)
	}
	return out, nil
}

// ListTransactions returns a document's 1099-DA transactions in extraction order.
func (s *Store) ListTransactions(ctx context.Context, documentID uuid.UUID) ([]Transaction, error) {
	cols := append([]string{"id", "document_id", "seq"}, transactionTextColumns...)
	cols = append(cols, transactionFlagColumns...)
	cols = append(cols, "transaction_count", "confidence", "raw_json")

	sel := s.b.Select(cols...).
		From(s.b.Table(tableTransactions)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy("seq")
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewDatabaseError("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t     Transaction
			text  = make([]sql.NullString, len(transactionTextColumns))
			flags = make([]sql.NullInt64, len(transactionFlagColumns))
			count sql.NullInt64
			conf  sql.NullFloat64
			raw   []byte
		)
		dest := []any{&t.ID, &t.DocumentID, &t.Seq}
		for i := range text {
			dest = append(dest, &text[i])
		}
		for i := range flags {
			dest = append(dest, &flags[i])
		}
		dest = append(dest, &count, &conf, &raw)
		if err := rows.Scan(dest...); err != nil {
			return nil, common.NewDatabaseError("scan transaction", err)
		}

		t.Text = make(map[string]*string, len(text))
		for i, c := range transactionTextColumns {
			t.Text[c] = nullString(text[i])
		}
		t.Flags = make(map[string]*int, len(flags))
		for i, c := range transactionFlagColumns {
			t.Flags[c] = nullInt(flags[i])
		}
		if count.Valid {
			n := count.Int64
			t.TransactionCount = &n
		}
		t.Confidence = nullFloat(conf)
		if len(raw) > 0 {
			t.Raw = json.RawMessage(raw)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewDatabaseError("list transactions", err)
	}
	return out, nil
}
