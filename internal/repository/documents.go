package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
)

var documentColumnNames = []string{
	"id", "file_path", "file_hash", "original_filename", "mime_type", "tax_year",
	"doc_type", "filer", "payer_name", "recipient_name", "account_number", "page_count",
	"classification_confidence", "classification_method", "overall_confidence",
	"needs_review", "status", "notes", "extracted_at", "created_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		d                                 Document
		origName, mime, filer, payer      sql.NullString
		recipient, account, method, notes sql.NullString
		taxYear                           sql.NullInt64
		clsConf, overall                  sql.NullFloat64
		extractedAt                       sql.NullTime
		docType, status                   string
	)
	err := row.Scan(
		&d.ID, &d.FilePath, &d.FileHash, &origName, &mime, &taxYear,
		&docType, &filer, &payer, &recipient, &account, &d.PageCount,
		&clsConf, &method, &overall,
		&d.NeedsReview, &status, &notes, &extractedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.OriginalFilename = nullString(origName)
	d.MimeType = nullString(mime)
	d.TaxYear = nullInt(taxYear)
	d.DocType = constants.FormType(docType)
	d.Filer = nullString(filer)
	d.PayerName = nullString(payer)
	d.RecipientName = nullString(recipient)
	d.AccountNumber = nullString(account)
	d.ClassificationConfidence = nullFloat(clsConf)
	d.ClassificationMethod = nullString(method)
	d.OverallConfidence = nullFloat(overall)
	d.Status = constants.DocumentStatus(status)
	d.Notes = nullString(notes)
	d.ExtractedAt = nullTime(extractedAt)
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func (s *Store) selectDocuments() *entsql.Selector {
	return s.b.Select(documentColumnNames...).From(s.b.Table(tableDocuments))
}

func (s *Store) getOne(ctx context.Context, q querier, sel *entsql.Selector, what string) (*Document, error) {
	query, args := sel.Query()
	doc, err := scanDocument(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("document", what)
	}
	if err != nil {
		s.logger.Error("store.document.get_failed", "key", what, "error", err)
		return nil, common.NewDatabaseError("get document", err)
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.getOne(ctx, s.db, s.selectDocuments().Where(entsql.EQ("id", id)), id.String())
}

// FindByHash returns the document stored for a content hash, or a NotFoundError.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Document, error) {
	return s.getOne(ctx, s.db, s.selectDocuments().Where(entsql.EQ("file_hash", hash)), "with hash "+hash)
}

// CreateDocument inserts a document in processing state. When another
// document already holds the same content hash the insert is a no-op and the
// existing row is returned with created=false. The unique index on file_hash
// makes this safe under concurrent uploads.
func (s *Store) CreateDocument(ctx context.Context, nd NewDocument) (*Document, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, err
	}
	ins := s.b.Insert(tableDocuments).
		Columns("id", "file_path", "file_hash", "original_filename", "mime_type", "tax_year",
			"filer", "page_count", "doc_type", "status", "needs_review", "created_at").
		Values(id, nd.FilePath, nd.FileHash, strOrNil(nd.OriginalFilename), strOrNil(nd.MimeType), nd.TaxYear,
			nd.Filer, nd.PageCount, string(constants.FormUnknown), string(constants.StatusProcessing), false, s.now()).
		OnConflict(entsql.ConflictColumns("file_hash"), entsql.DoNothing())

	res, err := exec(ctx, s.db, ins)
	if err != nil {
		s.logger.Error("store.document.create_failed", "file_hash", nd.FileHash, "error", err)
		return nil, false, common.NewDatabaseError("create document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, common.NewDatabaseError("create document", err)
	}
	if n == 0 {
		existing, err := s.FindByHash(ctx, nd.FileHash)
		if err != nil {
			return nil, false, err
		}
		s.logger.Info("store.document.deduplicated", "document_id", existing.ID, "file_hash", nd.FileHash)
		return existing, false, nil
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("store.document.created", "document_id", doc.ID, "file_hash", nd.FileHash)
	return doc, true, nil
}

func (s *Store) updateOne(ctx context.Context, q querier, id uuid.UUID, upd *entsql.UpdateBuilder) error {
	res, err := exec(ctx, q, upd.Where(entsql.EQ("id", id)))
	if err != nil {
		s.logger.Error("store.document.update_failed", "document_id", id, "error", err)
		return common.NewDatabaseError("update document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewDatabaseError("update document", err)
	}
	if n == 0 {
		return common.NewNotFoundError("document", id.String())
	}
	return nil
}

// MarkProcessing moves a document back to processing before a rerun.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.updateOne(ctx, s.db, id, s.b.Update(tableDocuments).
		Set("status", string(constants.StatusProcessing)))
}

// MarkNeedsReview flags a document for a human and records why.
func (s *Store) MarkNeedsReview(ctx context.Context, id uuid.UUID, notes string) error {
	err := s.updateOne(ctx, s.db, id, s.b.Update(tableDocuments).
		Set("status", string(constants.StatusNeedsReview)).
		Set("needs_review", true).
		Set("notes", notes))
	if err == nil {
		s.logger.Warn("store.document.needs_review", "document_id", id, "notes", notes)
	}
	return err
}

// UpdateMetadata applies a user edit after validating it.
func (s *Store) UpdateMetadata(ctx context.Context, id uuid.UUID, u MetadataUpdate) (*Document, error) {
	v := common.NewValidator().
		Field("filer", u.Filer, common.MaxLength(200)).
		Field("tax_year", u.TaxYear, common.IntRange(1900, 2100)).
		Field("doc_type", u.DocType, common.OneOf(constants.FormTypeStrings()...))
	if err := v.Err(); err != nil {
		return nil, err
	}

	upd := s.b.Update(tableDocuments)
	changed := false
	if u.Filer != nil {
		upd.Set("filer", *u.Filer)
		changed = true
	}
	if u.TaxYear != nil {
		upd.Set("tax_year", *u.TaxYear)
		changed = true
	}
	if u.DocType != nil {
		upd.Set("doc_type", *u.DocType)
		changed = true
	}
	if u.Notes != nil {
		upd.Set("notes", *u.Notes)
		changed = true
	}
	if changed {
		if err := s.updateOne(ctx, s.db, id, upd); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete removes the document and everything it owns, then best-effort
// removes the stored file.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	var filePath string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.getOne(ctx, tx, s.selectDocuments().Where(entsql.EQ("id", id)), id.String())
		if err != nil {
			return err
		}
		filePath = doc.FilePath
		for _, table := range []string{tableFields, tableTransactions, tableExtractions} {
			if _, err := exec(ctx, tx, s.b.Delete(table).Where(entsql.EQ("document_id", id))); err != nil {
				return common.NewDatabaseError("delete from "+table, err)
			}
		}
		if _, err := exec(ctx, tx, s.b.Delete(tableDocuments).Where(entsql.EQ("id", id))); err != nil {
			return common.NewDatabaseError("delete document", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if filePath != "" {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("store.document.file_remove_failed", "document_id", id, "path", filePath, "error", err)
		}
	}
	s.logger.Info("store.document.deleted", "document_id", id)
	return nil
}

// List returns documents newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Document, error) {
	sel := s.selectDocuments()
	if f.Filer != nil {
		sel.Where(entsql.EQ("filer", *f.Filer))
	}
	if f.TaxYear != nil {
		sel.Where(entsql.EQ("tax_year", *f.TaxYear))
	}
	if f.DocType != nil {
		sel.Where(entsql.EQ("doc_type", string(*f.DocType)))
	}
	if f.NeedsReview != nil {
		sel.Where(entsql.EQ("needs_review", *f.NeedsReview))
	}
	sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("store.document.list_failed", "error", err)
		return nil, common.NewDatabaseError("list documents", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.NewDatabaseError("scan document", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewDatabaseError("list documents", err)
	}
	return out, nil
}
