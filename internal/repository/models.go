package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/constants"
)

// Document is a row of the documents table.
type Document struct {
	ID                       uuid.UUID                `json:"id"`
	FilePath                 string                   `json:"file_path"`
	FileHash                 string                   `json:"file_hash"`
	OriginalFilename         *string                  `json:"original_filename"`
	MimeType                 *string                  `json:"mime_type"`
	TaxYear                  *int                     `json:"tax_year"`
	DocType                  constants.FormType       `json:"doc_type"`
	Filer                    *string                  `json:"filer"`
	PayerName                *string                  `json:"payer_name"`
	RecipientName            *string                  `json:"recipient_name"`
	AccountNumber            *string                  `json:"account_number"`
	PageCount                int                      `json:"page_count"`
	ClassificationConfidence *float64                 `json:"classification_confidence"`
	ClassificationMethod     *string                  `json:"classification_method"`
	OverallConfidence        *float64                 `json:"overall_confidence"`
	NeedsReview              bool                     `json:"needs_review"`
	Status                   constants.DocumentStatus `json:"status"`
	Notes                    *string                  `json:"notes"`
	ExtractedAt              *time.Time               `json:"extracted_at"`
	CreatedAt                time.Time                `json:"created_at"`
}

// NewDocument is what an upload knows before classification.
type NewDocument struct {
	FilePath         string
	FileHash         string
	OriginalFilename string
	MimeType         string
	Filer            *string
	TaxYear          *int
	PageCount        int
}

// Extraction is one stored extraction run.
type Extraction struct {
	ID         uuid.UUID          `json:"id"`
	DocumentID uuid.UUID          `json:"document_id"`
	FormType   constants.FormType `json:"form_type"`
	Data       json.RawMessage    `json:"raw_json"`
	Confidence *float64           `json:"confidence"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Field is a flattened field row.
type Field struct {
	Path       string   `json:"field_path"`
	Value      string   `json:"field_value"`
	Confidence *float64 `json:"confidence"`
}

// Transaction is a typed 1099-DA transaction row. Text and Flags are keyed by
// column name; absent keys are NULL.
type Transaction struct {
	ID               uuid.UUID          `json:"id"`
	DocumentID       uuid.UUID          `json:"document_id"`
	Seq              int                `json:"seq"`
	Text             map[string]*string `json:"text"`
	Flags            map[string]*int    `json:"flags"`
	TransactionCount *int64             `json:"transaction_count"`
	Confidence       *float64           `json:"confidence"`
	Raw              json.RawMessage    `json:"raw_json"`
}

// SaveExtractionRequest carries one finished run into the store.
type SaveExtractionRequest struct {
	DocumentID               uuid.UUID
	DocType                  constants.FormType
	ClassificationConfidence float64
	ClassificationMethod     constants.ClassificationMethod
	Data                     any
	OverallConfidence        float64
	NeedsReview              bool
}

// MetadataUpdate is a user edit. Nil fields are left unchanged.
type MetadataUpdate struct {
	Filer   *string
	TaxYear *int
	DocType *string
	Notes   *string
}

// ListFilter narrows List. Nil fields do not filter.
type ListFilter struct {
	Filer       *string
	TaxYear     *int
	DocType     *constants.FormType
	NeedsReview *bool
	Limit       int
}

type Stats struct {
	Total         int `json:"total"`
	NeedsReview   int `json:"needs_review"`
	Processed     int `json:"processed"`
	ReadyToExport int `json:"ready_to_export"`
	CryptoDocs    int `json:"crypto_docs"`
}
