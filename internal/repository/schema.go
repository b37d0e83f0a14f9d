package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableDocuments    = "documents"
	tableExtractions  = "form_extractions"
	tableFields       = "extracted_fields"
	tableTransactions = "transactions_1099da"
)

var (
	documentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "file_path", Type: field.TypeString},
		{Name: "file_hash", Type: field.TypeString, Unique: true},
		{Name: "original_filename", Type: field.TypeString, Nullable: true},
		{Name: "mime_type", Type: field.TypeString, Nullable: true},
		{Name: "tax_year", Type: field.TypeInt, Nullable: true},
		{Name: "doc_type", Type: field.TypeString, Default: "unknown"},
		{Name: "filer", Type: field.TypeString, Nullable: true, Size: 200},
		{Name: "payer_name", Type: field.TypeString, Nullable: true},
		{Name: "recipient_name", Type: field.TypeString, Nullable: true},
		{Name: "account_number", Type: field.TypeString, Nullable: true},
		{Name: "page_count", Type: field.TypeInt, Default: 0},
		{Name: "classification_confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "classification_method", Type: field.TypeString, Nullable: true},
		{Name: "overall_confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "status", Type: field.TypeString, Default: "received"},
		{Name: "notes", Type: field.TypeString, Nullable: true},
		{Name: "extracted_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	documentsTable = &schema.Table{
		Name:       tableDocuments,
		Columns:    documentsColumns,
		PrimaryKey: []*schema.Column{documentsColumns[0]},
	}

	extractionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "form_type", Type: field.TypeString},
		{Name: "raw_json", Type: field.TypeJSON, Nullable: true},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "document_id", Type: field.TypeUUID},
	}
	extractionsTable = &schema.Table{
		Name:       tableExtractions,
		Columns:    extractionsColumns,
		PrimaryKey: []*schema.Column{extractionsColumns[0]},
	}

	fieldsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "extraction_id", Type: field.TypeUUID},
		{Name: "field_path", Type: field.TypeString},
		{Name: "field_value", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "document_id", Type: field.TypeUUID},
	}
	fieldsTable = &schema.Table{
		Name:       tableFields,
		Columns:    fieldsColumns,
		PrimaryKey: []*schema.Column{fieldsColumns[0]},
	}

	transactionsColumns = append([]*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "seq", Type: field.TypeInt},
	}, append(transactionValueColumns(),
		&schema.Column{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		&schema.Column{Name: "raw_json", Type: field.TypeJSON, Nullable: true},
		&schema.Column{Name: "document_id", Type: field.TypeUUID},
	)...)
	transactionsTable = &schema.Table{
		Name:       tableTransactions,
		Columns:    transactionsColumns,
		PrimaryKey: []*schema.Column{transactionsColumns[0]},
	}

	// Tables lists every table the store owns, parents first.
	Tables = []*schema.Table{documentsTable, extractionsTable, fieldsTable, transactionsTable}
)

// transactionTextColumns and transactionFlagColumns name the typed 1099-DA columns.
var (
	transactionTextColumns = []string{
		"asset_code", "asset_name", "units", "date_acquired", "date_sold",
		"proceeds", "cost_basis", "accrued_market_discount", "wash_sale_disallowed",
		"proceeds_type", "federal_withheld", "gain_loss_term", "aggregate_flag",
		"nft_first_sale_proceeds", "units_transferred_in", "transfer_in_date",
		"form_8949_code", "state_name", "state_id", "state_withheld",
	}
	transactionFlagColumns = []string{
		"basis_reported_to_irs", "qof_proceeds", "loss_not_allowed",
		"cash_only", "customer_info_used", "noncovered",
	}
)

func transactionValueColumns() []*schema.Column {
	cols := make([]*schema.Column, 0, len(transactionTextColumns)+len(transactionFlagColumns)+1)
	for _, name := range transactionTextColumns {
		cols = append(cols, &schema.Column{Name: name, Type: field.TypeString, Nullable: true})
	}
	for _, name := range transactionFlagColumns {
		cols = append(cols, &schema.Column{Name: name, Type: field.TypeInt, Nullable: true})
	}
	return append(cols, &schema.Column{Name: "transaction_count", Type: field.TypeInt, Nullable: true})
}

func init() {
	for _, t := range []*schema.Table{extractionsTable, fieldsTable, transactionsTable} {
		docCol := column(t, "document_id")
		t.ForeignKeys = []*schema.ForeignKey{{
			Symbol:     t.Name + "_documents_" + t.Name,
			Columns:    []*schema.Column{docCol},
			RefColumns: []*schema.Column{documentsColumns[0]},
			RefTable:   documentsTable,
			OnDelete:   schema.Cascade,
		}}
	}

	documentsTable.Indexes = []*schema.Index{
		{Name: "document_created_at", Columns: []*schema.Column{column(documentsTable, "created_at")}},
		{Name: "document_filer_tax_year", Columns: []*schema.Column{column(documentsTable, "filer"), column(documentsTable, "tax_year")}},
		{Name: "document_needs_review", Columns: []*schema.Column{column(documentsTable, "needs_review")}},
	}
	extractionsTable.Indexes = []*schema.Index{
		{Name: "extraction_document_id_created_at", Columns: []*schema.Column{column(extractionsTable, "document_id"), column(extractionsTable, "created_at")}},
	}
	fieldsTable.Indexes = []*schema.Index{
		{Name: "extractedfield_document_id_field_path", Unique: true, Columns: []*schema.Column{column(fieldsTable, "document_id"), column(fieldsTable, "field_path")}},
	}
	transactionsTable.Indexes = []*schema.Index{
		{Name: "transaction_document_id_seq", Columns: []*schema.Column{column(transactionsTable, "document_id"), column(transactionsTable, "seq")}},
	}
}

func column(t *schema.Table, name string) *schema.Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	panic(fmt.Sprintf("table %s has no column %s", t.Name, name))
}

// Migrate creates or upgrades the tables. It is idempotent.
func Migrate(ctx context.Context, db *DB) error {
	drv := entsql.OpenDB(db.Dialect, db.SQL)
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("prepare migration: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// TransactionTextColumns lists the text-valued 1099-DA columns in table order.
func TransactionTextColumns() []string { return append([]string(nil), transactionTextColumns...) }

// TransactionFlagColumns lists the tri-state flag columns in table order.
func TransactionFlagColumns() []string { return append([]string(nil), transactionFlagColumns...) }
