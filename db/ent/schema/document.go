package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/db/ent/schema/utils"
)

// Document is one physical file, ingested once per content hash.
type Document struct {
	ent.Schema
}

func (Document) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "documents"},
	}
}

func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("file_path").NotEmpty(),
		field.String("file_hash").NotEmpty().Unique().Immutable(),
		field.String("original_filename").Optional().Nillable(),
		field.String("mime_type").Optional().Nillable(),
		field.Int("tax_year").Optional().Nillable().Min(1900).Max(2100),
		field.String("doc_type").
			Default(string(constants.FormUnknown)).
			Validate(utils.EnumValidator(constants.FormTypeStrings()...)),
		field.String("filer").Optional().Nillable().MaxLen(200),
		field.String("payer_name").Optional().Nillable(),
		field.String("recipient_name").Optional().Nillable(),
		field.String("account_number").Optional().Nillable(),
		field.Int("page_count").NonNegative().Default(0),
		field.Float("classification_confidence").Optional().Nillable(),
		field.String("classification_method").Optional().Nillable(),
		field.Float("overall_confidence").Optional().Nillable(),
		field.Bool("needs_review").Default(false),
		field.String("status").
			Default(string(constants.StatusReceived)).
			Validate(utils.EnumValidator(constants.DocumentStatusStrings()...)),
		field.String("notes").Optional().Nillable(),
		field.Time("extracted_at").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Document) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("extractions", Extraction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("fields", ExtractedField.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("transactions", Transaction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
		index.Fields("filer", "tax_year"),
		index.Fields("needs_review"),
	}
}
