package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// ExtractedField is one flattened scalar leaf of the latest extraction.
type ExtractedField struct{ ent.Schema }

func (ExtractedField) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extracted_fields"},
	}
}

func (ExtractedField) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("document_id", uuid.UUID{}),
		field.UUID("extraction_id", uuid.UUID{}),
		field.String("field_path").NotEmpty(),
		field.String("field_value"),
		field.Float("confidence").Optional().Nillable(),
	}
}

func (ExtractedField) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("document", Document.Type).
			Ref("fields").
			Field("document_id").
			Unique().
			Required(),
	}
}

func (ExtractedField) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "field_path").Unique(),
	}
}
