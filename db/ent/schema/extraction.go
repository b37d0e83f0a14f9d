package schema

import (
	"encoding/json"
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

// Extraction is the raw output of one extraction run. Append-only.
type Extraction struct{ ent.Schema }

func (Extraction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "form_extractions"},
	}
}

func (Extraction) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("document_id", uuid.UUID{}),
		field.String("form_type").NotEmpty().
			Validate(utils.EnumValidator(constants.FormTypeStrings()...)),
		field.JSON("raw_json", json.RawMessage{}).Optional(),
		field.Float("confidence").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Extraction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("document", Document.Type).
			Ref("extractions").
			Field("document_id").
			Unique().
			Required(),
	}
}

func (Extraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "created_at"),
	}
}
