package schema

import (
	"encoding/json"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Transaction is one digital-asset disposition from a 1099-DA statement.
// Checkbox columns hold 1, 0 or NULL.
type Transaction struct{ ent.Schema }

func (Transaction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "transactions_1099da"},
	}
}

func (Transaction) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("document_id", uuid.UUID{}),
		field.Int("seq").NonNegative(),
		field.String("asset_code").Optional().Nillable(),
		field.String("asset_name").Optional().Nillable(),
		field.String("units").Optional().Nillable(),
		field.String("date_acquired").Optional().Nillable(),
		field.String("date_sold").Optional().Nillable(),
		field.String("proceeds").Optional().Nillable(),
		field.String("cost_basis").Optional().Nillable(),
		field.String("accrued_market_discount").Optional().Nillable(),
		field.String("wash_sale_disallowed").Optional().Nillable(),
		field.Int("basis_reported_to_irs").Optional().Nillable().Range(0, 1),
		field.String("proceeds_type").Optional().Nillable(),
		field.Int("qof_proceeds").Optional().Nillable().Range(0, 1),
		field.String("federal_withheld").Optional().Nillable(),
		field.Int("loss_not_allowed").Optional().Nillable().Range(0, 1),
		field.String("gain_loss_term").Optional().Nillable(),
		field.Int("cash_only").Optional().Nillable().Range(0, 1),
		field.Int("customer_info_used").Optional().Nillable().Range(0, 1),
		field.Int("noncovered").Optional().Nillable().Range(0, 1),
		field.String("aggregate_flag").Optional().Nillable(),
		field.Int("transaction_count").Optional().Nillable(),
		field.String("nft_first_sale_proceeds").Optional().Nillable(),
		field.String("units_transferred_in").Optional().Nillable(),
		field.String("transfer_in_date").Optional().Nillable(),
		field.String("form_8949_code").Optional().Nillable(),
		field.String("state_name").Optional().Nillable(),
		field.String("state_id").Optional().Nillable(),
		field.String("state_withheld").Optional().Nillable(),
		field.Float("confidence").Optional().Nillable(),
		field.JSON("raw_json", json.RawMessage{}).Optional(),
	}
}

func (Transaction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("document", Document.Type).
			Ref("transactions").
			Field("document_id").
			Unique().
			Required(),
	}
}

func (Transaction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id", "seq"),
	}
}
