package repository

import (
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	entschema "entgo.io/ent/schema"

	dbschema "github.com/joseph-ayodele/taxdocs/db/ent/schema"
)

type entSchema interface {
	Fields() []ent.Field
	Annotations() []entschema.Annotation
}

// The ent schemas document the model; the migration tables must agree with them.
func TestTablesMatchEntSchemas(t *testing.T) {
	tables := make(map[string]map[string]bool)
	for _, tbl := range Tables {
		cols := make(map[string]bool)
		for _, c := range tbl.Columns {
			cols[c.Name] = c.Nullable
		}
		tables[tbl.Name] = cols
	}

	for _, s := range []entSchema{dbschema.Document{}, dbschema.Extraction{}, dbschema.ExtractedField{}, dbschema.Transaction{}} {
		var table string
		for _, a := range s.Annotations() {
			if ann, ok := a.(entsql.Annotation); ok {
				table = ann.Table
			}
		}
		cols, ok := tables[table]
		if !ok {
			t.Errorf("no migration table for ent schema table %q", table)
			continue
		}
		if len(cols) != len(s.Fields()) {
			t.Errorf("%s: %d columns, ent schema declares %d fields", table, len(cols), len(s.Fields()))
		}
		for _, f := range s.Fields() {
			d := f.Descriptor()
			nullable, ok := cols[d.Name]
			if !ok {
				t.Errorf("%s: missing column %s", table, d.Name)
				continue
			}
			if nullable != d.Optional {
				t.Errorf("%s.%s: nullable = %v, ent optional = %v", table, d.Name, nullable, d.Optional)
			}
		}
	}
}

func TestDocTypeValidatorRejectsUnknownForms(t *testing.T) {
	for _, f := range (dbschema.Document{}).Fields() {
		d := f.Descriptor()
		if d.Name != "doc_type" {
			continue
		}
		if len(d.Validators) == 0 {
			t.Fatalf("doc_type has no validator")
		}
		validate, ok := d.Validators[0].(func(string) error)
		if !ok {
			t.Fatalf("unexpected validator type %T", d.Validators[0])
		}
		if err := validate("1099-DA"); err != nil {
			t.Fatalf("1099-DA rejected: %v", err)
		}
		if err := validate("W-9"); err == nil {
			t.Fatalf("W-9 accepted")
		}
		return
	}
	t.Fatalf("doc_type field not declared")
}
