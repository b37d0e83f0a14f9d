package server

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

// params reads request fields. Absent and null values are treated alike.
type params map[string]*structpb.Value

func paramsOf(in *structpb.Struct) params {
	return params(in.GetFields())
}

func invalidArg(format string, args ...any) error {
	return common.NewAppError("INVALID_ARGUMENT", fmt.Sprintf(format, args...), common.ErrInvalidInput)
}

func (p params) present(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (p params) str(name string) (*string, error) {
	if !p.present(name) {
		return nil, nil
	}
	sv, ok := p[name].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, invalidArg("%s must be a string", name)
	}
	s := sv.StringValue
	return &s, nil
}

func (p params) required(name string) (string, error) {
	s, err := p.str(name)
	if err != nil {
		return "", err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", invalidArg("%s is required", name)
	}
	return strings.TrimSpace(*s), nil
}

func (p params) int(name string) (*int, error) {
	if !p.present(name) {
		return nil, nil
	}
	nv, ok := p[name].GetKind().(*structpb.Value_NumberValue)
	if !ok || nv.NumberValue != math.Trunc(nv.NumberValue) {
		return nil, invalidArg("%s must be an integer", name)
	}
	n := int(nv.NumberValue)
	return &n, nil
}

func (p params) bool(name string) (*bool, error) {
	if !p.present(name) {
		return nil, nil
	}
	bv, ok := p[name].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, invalidArg("%s must be a boolean", name)
	}
	b := bv.BoolValue
	return &b, nil
}

func (p params) id() (uuid.UUID, error) {
	raw, err := p.required("id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidArg("id must be a UUID")
	}
	return id, nil
}

func (p params) listFilter() (repository.ListFilter, error) {
	var f repository.ListFilter
	var err error
	if f.Filer, err = p.str("filer"); err != nil {
		return f, err
	}
	if f.TaxYear, err = p.int("tax_year"); err != nil {
		return f, err
	}
	if f.NeedsReview, err = p.bool("needs_review"); err != nil {
		return f, err
	}
	dt, err := p.str("doc_type")
	if err != nil {
		return f, err
	}
	if dt != nil {
		ft, ok := constants.ParseFormType(*dt)
		if !ok {
			return f, invalidArg("unknown doc_type %q", *dt)
		}
		f.DocType = &ft
	}
	limit, err := p.int("limit")
	if err != nil {
		return f, err
	}
	if limit != nil {
		if *limit < 0 {
			return f, invalidArg("limit must not be negative")
		}
		f.Limit = *limit
	}
	return f, nil
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return structpb.NewStruct(m)
}
