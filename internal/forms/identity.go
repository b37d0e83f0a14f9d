package forms

import "strings"

// Identity holds the document-level names copied from an extraction.
type Identity struct {
	PayerName     *string
	RecipientName *string
	AccountNumber *string
}

// IdentityOf reads payer_name, recipient_name and account_number from the
// extraction's header object when it has one, otherwise from the top level.
// Blank and non-text values are absent.
func IdentityOf(v any) Identity {
	obj, ok := v.(map[string]any)
	if !ok {
		return Identity{}
	}
	src := obj
	if header, ok := obj["header"].(map[string]any); ok {
		src = header
	}
	return Identity{
		PayerName:     textAt(src, "payer_name"),
		RecipientName: textAt(src, "recipient_name"),
		AccountNumber: textAt(src, "account_number"),
	}
}

func textAt(obj map[string]any, key string) *string {
	s, ok := ScalarString(obj[key])
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
