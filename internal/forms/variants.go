// Package forms holds the typed shapes of model extractions, one variant per
// supported form type, plus the helpers that project raw extractions into
// flattened fields and document identity.
package forms

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/taxdocs/constants"
)

// ErrNotObject is returned by Decode when the extraction is not a JSON object.
var ErrNotObject = errors.New("extraction is not an object")

// Extraction is one of the variants below.
type Extraction interface {
	FormType() constants.FormType
}

type W2 struct {
	EmployerName    Text           `json:"employer_name"`
	EmployerEIN     Text           `json:"employer_ein"`
	EmployeeSSN     Text           `json:"employee_ssn"`
	Wages           Text           `json:"wages"`
	FederalWithheld Text           `json:"federal_withheld"`
	StateWages      Text           `json:"state_wages"`
	StateWithheld   Text           `json:"state_withheld"`
	LocalWages      Text           `json:"local_wages"`
	BoxCodes        map[string]any `json:"box_codes"`
}

type NEC struct {
	PayerName       Text `json:"payer_name"`
	PayerTIN        Text `json:"payer_tin"`
	RecipientTIN    Text `json:"recipient_tin"`
	NonemployeeComp Text `json:"nonemployee_comp"`
	FederalWithheld Text `json:"federal_withheld"`
	StateIncome     Text `json:"state_income"`
}

type INT struct {
	PayerName              Text `json:"payer_name"`
	PayerTIN               Text `json:"payer_tin"`
	RecipientTIN           Text `json:"recipient_tin"`
	InterestIncome         Text `json:"interest_income"`
	EarlyWithdrawalPenalty Text `json:"early_withdrawal_penalty"`
	USBondInterest         Text `json:"us_bond_interest"`
	FederalWithheld        Text `json:"federal_withheld"`
	TaxExemptInterest      Text `json:"tax_exempt_interest"`
}

type DIV struct {
	PayerName                Text `json:"payer_name"`
	PayerTIN                 Text `json:"payer_tin"`
	RecipientTIN             Text `json:"recipient_tin"`
	TotalOrdinaryDividends   Text `json:"total_ordinary_dividends"`
	QualifiedDividends       Text `json:"qualified_dividends"`
	TotalCapitalGain         Text `json:"total_capital_gain"`
	NondividendDistributions Text `json:"nondividend_distributions"`
	FederalWithheld          Text `json:"federal_withheld"`
	ForeignTaxPaid           Text `json:"foreign_tax_paid"`
	ExemptInterestDividends  Text `json:"exempt_interest_dividends"`
}

type R struct {
	PayerName                  Text `json:"payer_name"`
	PayerTIN                   Text `json:"payer_tin"`
	RecipientTIN               Text `json:"recipient_tin"`
	GrossDistribution          Text `json:"gross_distribution"`
	TaxableAmount              Text `json:"taxable_amount"`
	TaxableAmountNotDetermined Flag `json:"taxable_amount_not_determined"`
	TotalDistribution          Flag `json:"total_distribution"`
	CapitalGain                Text `json:"capital_gain"`
	FederalWithheld            Text `json:"federal_withheld"`
	DistributionCode           Text `json:"distribution_code"`
	IRASEPSimple               Flag `json:"ira_sep_simple"`
	StateWithheld              Text `json:"state_withheld"`
}

type B struct {
	PayerName              Text `json:"payer_name"`
	PayerTIN               Text `json:"payer_tin"`
	RecipientName          Text `json:"recipient_name"`
	RecipientTIN           Text `json:"recipient_tin"`
	AccountNumber          Text `json:"account_number"`
	TotalProceeds          Text `json:"total_proceeds"`
	TotalCostBasis         Text `json:"total_cost_basis"`
	WashSaleLossDisallowed Text `json:"wash_sale_loss_disallowed"`
	ShortTermGainLoss      Text `json:"short_term_gain_loss"`
	LongTermGainLoss       Text `json:"long_term_gain_loss"`
	FederalWithheld        Text `json:"federal_withheld"`
}

type K1 struct {
	TaxYear                 Text           `json:"tax_year"`
	PartnershipName         Text           `json:"partnership_name"`
	PartnershipEIN          Text           `json:"partnership_ein"`
	PartnerName             Text           `json:"partner_name"`
	PartnerSSN              Text           `json:"partner_ssn"`
	PartnerType             Text           `json:"partner_type"`
	ProfitSharingPct        Text           `json:"profit_sharing_pct"`
	LossSharingPct          Text           `json:"loss_sharing_pct"`
	CapitalSharingPct       Text           `json:"capital_sharing_pct"`
	OrdinaryIncome          Text           `json:"ordinary_income"`
	NetRentalIncome         Text           `json:"net_rental_income"`
	GuaranteedPayments      Text           `json:"guaranteed_payments"`
	InterestIncome          Text           `json:"interest_income"`
	Dividends               Text           `json:"dividends"`
	Royalties               Text           `json:"royalties"`
	NetShortTermGain        Text           `json:"net_short_term_gain"`
	NetLongTermGain         Text           `json:"net_long_term_gain"`
	Section179              Text           `json:"section_179"`
	CharitableContributions Text           `json:"charitable_contributions"`
	SelfEmploymentEarnings  Text           `json:"self_employment_earnings"`
	OtherDeductions         map[string]any `json:"other_deductions"`
	OtherCredits            map[string]any `json:"other_credits"`
	BeginningCapital        Text           `json:"beginning_capital"`
	EndingCapital           Text           `json:"ending_capital"`
	CapitalContributed      Text           `json:"capital_contributed"`
	CapitalWithdrawn        Text           `json:"capital_withdrawn"`
	ForeignTransactions     map[string]any `json:"foreign_transactions"`
	AMTItems                map[string]any `json:"amt_items"`
	OtherInformation        map[string]any `json:"other_information"`
}

// DAHeader is the statement-level part of a digital-asset statement.
type DAHeader struct {
	PayerName     Text `json:"payer_name"`
	PayerTIN      Text `json:"payer_tin"`
	RecipientName Text `json:"recipient_name"`
	RecipientTIN  Text `json:"recipient_tin"`
	AccountNumber Text `json:"account_number"`
	TaxYear       Text `json:"tax_year"`
}

// DATransaction is one disposition row. Raw keeps the model's object as-is.
type DATransaction struct {
	AssetCode             Text     `json:"asset_code"`
	AssetName             Text     `json:"asset_name"`
	Units                 Text     `json:"units"`
	DateAcquired          Text     `json:"date_acquired"`
	DateSold              Text     `json:"date_sold"`
	Proceeds              Text     `json:"proceeds"`
	CostBasis             Text     `json:"cost_basis"`
	AccruedMarketDiscount Text     `json:"accrued_market_discount"`
	WashSaleDisallowed    Text     `json:"wash_sale_disallowed"`
	BasisReportedToIRS    Flag     `json:"basis_reported_to_irs"`
	ProceedsType          Text     `json:"proceeds_type"`
	QOFProceeds           Flag     `json:"qof_proceeds"`
	FederalWithheld       Text     `json:"federal_withheld"`
	LossNotAllowed        Flag     `json:"loss_not_allowed"`
	GainLossTerm          Text     `json:"gain_loss_term"`
	CashOnly              Flag     `json:"cash_only"`
	CustomerInfoUsed      Flag     `json:"customer_info_used"`
	Noncovered            Flag     `json:"noncovered"`
	AggregateFlag         Text     `json:"aggregate_flag"`
	TransactionCount      Integer  `json:"transaction_count"`
	NFTFirstSaleProceeds  Text     `json:"nft_first_sale_proceeds"`
	UnitsTransferredIn    Text     `json:"units_transferred_in"`
	TransferInDate        Text     `json:"transfer_in_date"`
	Form8949Code          Text     `json:"form_8949_code"`
	StateName             Text     `json:"state_name"`
	StateID               Text     `json:"state_id"`
	StateWithheld         Text     `json:"state_withheld"`
	Confidence            *float64 `json:"-"`

	Raw map[string]any `json:"-"`
}

type DA struct {
	Header             DAHeader        `json:"header"`
	Transactions       []DATransaction `json:"-"`
	IsMultiTransaction bool            `json:"is_multi_transaction"`
}

// Generic covers unknown, consolidated and unprompted form types.
type Generic struct {
	Type   constants.FormType
	Fields map[string]any
}

func (W2) FormType() constants.FormType { return constants.FormW2 }
func (NEC) FormType() constants.FormType { return constants.Form1099NEC }
func (INT) FormType() constants.FormType { return constants.Form1099INT }
func (DIV) FormType() constants.FormType { return constants.Form1099DIV }
func (R) FormType() constants.FormType { return constants.Form1099R }
func (B) FormType() constants.FormType { return constants.Form1099B }
func (K1) FormType() constants.FormType { return constants.FormK1 }
func (DA) FormType() constants.FormType { return constants.Form1099DA }
func (g Generic) FormType() constants.FormType { return g.Type }

// Decode maps a raw extraction onto the variant for formType. Fields with an
// unexpected shape decode as absent instead of failing. Only a non-object
// extraction is an error.
func Decode(formType constants.FormType, v any) (Extraction, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, v)
	}

	var out Extraction
	switch formType {
	case constants.FormW2:
		out = &W2{}
	case constants.Form1099NEC:
		out = &NEC{}
	case constants.Form1099INT:
		out = &INT{}
	case constants.Form1099DIV:
		out = &DIV{}
	case constants.Form1099R:
		out = &R{}
	case constants.Form1099B:
		out = &B{}
	case constants.FormK1:
		out = &K1{}
	case constants.Form1099DA:
		return decodeDA(obj)
	default:
		return Generic{Type: formType, Fields: obj}, nil
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s extraction: %w", formType, err)
	}
	if err := unmarshalLenient(raw, out); err != nil {
		return nil, fmt.Errorf("decode %s extraction: %w", formType, err)
	}
	return deref(out), nil
}

func decodeDA(obj map[string]any) (Extraction, error) {
	da := DA{}
	if header, ok := obj["header"].(map[string]any); ok {
		raw, err := json.Marshal(header)
		if err != nil {
			return nil, err
		}
		if err := unmarshalLenient(raw, &da.Header); err != nil {
			return nil, fmt.Errorf("decode 1099-DA header: %w", err)
		}
	}
	if flag, ok := obj["is_multi_transaction"].(bool); ok {
		da.IsMultiTransaction = flag
	}

	txns, _ := obj["transactions"].([]any)
	for _, item := range txns {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		var t DATransaction
		if err := unmarshalLenient(raw, &t); err != nil {
			return nil, fmt.Errorf("decode 1099-DA transaction: %w", err)
		}
		if c, ok := row["confidence"].(float64); ok {
			t.Confidence = &c
		}
		t.Raw = row
		da.Transactions = append(da.Transactions, t)
	}
	return da, nil
}

// unmarshalLenient ignores type mismatches; encoding/json still fills every
// other field when it reports one.
func unmarshalLenient(raw []byte, out any) error {
	err := json.Unmarshal(raw, out)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

func deref(e Extraction) Extraction {
	switch v := e.(type) {
	case *W2:
		return *v
	case *NEC:
		return *v
	case *INT:
		return *v
	case *DIV:
		return *v
	case *R:
		return *v
	case *B:
		return *v
	case *K1:
		return *v
	}
	return e
}
