package extract

import "github.com/joseph-ayodele/taxdocs/constants"

const promptW2 = `You are extracting fields from US IRS Form W-2 (Wage and Tax Statement).
Return JSON only. Do not hallucinate. Use null for missing/blank.

Return object with keys:
{
  "employer_name": string|null,
  "employer_ein": string|null,
  "employee_ssn": string|null,
  "wages": string|null,
  "federal_withheld": string|null,
  "state_wages": string|null,
  "state_withheld": string|null,
  "local_wages": string|null,
  "box_codes": object|null
}

Formatting rules:
- Dollar amounts: string with digits, commas optional, no $ (e.g. "1234.56").
- EIN/TIN/SSN may be masked; preserve as seen.
`

const prompt1099NEC = `You are extracting fields from US IRS Form 1099-NEC.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Keys:
{
  "payer_name": string|null,
  "payer_tin": string|null,
  "recipient_tin": string|null,
  "nonemployee_comp": string|null,
  "federal_withheld": string|null,
  "state_income": string|null
}
`

const prompt1099INT = `You are extracting fields from US IRS Form 1099-INT.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Keys:
{
  "payer_name": string|null,
  "payer_tin": string|null,
  "recipient_tin": string|null,
  "interest_income": string|null,
  "early_withdrawal_penalty": string|null,
  "us_bond_interest": string|null,
  "federal_withheld": string|null,
  "tax_exempt_interest": string|null
}
`

const prompt1099DIV = `You are extracting fields from US IRS Form 1099-DIV.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Keys:
{
  "payer_name": string|null,
  "payer_tin": string|null,
  "recipient_tin": string|null,
  "total_ordinary_dividends": string|null,
  "qualified_dividends": string|null,
  "total_capital_gain": string|null,
  "nondividend_distributions": string|null,
  "federal_withheld": string|null,
  "foreign_tax_paid": string|null,
  "exempt_interest_dividends": string|null
}

Formatting rules:
- Dollar amounts: string with digits, commas optional, no $.
`

const prompt1099R = `You are extracting fields from US IRS Form 1099-R.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Keys:
{
  "payer_name": string|null,
  "payer_tin": string|null,
  "recipient_tin": string|null,
  "gross_distribution": string|null,
  "taxable_amount": string|null,
  "taxable_amount_not_determined": boolean|null,
  "total_distribution": boolean|null,
  "capital_gain": string|null,
  "federal_withheld": string|null,
  "distribution_code": string|null,
  "ira_sep_simple": boolean|null,
  "state_withheld": string|null
}

Rules:
- Dollar amounts: string with digits, commas optional, no $.
- For checkboxes: use true/false or null if not visible.
`

const prompt1099B = `You are extracting summary fields from US IRS Form 1099-B.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Keys:
{
  "payer_name": string|null,
  "payer_tin": string|null,
  "recipient_name": string|null,
  "recipient_tin": string|null,
  "account_number": string|null,
  "total_proceeds": string|null,
  "total_cost_basis": string|null,
  "wash_sale_loss_disallowed": string|null,
  "short_term_gain_loss": string|null,
  "long_term_gain_loss": string|null,
  "federal_withheld": string|null
}

Formatting rules:
- Dollar amounts: string with digits, commas optional, no $. Losses keep a leading minus.
`

const prompt1099DA = `You are extracting fields from US IRS Form 1099-DA.
Return JSON only. Do not hallucinate. Use null for missing/blank.

Return object:
{
  "header": {
    "payer_name": string|null,
    "payer_tin": string|null,
    "recipient_name": string|null,
    "recipient_tin": string|null,
    "account_number": string|null,
    "tax_year": number|null
  },
  "transactions": [
    {
      "asset_code": string|null,
      "asset_name": string|null,
      "units": string|null,
      "date_acquired": string|null,
      "date_sold": string|null,
      "proceeds": string|null,
      "cost_basis": string|null,
      "accrued_market_discount": string|null,
      "wash_sale_disallowed": string|null,
      "basis_reported_to_irs": boolean|null,
      "proceeds_type": string|null,
      "qof_proceeds": boolean|null,
      "federal_withheld": string|null,
      "loss_not_allowed": boolean|null,
      "gain_loss_term": string|null,
      "cash_only": boolean|null,
      "customer_info_used": boolean|null,
      "noncovered": boolean|null,
      "aggregate_flag": string|null,
      "transaction_count": number|null,
      "nft_first_sale_proceeds": string|null,
      "units_transferred_in": string|null,
      "transfer_in_date": string|null,
      "form_8949_code": string|null,
      "state_name": string|null,
      "state_id": string|null,
      "state_withheld": string|null
    }
  ],
  "is_multi_transaction": boolean
}

Rules:
- For dollar amounts: strings with no $.
- For units: preserve full precision as string.
- For checkbox/radio: use true/false or null if not visible.
- If this page contains exactly one transaction form, return transactions with 1 item.
`

const promptK1 = `You are extracting fields from US IRS Schedule K-1 (Partner's Share of Income, Deductions, Credits, etc.).
Return JSON only. Do not hallucinate. Use null for missing/blank.
This form may span multiple pages; extract every labeled field you can see on this page.

Return object with keys:
{
  "tax_year": string|null,
  "partnership_name": string|null,
  "partnership_ein": string|null,
  "partner_name": string|null,
  "partner_ssn": string|null,
  "partner_type": string|null,
  "profit_sharing_pct": string|null,
  "loss_sharing_pct": string|null,
  "capital_sharing_pct": string|null,
  "ordinary_income": string|null,
  "net_rental_income": string|null,
  "guaranteed_payments": string|null,
  "interest_income": string|null,
  "dividends": string|null,
  "royalties": string|null,
  "net_short_term_gain": string|null,
  "net_long_term_gain": string|null,
  "section_179": string|null,
  "charitable_contributions": string|null,
  "self_employment_earnings": string|null,
  "other_deductions": object|null,
  "other_credits": object|null,
  "beginning_capital": string|null,
  "ending_capital": string|null,
  "capital_contributed": string|null,
  "capital_withdrawn": string|null,
  "foreign_transactions": object|null,
  "amt_items": object|null,
  "other_information": object|null
}

Formatting rules:
- Dollar amounts: string with digits, commas optional, no $.
- Percentages: string as seen (e.g. "33.33%").
- For object fields: map box labels/codes to their values.
`

const promptGeneric = `Extract any visible labeled fields as key-value pairs.
Return JSON only as an object mapping labels to values.
Do not hallucinate values.
`

var prompts = map[constants.FormType]string{
	constants.FormW2:      promptW2,
	constants.Form1099NEC: prompt1099NEC,
	constants.Form1099INT: prompt1099INT,
	constants.Form1099DIV: prompt1099DIV,
	constants.Form1099R:   prompt1099R,
	constants.Form1099B:   prompt1099B,
	constants.Form1099DA:  prompt1099DA,
	constants.FormK1:      promptK1,
}

// PromptFor returns the form's prompt, or the generic label/value prompt.
func PromptFor(ft constants.FormType) string {
	if p, ok := prompts[ft]; ok {
		return p
	}
	return promptGeneric
}
