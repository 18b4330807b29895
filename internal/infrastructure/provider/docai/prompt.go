package docai

import "strings"

const classifyInstruction = `You are a document classifier for an accounting system.
Decide whether the document below is an invoice, a receipt, or a similar
billing document that represents a payable or paid amount.

Bank statements, annual financial statements, tax assessments, contracts,
reminders without an amount due, and marketing material are NOT invoices.

Respond with a single JSON object and nothing else:
{"is_invoice": true or false, "reason": "short explanation"}`

const extractInstruction = `You are a data extraction engine for an accounting system.
Extract the following fields from the invoice text below. Use null or an
empty string for anything the document does not state. Do not guess.

Respond with a single JSON object and nothing else:
{
  "invoice_date": "date as printed, e.g. 2024-03-01 or 01.03.2024",
  "amount": "gross total as printed, e.g. 1.234,56",
  "currency": "ISO 4217 code, e.g. EUR",
  "vat_percent": number or null,
  "confidence": number between 0 and 1 for the overall extraction,
  "issuer": {"name": "", "vat_id": "", "address": "", "iban": "", "website": ""},
  "recipient": {"name": "", "vat_id": "", "address": "", "iban": "", "website": ""},
  "raw": {"any_other_field": "value"}
}

The issuer is the party that wrote the invoice and is owed the money.
The recipient is the party being billed.`

const visionBoxesInstruction = `Additionally, for every field you extract, report where on the
document it was found:
"boxes": {"field_name": {"page": 0, "x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
Coordinates are fractions of the page size.`

func buildClassifyPrompt(text string) string {
	var b strings.Builder
	b.WriteString(classifyInstruction)
	b.WriteString("\n\nDOCUMENT TEXT:\n")
	b.WriteString(text)
	return b.String()
}

func buildExtractPrompt(text string) string {
	var b strings.Builder
	b.WriteString(extractInstruction)
	b.WriteString("\n\nINVOICE TEXT:\n")
	b.WriteString(text)
	return b.String()
}

func buildVisionClassifyPrompt() string {
	return classifyInstruction + "\n\nThe document is attached as an image or PDF."
}

func buildVisionExtractPrompt() string {
	return extractInstruction + "\n\n" + visionBoxesInstruction +
		"\n\nThe document is attached as an image or PDF."
}
