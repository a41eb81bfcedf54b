package scanning

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and extract its content as JSON.

Return ONLY valid JSON in this exact format:
{
  "header": {
    "receipt_number": "string",
    "timestamp": "YYYY-MM-DDTHH:MM:SS+HH:MM",
    "store_name": "string",
    "store_address": "string"
  },
  "category": "groceries | dining | transportation | shopping | utilities | entertainment | health | travel | education | other",
  "items": [
    {
      "description": "string",
      "quantity": 0,
      "unit_price": 0.00,
      "total_price": 0.00,
      "tax": 0.00
    }
  ],
  "payment": {
    "total_amount": 0.00,
    "currency": "ISO 4217 code, e.g. IDR",
    "payment_methods": [
      {
        "method": "cash | credit_card | debit_card | e_wallet | bank_transfer | other",
        "amount": 0.00,
        "card_last_four": "1234"
      }
    ],
    "taxes": 0.00,
    "discounts": 0.00
  },
  "summary": {
    "subtotal": 0.00,
    "taxes": 0.00,
    "total": 0.00,
    "discounts": 0.00,
    "service_charge": 0.00,
    "other_charges": [
      {"description": "string", "amount": 0.00}
    ]
  }
}

Important:
- Amounts must be numbers (not strings) in the currency's major unit as printed. Do not drop thousands separators: "Rp 25.000" is 25000.
- The timestamp must be RFC3339 with the timezone offset of the store. If only a date is printed, use midnight.
- List every purchased line as its own item, in the order printed.
- Put service charges (service, gratuity, "SC") in summary.service_charge, not in items or other_charges.
- card_last_four holds exactly the last four digits of a card, or null if not printed.
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// receiptSystemPrompt sets context for chat-style providers
const receiptSystemPrompt = "You are an expert at reading and extracting information from receipts and invoices. You must carefully read all text in images and extract accurate information."
