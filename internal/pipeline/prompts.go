package pipeline

import "strings"

// buildStatementPrompt is the instruction sent alongside a PDF statement.
// The model returns one signed amount per transaction; the encoder derives
// CREDIT/DEBIT from the sign.
func buildStatementPrompt() string {
	var b strings.Builder
	b.WriteString("You are a financial statement parser for PDF bank and credit card statements.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Parse ALL transactions in the attached statement.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"description\": string\n")
	b.WriteString("- \"amount\": number (positive for money IN, negative for money OUT)\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n")
	b.WriteString("- Skip opening balance, closing balance and subtotal lines.\n")
	b.WriteString("- Keep descriptions as printed; do not summarise them.\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}
