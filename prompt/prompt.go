// Package prompt builds the instructions sent to the completion model.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helpcomp/finsight/transactions"
)

// DefaultLimit caps how many transactions go into one analysis prompt.
const DefaultLimit = 50

// Builder renders the analysis and chat prompts.
type Builder struct {
	Categories []string
	Limit      int
}

// Truncate keeps the first limit transactions in order.
func Truncate(txns []transactions.Transaction, limit int) []transactions.Transaction {
	if limit >= 0 && len(txns) > limit {
		return txns[:limit]
	}
	return txns
}

// Analysis asks the model for a single JSON object describing the
// transactions. The field names are relied upon by the extractor and report.
func (b Builder) Analysis(txns []transactions.Transaction) (string, error) {
	limit := b.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	subset := Truncate(txns, limit)
	if subset == nil {
		subset = []transactions.Transaction{}
	}

	data, err := json.MarshalIndent(subset, "", "  ")
	if err != nil {
		return "", fmt.Errorf("prompt: encode transactions: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Analyze these bank transactions and provide:\n")
	sb.WriteString("1. Categorize each transaction into categories like: ")
	sb.WriteString(strings.Join(b.Categories, ", "))
	sb.WriteString("\n2. Calculate total spending by category\n")
	sb.WriteString("3. Identify spending patterns\n")
	sb.WriteString("4. Suggest a reasonable monthly budget based on the data\n")
	sb.WriteString("5. Provide 3-5 actionable financial insights\n\n")
	sb.WriteString("Transactions:\n")
	sb.Write(data)
	sb.WriteString("\n\nReturn your analysis as JSON with this structure:\n")
	sb.WriteString(`{
    "categorized_transactions": [
        {"description": "...", "amount": ..., "category": "...", "date": "..."}
    ],
    "category_totals": {"Food & Dining": ..., "Transportation": ...},
    "insights": ["insight 1", "insight 2", ...],
    "suggested_budget": {"Food & Dining": ..., "Transportation": ...},
    "total_spending": ...
}`)
	sb.WriteString("\n\nReturn ONLY the JSON, no other text.")
	return sb.String(), nil
}

// Chat grounds a free-text question in a previous analysis. The analysis is
// embedded as given, only re-indented.
func (b Builder) Chat(analysis json.RawMessage, question string) string {
	context := bytes.TrimSpace(analysis)
	if len(context) == 0 {
		context = []byte("{}")
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, context, "", "  "); err == nil {
		context = indented.Bytes()
	}

	var sb strings.Builder
	sb.WriteString("You are a personal financial assistant.\n\n")
	sb.WriteString("Here is the user's financial analysis data:\n")
	sb.Write(context)
	sb.WriteString("\n\nAnswer the user's question clearly and concisely.\n")
	sb.WriteString("If numbers are available, use them exactly.\n\n")
	sb.WriteString("User question:\n")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String()
}
