// Package prompts assembles the system and user prompts for SQL
// generation.
package prompts

import (
	"fmt"
	"strings"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// DefaultRowLimit is the LIMIT the model is instructed to apply unless
// the user explicitly asks for all rows.
const DefaultRowLimit = 1000

// BuildSchemaContext renders a schema into the textual form embedded in
// the system prompt. Tables appear in lexicographic order so the same
// schema always yields the same prompt.
func BuildSchemaContext(schema *models.Schema) string {
	var sb strings.Builder
	sb.WriteString("DATABASE SCHEMA:\n")

	for _, tableName := range schema.TableNames() {
		table := schema.Tables[tableName]

		sb.WriteString("\nTable: ")
		sb.WriteString(tableName)
		if table.RowCount != nil {
			fmt.Fprintf(&sb, " (~%d rows)", *table.RowCount)
		}
		sb.WriteString("\n")

		if len(table.PrimaryKeys) > 0 {
			fmt.Fprintf(&sb, "  Primary Key: %s\n", strings.Join(table.PrimaryKeys, ", "))
		}

		for _, col := range table.Columns {
			nullable := ""
			if !col.Nullable {
				nullable = ", NOT NULL"
			}
			fmt.Fprintf(&sb, "  - %s (%s%s)\n", col.Name, col.Type, nullable)
		}
	}

	return sb.String()
}

// BuildSystemPrompt combines the generation rules, the schema context
// and the few-shot examples into the system prompt. rowLimit is the
// LIMIT the rules instruct the model to apply; zero or negative falls
// back to DefaultRowLimit.
func BuildSystemPrompt(schema *models.Schema, rowLimit int) string {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	var sb strings.Builder

	sb.WriteString("You are an expert SQL analyst. Convert natural language questions into SQL queries.\n\n")
	sb.WriteString(BuildSchemaContext(schema))
	sb.WriteString("\nRULES:\n")
	fmt.Fprintf(&sb, `1. Generate ONLY read-only queries. Every query must start with SELECT or WITH.
2. Never generate INSERT, UPDATE, DELETE, DROP, TRUNCATE, ALTER, CREATE or any other statement that modifies data or schema.
3. Use only the tables and columns listed in the schema above.
4. Add LIMIT %d to every query unless the user explicitly asks for all rows.
5. Wrap reserved words and mixed-case identifiers in double quotes.
6. Give computed columns readable names using AS.
7. If the question is ambiguous, make a reasonable assumption and answer the most likely interpretation.
8. Return ONLY the SQL query. No explanations, no markdown fences, no commentary.
`, rowLimit)

	sb.WriteString(`
EXAMPLES:

Question: What are the total sales by month?
SQL: SELECT DATE_TRUNC('month', created_at) AS month, SUM(amount) AS total_sales FROM orders GROUP BY month ORDER BY month LIMIT 1000

Question: How many users signed up last week?
SQL: SELECT COUNT(*) AS new_users FROM users WHERE created_at >= NOW() - INTERVAL '7 days' LIMIT 1000

Question: Show me the top 10 products by revenue
SQL: SELECT p.name, SUM(oi.quantity * oi.unit_price) AS revenue FROM products p JOIN order_items oi ON oi.product_id = p.id GROUP BY p.name ORDER BY revenue DESC LIMIT 10
`)

	return sb.String()
}

// BuildUserPrompt wraps the natural language question.
func BuildUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s\nSQL:", question)
}
