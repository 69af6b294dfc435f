package orchestrator

import (
	"fmt"
	"strings"

	"kontratago/internal/models"
)

// Plain-text message bodies for backend results. Rendering (markdown,
// document export) stays outside this layer.

func formatContract(c *models.Contract) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n", c.Title, c.Content)
	b.WriteString("\nCompliance checks:\n")
	fmt.Fprintf(&b, "- Required clauses: %s\n", checkMark(c.ComplianceChecks.RequiredClauses))
	fmt.Fprintf(&b, "- Legal compliance: %s\n", checkMark(c.ComplianceChecks.LegalCompliance))
	fmt.Fprintf(&b, "- Duration valid: %s\n", checkMark(c.ComplianceChecks.DurationValid))
	fmt.Fprintf(&b, "- Amounts valid: %s\n", checkMark(c.ComplianceChecks.AmountsValid))
	return b.String()
}

func formatEntities(fileName string, e *models.Entities) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extracted key details from %s:\n", fileName)
	writeList(&b, "Parties", e.Parties)
	writeList(&b, "Dates", e.Dates)
	writeList(&b, "Amounts", e.Amounts)
	writeList(&b, "Obligations", e.Obligations)
	return b.String()
}

func formatAnalysis(a *models.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk level: %s\n", a.RiskLevel)
	writeList(&b, "Missing clauses", a.MissingClauses)
	writeList(&b, "Ambiguous terms", a.AmbiguousTerms)
	writeList(&b, "Compliance issues", a.ComplianceIssues)
	writeList(&b, "Recommendations", a.Recommendations)
	if a.LegalReasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", a.LegalReasoning)
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none found\n", label)
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func checkMark(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
