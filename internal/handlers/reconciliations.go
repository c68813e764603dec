package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"blocklytics/portal/pkg/middleware"
	"blocklytics/portal/pkg/models"
)

// reconciliationSummary is a reconciliation annotated with the credit value
// of its difference at the month's credit price.
type reconciliationSummary struct {
	models.Reconciliation
	CreditPriceEur decimal.Decimal `json:"credit_price_eur"`
	Credits        int64           `json:"credits"`
	AmountDueEur   decimal.Decimal `json:"amount_due_eur"`
}

type reconciliationLine struct {
	models.OrderDifferenceLine
	Credits int64 `json:"credits"`
}

type reconciliationDetail struct {
	reconciliationSummary
	Lines []reconciliationLine `json:"lines"`
}

func summarize(r models.Reconciliation) reconciliationSummary {
	return reconciliationSummary{
		Reconciliation: r,
		CreditPriceEur: priceTable.GrossCreditPrice(r.Month),
		Credits:        priceTable.CreditsForDifference(r.TotalDifferenceEur, r.Month),
		AmountDueEur:   priceTable.AmountDue(r.TotalDifferenceEur),
	}
}

// ListReconciliations returns the user's monthly reconciliations, each
// annotated with the credits its overpayment converts into.
func ListReconciliations(c middleware.Context) {
	reconciliations, err := client.ListReconciliations(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]reconciliationSummary, 0, len(reconciliations))
	for _, r := range reconciliations {
		summaries = append(summaries, summarize(r))
	}
	c.JSON(http.StatusOK, summaries)
}

// GetReconciliation returns one reconciliation with per-order difference
// lines, each carrying its own credit conversion.
func GetReconciliation(c middleware.Context) {
	r, err := client.GetReconciliation(c.Request.Context(), sessionToken(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	detail := reconciliationDetail{
		reconciliationSummary: summarize(*r),
		Lines:                 make([]reconciliationLine, 0, len(r.Orders)),
	}
	for _, line := range r.Orders {
		detail.Lines = append(detail.Lines, reconciliationLine{
			OrderDifferenceLine: line,
			Credits:             priceTable.CreditsForDifference(line.DifferenceEur, r.Month),
		})
	}
	c.JSON(http.StatusOK, detail)
}
