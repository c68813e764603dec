package handlers

import (
	"net/http"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/middleware"
	"blocklytics/portal/pkg/models"

	"blocklytics/portal/internal/wizard"
)

type wizardQuantityRequest struct {
	Quantity string `json:"quantity"`
}

type wizardResponse struct {
	Step              wizard.Step            `json:"step"`
	Quantity          int64                  `json:"quantity,omitempty"`
	FormattedQuantity string                 `json:"formatted_quantity,omitempty"`
	Preview           *models.PricingPreview `json:"preview,omitempty"`
	GatewayURL        string                 `json:"gateway_url,omitempty"`
}

func wizardView(s *wizard.Session) wizardResponse {
	return wizardResponse{
		Step:              s.Step,
		Quantity:          s.Quantity,
		FormattedQuantity: s.FormattedQuantity(),
		Preview:           s.Preview,
		GatewayURL:        s.GatewayURL,
	}
}

func countWizardStep(s *wizard.Session) {
	if metrics != nil {
		metrics.WizardSteps.WithLabelValues(string(s.Step)).Inc()
	}
}

// GetWizard returns the user's current purchase wizard state.
func GetWizard(c middleware.Context) {
	c.JSON(http.StatusOK, wizardView(wizardMgr.Session(sessionUserID(c))))
}

// WizardQuantity submits an API-call quantity and advances to the review
// step with a priced preview. A failed preview keeps the entered quantity.
func WizardQuantity(c middleware.Context) {
	var req wizardQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "quantity is required"})
		return
	}

	s, err := wizardMgr.EnterQuantity(c.Request.Context(), sessionUserID(c), sessionToken(c), req.Quantity)
	countWizardStep(s)
	if err != nil {
		respondWizardError(c, s, err)
		return
	}
	c.JSON(http.StatusOK, wizardView(s))
}

// WizardConfirm submits the reviewed order and returns the gateway handoff
// URL. The wizard stays in the redirecting step even when submission fails;
// WizardReset is the only way out of a stuck payment.
func WizardConfirm(c middleware.Context) {
	userID := sessionUserID(c)

	s, err := wizardMgr.Confirm(c.Request.Context(), userID, sessionToken(c))
	countWizardStep(s)
	if err != nil {
		if metrics != nil {
			metrics.OrdersSubmitted.WithLabelValues("failed").Inc()
		}
		respondWizardError(c, s, err)
		return
	}

	if metrics != nil {
		metrics.OrdersSubmitted.WithLabelValues("created").Inc()
	}
	orderCache.Delete(ordersCacheKey(userID))
	logger.WithField("user_id", userID).Info("Order submitted, redirecting to gateway")
	c.JSON(http.StatusOK, wizardView(s))
}

// WizardReset abandons the current wizard session.
func WizardReset(c middleware.Context) {
	wizardMgr.Reset(sessionUserID(c))
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Wizard reset"})
}

// respondWizardError reports a wizard failure alongside the surviving
// session state, so the client can stay on the right step.
func respondWizardError(c middleware.Context, s *wizard.Session, err error) {
	var payload struct {
		Error string         `json:"error"`
		State wizardResponse `json:"state"`
	}
	payload.State = wizardView(s)

	status := http.StatusBadRequest
	if apiErr, ok := upstreamError(err); ok {
		status = apiErr.StatusCode
		payload.Error = apiErr.Message
	} else if isUnavailable(err) {
		status = http.StatusBadGateway
		payload.Error = "Service temporarily unavailable. Please try again."
	} else {
		payload.Error = err.Error()
	}

	c.JSON(status, payload)
}
