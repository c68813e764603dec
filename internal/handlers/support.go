package handlers

import (
	"net/http"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/middleware"
	"blocklytics/portal/pkg/models"
)

// ListTickets returns the user's support tickets.
func ListTickets(c middleware.Context) {
	tickets, err := client.ListTickets(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, tickets)
}

// CreateTicket opens a new support ticket and immediately requests an
// automated first reply. The reply is best effort; ticket creation succeeds
// regardless.
func CreateTicket(c middleware.Context) {
	var req api.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "title and message are required"})
		return
	}

	token := sessionToken(c)
	ticket, err := client.CreateTicket(c.Request.Context(), token, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := client.RequestAssistantReply(c.Request.Context(), token, ticket.ID); err != nil {
		logger.WithError(err).WithField("ticket_id", ticket.ID).Warn("Automated reply request failed")
	}

	logger.WithField("ticket_id", ticket.ID).Info("Support ticket created")
	c.JSON(http.StatusCreated, ticket)
}

// GetTicket returns a ticket with its message history.
func GetTicket(c middleware.Context) {
	detail, err := client.GetTicket(c.Request.Context(), sessionToken(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type ticketStatusRequest struct {
	Status string `json:"status"`
}

// UpdateTicket changes a ticket's status.
func UpdateTicket(c middleware.Context) {
	var req ticketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "status is required"})
		return
	}

	if err := client.UpdateTicketStatus(c.Request.Context(), sessionToken(c), c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Ticket updated"})
}

// DeleteTicket removes a ticket.
func DeleteTicket(c middleware.Context) {
	if err := client.DeleteTicket(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Ticket deleted"})
}

// AddTicketMessage appends a user message to a ticket and triggers an
// automated reply for it.
func AddTicketMessage(c middleware.Context) {
	var req api.TicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "message is required"})
		return
	}

	token := sessionToken(c)
	ticketID := c.Param("id")
	if err := client.AddTicketMessage(c.Request.Context(), token, ticketID, &req); err != nil {
		respondError(c, err)
		return
	}

	if err := client.RequestAssistantReply(c.Request.Context(), token, ticketID); err != nil {
		logger.WithError(err).WithField("ticket_id", ticketID).Warn("Automated reply request failed")
	}

	c.JSON(http.StatusCreated, api.MessageResponse{Message: "Message added"})
}
