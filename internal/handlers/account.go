package handlers

import (
	"net/http"

	"blocklytics/portal/pkg/middleware"
)

// GetProfile returns the authenticated user's profile.
func GetProfile(c middleware.Context) {
	user, err := client.Me(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetSecurityPreferences returns the user's security preference flags.
func GetSecurityPreferences(c middleware.Context) {
	prefs, err := client.SecurityPreferences(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// GetCreditBalance returns the remaining prepaid API-call credit.
func GetCreditBalance(c middleware.Context) {
	balance, err := client.CreditBalance(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}
