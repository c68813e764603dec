package handlers

import (
	"net/http"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/middleware"
)

// Login exchanges credentials for a session token via the core API. Accounts
// with a second factor get a requires_2fa challenge instead of a token.
func Login(c middleware.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email and password are required"})
		return
	}

	resp, err := client.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.WithField("requires_2fa", resp.Requires2FA).Info("Login accepted")
	c.JSON(http.StatusOK, resp)
}

// Verify2FA completes a pending second-factor challenge.
func Verify2FA(c middleware.Context) {
	var req api.Verify2FARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email and code are required"})
		return
	}

	resp, err := client.Verify2FA(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Resend2FA requests a fresh one-time code for a pending challenge.
func Resend2FA(c middleware.Context) {
	var req api.Resend2FARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email is required"})
		return
	}

	if err := client.Resend2FAOTP(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "A new code has been sent"})
}

// ForgotPassword starts password recovery. The response is identical whether
// or not the address exists; the core API handles that distinction.
func ForgotPassword(c middleware.Context) {
	var req api.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email is required"})
		return
	}

	if err := client.ForgotPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "If the address exists, a recovery email has been sent"})
}

// ResetPassword sets a new password via the emailed recovery token.
func ResetPassword(c middleware.Context) {
	recoveryToken := c.Param("token")

	var req api.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "password is required"})
		return
	}

	if err := client.ResetPassword(c.Request.Context(), recoveryToken, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Password updated"})
}

// Logout drops the portal's per-user state. The token itself simply expires;
// the core API has no revocation endpoint.
func Logout(c middleware.Context) {
	userID := sessionUserID(c)
	guard.Forget(userID)
	wizardMgr.Reset(userID)
	orderCache.Delete(ordersCacheKey(userID))

	logger.WithField("user_id", userID).Info("User logged out")
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Logged out"})
}
