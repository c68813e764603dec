package handlers

import (
	"net/http"
	"time"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/ctxkeys"
	"blocklytics/portal/pkg/middleware"
)

type sessionStatusResponse struct {
	Enabled        bool       `json:"enabled"`
	Expired        bool       `json:"expired"`
	SecondsLeft    int64      `json:"seconds_left,omitempty"`
	IdleExpiresAt  *time.Time `json:"idle_expires_at,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// SessionStatus reports the idle-timeout state and the token expiry so the
// client can warn before logging the user out.
func SessionStatus(c middleware.Context) {
	status := guard.Status(c.Request.Context(), sessionUserID(c), sessionToken(c))

	resp := sessionStatusResponse{
		Enabled: status.Enabled,
		Expired: status.Expired,
	}
	if status.Enabled && !status.Expired {
		resp.SecondsLeft = int64(status.Remaining / time.Second)
		expiresAt := status.ExpiresAt
		resp.IdleExpiresAt = &expiresAt
	}
	if v, exists := c.Get(string(ctxkeys.KeyJWTExpiresAt)); exists {
		if tokenExpiry, ok := v.(time.Time); ok {
			resp.TokenExpiresAt = &tokenExpiry
		}
	}

	c.JSON(http.StatusOK, resp)
}

// SessionPing records user activity, resetting the idle clock.
func SessionPing(c middleware.Context) {
	guard.Touch(sessionUserID(c))
	c.JSON(http.StatusOK, api.MessageResponse{Message: "pong"})
}

// IdleTimeoutMiddleware logs out sessions that sat idle past the cutoff.
// It runs after the auth gate on every protected route; any surviving
// request counts as activity.
func IdleTimeoutMiddleware() middleware.HandlerFunc {
	return func(c middleware.Context) {
		userID := sessionUserID(c)

		status := guard.Status(c.Request.Context(), userID, sessionToken(c))
		if status.Expired {
			guard.Forget(userID)
			if metrics != nil {
				metrics.SessionTimeouts.Inc()
			}
			logger.WithField("user_id", userID).Info("Session expired after inactivity")
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "session expired"})
			c.Abort()
			return
		}

		// Status polls are not user activity; touching here would mean the
		// countdown resets itself and the timeout never fires.
		if c.FullPath() != "/session/status" {
			guard.Touch(userID)
		}
		c.Next()
	}
}
