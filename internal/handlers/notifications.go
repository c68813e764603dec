package handlers

import (
	"net/http"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/middleware"
	"blocklytics/portal/pkg/models"
)

// ListNotifications returns the user's notification feed. ?archived=true
// narrows to archived entries, ?archived=false to the active ones.
func ListNotifications(c middleware.Context) {
	notifications, err := client.ListNotifications(c.Request.Context(), sessionToken(c))
	if err != nil {
		respondError(c, err)
		return
	}

	filtered := notifications
	if want := c.Query("archived"); want == "true" || want == "false" {
		archived := want == "true"
		filtered = make([]models.Notification, 0, len(notifications))
		for _, n := range notifications {
			if n.Archived == archived {
				filtered = append(filtered, n)
			}
		}
	}
	if filtered == nil {
		filtered = []models.Notification{}
	}
	c.JSON(http.StatusOK, filtered)
}

// MarkAllNotificationsRead marks every notification as seen.
func MarkAllNotificationsRead(c middleware.Context) {
	if err := client.MarkAllNotificationsRead(c.Request.Context(), sessionToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "All notifications marked read"})
}

// MarkNotificationSeen marks one notification as seen.
func MarkNotificationSeen(c middleware.Context) {
	if err := client.MarkNotificationSeen(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification marked seen"})
}

// ArchiveNotification moves a notification to the archive.
func ArchiveNotification(c middleware.Context) {
	if err := client.ArchiveNotification(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification archived"})
}

// UnarchiveNotification restores an archived notification.
func UnarchiveNotification(c middleware.Context) {
	if err := client.UnarchiveNotification(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification restored"})
}

// DeleteNotification permanently removes a notification.
func DeleteNotification(c middleware.Context) {
	if err := client.DeleteNotification(c.Request.Context(), sessionToken(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification deleted"})
}
