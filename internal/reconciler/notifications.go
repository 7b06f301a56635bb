package reconciler

import (
	"fmt"
	"strings"

	"jalrakshak-monitor/internal/models"
)

func normalize(in models.NewComplaint) models.NewComplaint {
	in.Type = models.ComplaintType(strings.TrimSpace(string(in.Type)))
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	in.OwnerEmail = strings.TrimSpace(in.OwnerEmail)
	return in
}

func (r *Reconciler) createdNotification(c models.Complaint) models.Notification {
	return r.notification("Complaint submitted",
		fmt.Sprintf("%s at %s has been reported.", c.Type, c.Location),
		models.KindSuccess, c.ID)
}

func (r *Reconciler) offlineNotification(c models.Complaint) models.Notification {
	return r.notification("Complaint saved offline",
		fmt.Sprintf("%s at %s will be sent when the server is reachable.", c.Type, c.Location),
		models.KindWarning, c.ID)
}

func (r *Reconciler) statusNotification(c models.Complaint) models.Notification {
	kind := models.KindInfo
	if c.Status == models.StatusResolved {
		kind = models.KindSuccess
	}
	return r.notification("Status updated",
		fmt.Sprintf("%s at %s is now %s.", c.Type, c.Location, c.Status),
		kind, c.ID)
}

func (r *Reconciler) notification(title, message string, kind models.NotificationKind, complaintID string) models.Notification {
	return models.Notification{
		ID:          r.newID(),
		Title:       title,
		Message:     message,
		Kind:        kind,
		ComplaintID: complaintID,
		CreatedAt:   r.now().UTC(),
	}
}
