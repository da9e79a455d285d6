package httpdto

import (
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"

	"github.com/samber/lo"
)

// NotificationListQuery holds query parameters for GET /notifications
type NotificationListQuery struct {
	Status string `form:"status"`
	PageQuery
}

type NotificationDTO struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	SenderID    string `json:"sender_id,omitempty"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	ResourceID  string `json:"resource_id,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func FromNotification(n notification.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Type:        string(n.Type),
		Content:     n.Content,
		ResourceID:  n.ResourceID,
		Status:      string(n.Status),
		CreatedAt:   formatTime(n.CreatedAt),
		UpdatedAt:   formatTime(n.UpdatedAt),
	}
	if n.SenderID.Valid {
		dto.SenderID = n.SenderID.UUID.String()
	}
	return dto
}

func FromNotifications(ns []notification.Notification) []NotificationDTO {
	return lo.Map(ns, func(n notification.Notification, _ int) NotificationDTO {
		return FromNotification(n)
	})
}
