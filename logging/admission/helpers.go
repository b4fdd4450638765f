package admission

import (
	"context"

	"scenerelay/logging"
)

const (
	EventLoginAccepted logging.EventType = "admission.login_accepted"
	EventLoginRejected logging.EventType = "admission.login_rejected"
)

type LoginAcceptedPayload struct {
	Username string `json:"username"`
}

type LoginRejectedPayload struct {
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason"`
}

func LoginAccepted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LoginAcceptedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLoginAccepted,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryAdmission,
		Payload:  payload,
	})
}

func LoginRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LoginRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLoginRejected,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryAdmission,
		Payload:  payload,
	})
}
