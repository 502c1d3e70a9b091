package notify

import (
	"fmt"
	"strings"

	"github.com/prototrack/prototrack/pkg/model"
)

// Plain-text bodies, rendered at enqueue time so the relay has nothing
// to look up when it delivers.

func ProtocolCreated(protocol *model.Protocol, creator, recipient *model.User) *model.Notification {
	body := fmt.Sprintf(
		"Hello %s,\n\n%s routed protocol %s to you.\n\nSubject: %s\n\nDescription:\n%s\n",
		recipient.Name, creator.Name, protocol.Number, protocol.Subject, protocol.Description,
	)
	return &model.Notification{
		Kind:       model.NotificationProtocolCreated,
		Recipient:  recipient.Email,
		Subject:    fmt.Sprintf("New protocol received: %s", protocol.Number),
		Body:       body,
		ProtocolID: protocol.ID,
	}
}

func StatusChanged(protocol *model.Protocol, actor *model.User, recipient *model.User, oldStatus, newStatus model.ProtocolStatus, despacho string) *model.Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", recipient.Name)
	fmt.Fprintf(&b, "Protocol %s changed from %s to %s.\n\n", protocol.Number, oldStatus, newStatus)
	fmt.Fprintf(&b, "Comment by %s:\n%s\n", actor.Name, despacho)
	return &model.Notification{
		Kind:       model.NotificationStatusChanged,
		Recipient:  recipient.Email,
		Subject:    fmt.Sprintf("Update on protocol %s", protocol.Number),
		Body:       b.String(),
		ProtocolID: protocol.ID,
	}
}
