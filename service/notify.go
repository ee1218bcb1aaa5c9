package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacentio/livewall"
)

type message struct {
	subject string
	body    string
}

func link(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

func claimMessage(base string, wall *livewall.Wall, user *livewall.User) message {
	return message{
		subject: "Confirm your live wall",
		body: fmt.Sprintf("Your validation code is %s.\n\nConfirm ownership of your wall:\n%s\n",
			user.ValidationCode, link(base, "validate", wall.ID, user.ValidationCode)),
	}
}

func ownerWelcome(base string, wall *livewall.Wall) message {
	return message{
		subject: "Your live wall is ready",
		body: fmt.Sprintf("You now own wall %s.\n\nShow it:\n%s\n\nModerate it:\n%s\n",
			wall.ID,
			link(base, "walls", wall.ID)+"?k="+wall.OwnerKey,
			link(base, "moderation", wall.ID, wall.OwnerKey)),
	}
}

func premiumMessage(base string, wall *livewall.Wall) message {
	return message{
		subject: "Your live wall is now premium",
		body: fmt.Sprintf("Thanks for upgrading wall %s.\n\n%s\n",
			wall.ID, link(base, "walls", wall.ID)+"?k="+wall.OwnerKey),
	}
}

// notify sends m to address. Failures are logged and otherwise ignored.
func (s *Service) notify(ctx context.Context, to string, m message) {
	if err := s.notifier.Send(ctx, to, m.subject, m.body); err != nil {
		s.log.Warnw("notification failed", "subject", m.subject, "error", err)
	}
}
