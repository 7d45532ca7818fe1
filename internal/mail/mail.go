// Package mail delivers account verification, password reset and password-changed messages.
package mail

import (
	"context"
	"fmt"
)

// Sender delivers auth mail. Calls block until the message is accepted or delivery fails.
type Sender interface {
	SendVerificationLink(ctx context.Context, to, link string) error
	SendResetLink(ctx context.Context, to, link string) error
	SendPasswordChangedNotice(ctx context.Context, to string) error
}

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Kind tags a message with the flow that produced it.
type Kind string

const (
	KindVerification    Kind = "verification"
	KindReset           Kind = "reset"
	KindPasswordChanged Kind = "password_changed"
)

// Senders holds the From addresses per message kind.
type Senders struct {
	Verification string
	Security     string
}

func (s Senders) render(kind Kind, to, link string) Message {
	switch kind {
	case KindVerification:
		return Message{
			From:    s.Verification,
			To:      to,
			Subject: "Verify your account",
			HTML:    fmt.Sprintf(`<h1>Please click on <a href="%s">this link</a> to verify your account.</h1>`, link),
		}
	case KindReset:
		return Message{
			From:    s.Security,
			To:      to,
			Subject: "Reset your password",
			HTML:    fmt.Sprintf(`<h1>Please click on <a href="%s">this link</a> to update your password.</h1>`, link),
		}
	default:
		return Message{
			From:    s.Security,
			To:      to,
			Subject: "Your password was changed",
			HTML:    `<h1>Your password is updated, you can now use your new password.</h1>`,
		}
	}
}
