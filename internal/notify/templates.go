package notify

import (
	"bytes"
	"text/template"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"
)

// Message templates, one pair per trigger kind. Kept as plain text: the
// delivery channel decides any further encoding.

var eventCreatedTmpl = template.Must(template.New("event_created").Parse(
	`Hello {{.Name}},

A new alumni event has been scheduled:

{{.Event.Title}}
Date: {{.When}}
Location: {{.Event.Location}}

{{.Event.Description}}

Please RSVP at your earliest convenience.

Best regards,
Alumni Association
`))

var rsvpRespondedTmpl = template.Must(template.New("rsvp_responded").Parse(
	`Hello {{.Name}},

{{.Responder}} responded "{{.Status}}" to {{.Event.Title}} ({{.When}}).

Guests: {{.GuestCount}}
{{- if .DietaryNotes}}
Dietary notes: {{.DietaryNotes}}
{{- end}}
{{- if .Comment}}
Comment: {{.Comment}}
{{- end}}
`))

var rsvpConfirmationTmpl = template.Must(template.New("rsvp_confirmation").Parse(
	`Hello {{.Name}},

Your RSVP for {{.Event.Title}} on {{.When}} has been recorded as "{{.Status}}".
{{- if eq .Status "waitlisted"}}

The event is currently at capacity, so you have been placed on the waitlist.
We will confirm your spot automatically if space frees up.
{{- end}}

Best regards,
Alumni Association
`))

var promotionTmpl = template.Must(template.New("waitlist_promotion").Parse(
	`Hello {{.Name}},

Good news: a spot opened up for {{.Event.Title}} on {{.When}} and your RSVP
is now confirmed.

Best regards,
Alumni Association
`))

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(
	`Hello {{.Name}},

We received a request to reset your password. Open the link below to choose
a new one:

{{.ResetURL}}

If you didn't request this, you can safely ignore this email. The link
expires in {{.TTL}}.
`))

func eventWhen(e model.Event) string {
	return e.StartsAt.Format("January 2, 2006 at 3:04 PM")
}

func renderTmpl(t *template.Template, data any) Message {
	var buf bytes.Buffer
	// Templates are compile-time constants over value structs; execution
	// cannot fail on well-formed data.
	_ = t.Execute(&buf, data)
	return Message{Body: buf.String()}
}

// EventCreatedRenderer personalizes the announcement for each selected
// alumni recipient.
func EventCreatedRenderer(event model.Event) RenderFunc {
	return func(r Recipient) Message {
		msg := renderTmpl(eventCreatedTmpl, struct {
			Name  string
			Event model.Event
			When  string
		}{r.Name, event, eventWhen(event)})
		msg.Subject = "New Alumni Event: " + event.Title
		return msg
	}
}

// RsvpRespondedRenderer builds the admin-facing message carrying the full
// RSVP content.
func RsvpRespondedRenderer(event model.Event, responder model.User, rsvp model.Rsvp) RenderFunc {
	return func(r Recipient) Message {
		msg := renderTmpl(rsvpRespondedTmpl, struct {
			Name         string
			Responder    string
			Status       model.RsvpStatus
			Event        model.Event
			When         string
			GuestCount   int
			DietaryNotes string
			Comment      string
		}{r.Name, responder.Name, rsvp.Status, event, eventWhen(event), rsvp.GuestCount, rsvp.DietaryNotes, rsvp.Comment})
		msg.Subject = "New RSVP: " + responder.Name + " responded to " + event.Title
		return msg
	}
}

// RsvpConfirmationRenderer acknowledges the submitter's own response with
// the status the ledger actually assigned.
func RsvpConfirmationRenderer(event model.Event, rsvp model.Rsvp) RenderFunc {
	return func(r Recipient) Message {
		msg := renderTmpl(rsvpConfirmationTmpl, struct {
			Name   string
			Status model.RsvpStatus
			Event  model.Event
			When   string
		}{r.Name, rsvp.Status, event, eventWhen(event)})
		msg.Subject = "RSVP Confirmation: " + event.Title
		return msg
	}
}

// PromotionRenderer tells a waitlisted alum their spot is confirmed.
func PromotionRenderer(event model.Event) RenderFunc {
	return func(r Recipient) Message {
		msg := renderTmpl(promotionTmpl, struct {
			Name  string
			Event model.Event
			When  string
		}{r.Name, event, eventWhen(event)})
		msg.Subject = "You're confirmed for " + event.Title
		return msg
	}
}

// PasswordResetRenderer carries the single-use reset link.
func PasswordResetRenderer(resetURL string, ttl time.Duration) RenderFunc {
	return func(r Recipient) Message {
		msg := renderTmpl(passwordResetTmpl, struct {
			Name     string
			ResetURL string
			TTL      time.Duration
		}{r.Name, resetURL, ttl})
		msg.Subject = "Reset Your Password"
		return msg
	}
}
