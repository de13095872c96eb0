package utils

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const emailStyle = `
	<style>
		body { font-family: 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f6f8f7; margin: 0; padding: 0; color: #333; }
		.container { max-width: 480px; margin: 25px auto; background: #ffffff; border-radius: 12px; box-shadow: 0 4px 16px rgba(0, 0, 0, 0.08); overflow: hidden; border-top: 5px solid #0a4d3c; }
		.header { background-color: #0a4d3c; color: #ffffff; text-align: center; padding: 18px 12px; }
		.header h1 { margin: 0; font-size: 18px; font-weight: 600; }
		.content { padding: 20px 18px; }
		.message { font-size: 14px; line-height: 1.6; color: #444; }
		.legs { background: #f3faf7; border: 1px solid #cfe7dc; border-radius: 8px; padding: 12px 14px; margin: 16px 0; }
		.legs p { margin: 4px 0; font-size: 13px; }
		.footer { background: #f6f6f6; text-align: center; padding: 14px; font-size: 12px; color: #777; border-top: 1px solid #e5e5e5; }
	</style>`

func renderEmail(title, content string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>%s</title>
	%s
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>%s</h1></div>
			<div class="content">%s</div>
			<div class="footer">&copy; %d Checkmate - settle your trips, keep your friends.</div>
		</div>
	</body>
	</html>
	`, html.EscapeString(title), emailStyle, html.EscapeString(title), content, time.Now().Year())
}

func renderLegs(legs []string) string {
	if len(legs) == 0 {
		return `<div class="legs"><p>Everyone is already even. No payments needed.</p></div>`
	}
	var b strings.Builder
	b.WriteString(`<div class="legs">`)
	for _, leg := range legs {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(leg))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// SendPlanReadyEmail asks a participant to review and confirm a plan.
func SendPlanReadyEmail(to, username, tripName string, legs []string) error {
	subject := fmt.Sprintf("🧾 Settlement ready for '%s'", tripName)
	content := fmt.Sprintf(`
		<p class="message">Hi %s,<br><br>The settlement plan for <b>%s</b> is ready. Please review it and confirm:</p>
		%s
		<p class="message">The trip is settled once every participant has confirmed.</p>
	`, html.EscapeString(username), html.EscapeString(tripName), renderLegs(legs))

	return SendEmail(to, subject, renderEmail("Settlement Ready", content))
}

// SendConfirmationReminderEmail nudges a participant who has not confirmed yet.
func SendConfirmationReminderEmail(to, username, tripName string) error {
	subject := fmt.Sprintf("⏰ Reminder: confirm the settlement for '%s'", tripName)
	content := fmt.Sprintf(`
		<p class="message">Hi %s,<br><br>Your friends are waiting for your confirmation of the settlement plan for <b>%s</b>.</p>
		<p class="message">Log in to Checkmate to review and confirm it.</p>
	`, html.EscapeString(username), html.EscapeString(tripName))

	return SendEmail(to, subject, renderEmail("Confirmation Reminder", content))
}

// SendSettlementCompletedEmail announces the final plan.
func SendSettlementCompletedEmail(to, username, tripName string, legs []string) error {
	subject := fmt.Sprintf("✅ '%s' is settled", tripName)
	content := fmt.Sprintf(`
		<p class="message">Hi %s,<br><br>Everyone agreed. The settlement for <b>%s</b> is final:</p>
		%s
	`, html.EscapeString(username), html.EscapeString(tripName), renderLegs(legs))

	return SendEmail(to, subject, renderEmail("Trip Settled", content))
}
