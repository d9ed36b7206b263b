package notify

import (
	"bytes"
	"errors"
	"html/template"
	"time"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

type messageData struct {
	Plan         string
	Support      string
	Subscription billing.Subscription
}

type message struct {
	subject func(messageData) string
	tag     string
	body    *template.Template
}

var funcs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format("January 2, 2006")
	},
}

const layout = `<!doctype html><html><body style="font-family:sans-serif">{{template "content" .}}
<p style="color:#888;font-size:12px">Questions? Write to {{.Support}}.</p></body></html>`

func newMessage(tag string, subject func(messageData) string, content string) message {
	t := template.Must(template.New("layout").Funcs(funcs).Parse(layout))
	template.Must(t.New("content").Parse(content))
	return message{subject: subject, tag: tag, body: t}
}

func fixed(s string) func(messageData) string {
	return func(messageData) string { return s }
}

var messages = map[billing.NotificationKind]message{
	billing.NotifyNewSubscription: newMessage("subscription-new",
		func(d messageData) string { return "Welcome to " + d.Plan }, `
<h1>Thanks for subscribing</h1>
<p>Your <strong>{{.Plan}}</strong> subscription is active until {{date .Subscription.CurrentPeriodEnd}}.</p>`),

	billing.NotifyRenewedSubscription: newMessage("subscription-renewed",
		fixed("Your subscription was renewed"), `
<h1>Subscription renewed</h1>
<p>Your <strong>{{.Plan}}</strong> subscription now runs until {{date .Subscription.CurrentPeriodEnd}}.</p>`),

	billing.NotifyCanceledSubscription: newMessage("subscription-canceled",
		fixed("Your subscription was canceled"), `
<h1>Subscription canceled</h1>
<p>Your <strong>{{.Plan}}</strong> subscription was canceled on {{date .Subscription.CanceledAt}}.
You can subscribe again at any time.</p>`),

	billing.NotifyPaymentFailed: newMessage("payment-failed",
		fixed("Payment failed"), `
<h1>We could not charge your card</h1>
<p>The latest payment for your <strong>{{.Plan}}</strong> subscription failed.
Please update your payment method to keep access.</p>`),
}

func render(kind billing.NotificationKind, data messageData) (subject, body, tag string, err error) {
	m, ok := messages[kind]
	if !ok {
		return "", "", "", ErrUnknownKind
	}
	var buf bytes.Buffer
	if err := m.body.Execute(&buf, data); err != nil {
		return "", "", "", errors.Join(ErrRenderTemplate, err)
	}
	return m.subject(data), buf.String(), m.tag, nil
}
