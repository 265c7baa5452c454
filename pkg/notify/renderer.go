package notify

import (
	"fmt"
	"html/template"
	"strings"
)

// Renderer produces the subject and HTML body for one notification.
type Renderer interface {
	Render(typ Type, recipient Recipient) (subject, bodyHTML string, err error)
}

const baseTemplate = `<html><body style="font-family:sans-serif;max-width:520px;margin:0 auto">
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
{{block "content" .}}{{end}}
<p>— The {{.Product}} team</p>
</body></html>`

var notificationContent = map[Type]struct {
	subject string
	content string
}{
	TypePaymentFailed: {
		subject: "Action needed: your payment failed",
		content: `{{define "content"}}<p>We could not process your latest payment. Your access will be
suspended if the next attempt fails too.</p>
<p>Please update your payment method in your billing settings.</p>{{end}}`,
	},
	TypeSubscriptionCanceled: {
		subject: "Your subscription has been cancelled",
		content: `{{define "content"}}<p>Your subscription is now cancelled and will not renew. You can
resubscribe at any time to pick up where you left off.</p>{{end}}`,
	},
	TypePlanChanged: {
		subject: "Your plan has changed",
		content: `{{define "content"}}<p>Your plan change is now active. Your new allowance starts with
this billing cycle.</p>{{end}}`,
	},
}

type templateRenderer struct {
	product   string
	templates map[Type]*template.Template
}

// NewRenderer builds the default renderer. Templates are parsed once here so
// a broken template fails at startup, not on the first payment failure.
func NewRenderer(product string) Renderer {
	r := &templateRenderer{
		product:   product,
		templates: make(map[Type]*template.Template, len(notificationContent)),
	}
	for typ, def := range notificationContent {
		r.templates[typ] = template.Must(
			template.Must(template.New(string(typ)).Parse(baseTemplate)).Parse(def.content))
	}
	return r
}

func (r *templateRenderer) Render(typ Type, recipient Recipient) (string, string, error) {
	tmpl, ok := r.templates[typ]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", typ)
	}
	var sb strings.Builder
	err := tmpl.Execute(&sb, struct {
		Name    string
		Product string
	}{Name: recipient.Name, Product: r.product})
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", typ, err)
	}
	return notificationContent[typ].subject, sb.String(), nil
}
