package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

type Template string

const (
	TemplateWelcome       Template = "welcome"
	TemplatePasswordReset Template = "passwordReset"
)

var subjects = map[Template]string{
	TemplateWelcome:       "Welcome to the Tourbook family!",
	TemplatePasswordReset: "Your password reset token (valid for only 10 minutes)",
}

var templates = template.Must(template.New("email").Parse(`
{{define "welcome"}}<p>Hi {{.FirstName}},</p>
<p>Welcome to Tourbook, we're glad to have you!</p>
<p>Set up your account and upload a photo: <a href="{{.URL}}">{{.URL}}</a></p>{{end}}
{{define "passwordReset"}}<p>Hi {{.FirstName}},</p>
<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:
<a href="{{.URL}}">{{.URL}}</a></p>
<p>If you didn't forget your password, please ignore this email.</p>{{end}}
`))

var converter = md.NewConverter("", true, nil)

type Recipient struct {
	Name  string
	Email string
}

func (r Recipient) FirstName() string {
	if first, _, ok := strings.Cut(strings.TrimSpace(r.Name), " "); ok {
		return first
	}
	return strings.TrimSpace(r.Name)
}

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Compose renders tmpl for to. It has no side effects; delivery is the
// Sender's job.
func Compose(tmpl Template, to Recipient, url string) (Message, error) {
	subject, ok := subjects[tmpl]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", tmpl)
	}

	var buf bytes.Buffer
	data := struct {
		FirstName string
		URL       string
	}{FirstName: to.FirstName(), URL: url}
	if err := templates.ExecuteTemplate(&buf, string(tmpl), data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", tmpl, err)
	}
	html := strings.TrimSpace(buf.String())

	text, err := converter.ConvertString(html)
	if err != nil {
		return Message{}, fmt.Errorf("text part for %s: %w", tmpl, err)
	}

	return Message{
		To:      to.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
	}, nil
}
