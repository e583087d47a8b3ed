package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/cppla/webdevhub/utils"
)

const baseLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Site}}</title>
</head>
<body style="font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;line-height:1.6;color:#374151;background:#f9fafb;margin:0;padding:0">
<div style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;overflow:hidden">
  <div style="background:linear-gradient(135deg,#ec4899 0%,#8b5cf6 100%);padding:40px 30px;text-align:center">
    <h1 style="color:#ffffff;font-size:28px;margin:0 0 8px">{{upper .Site}}</h1>
    <p style="color:rgba(255,255,255,0.9);margin:0">Your Gateway to Modern Web Development</p>
  </div>
  <div style="padding:40px 30px">{{template "content" .}}</div>
  <div style="background:#f9fafb;padding:30px;text-align:center;border-top:1px solid #e5e7eb">
    <p style="color:#6b7280;font-size:14px"><strong>{{.Site}}</strong> - Empowering developers worldwide</p>
    <p style="font-size:12px;color:#9ca3af">This email was sent from {{.Site}}. If you have any questions, please don't hesitate to contact us.</p>
  </div>
</div>
</body>
</html>`

var contentTemplates = map[EventType]string{
	EventWelcome: `<p style="font-size:18px;font-weight:600">Welcome aboard, {{.Ev.Name}}!</p>
<p>Your account is ready. Share what you build on the blog, ask and answer questions in the forum, and connect with other developers.</p>
<p><a href="{{.URL}}" style="color:#ec4899">Start exploring {{.Site}}</a></p>`,

	EventCommentAdded: `<p style="font-size:18px;font-weight:600">Hello {{.Ev.Name}},</p>
<p><strong>{{.Ev.Actor}}</strong> commented on your post "<strong>{{.Ev.Title}}</strong>".</p>
<div style="background:#f3f4f6;border-left:4px solid #ec4899;padding:24px;border-radius:8px">{{nl2br .Ev.Message}}</div>
{{if .Ev.Link}}<p><a href="{{.Ev.Link}}" style="color:#ec4899">View the conversation</a></p>{{end}}`,

	EventReplyAdded: `<p style="font-size:18px;font-weight:600">Hello {{.Ev.Name}},</p>
<p><strong>{{.Ev.Actor}}</strong> replied in your thread "<strong>{{.Ev.Title}}</strong>".</p>
<div style="background:#f3f4f6;border-left:4px solid #8b5cf6;padding:24px;border-radius:8px">{{nl2br .Ev.Message}}</div>
{{if .Ev.Link}}<p><a href="{{.Ev.Link}}" style="color:#ec4899">Join the discussion</a></p>{{end}}`,

	EventContactAdmin: `<p style="font-size:18px;font-weight:600">New contact form submission</p>
<p><strong>Name:</strong> {{.Ev.Name}}<br><strong>Email:</strong> {{.Ev.Email}}<br><strong>Subject:</strong> {{.Ev.Title}}</p>
<div style="background:#f9fafb;border:1px solid #e5e7eb;border-radius:8px;padding:20px">{{nl2br .Ev.Message}}</div>`,

	EventContactAutoReply: `<p style="font-size:18px;font-weight:600">Hello {{.Ev.Name}},</p>
<p>Thank you for contacting us. We have received your message and will get back to you as soon as possible.</p>
<div style="background:#f9fafb;border:1px solid #e5e7eb;border-radius:8px;padding:20px">
<p><strong>Subject:</strong> {{.Ev.Title}}</p>
<div style="color:#6b7280;font-style:italic">{{nl2br .Ev.Message}}</div>
</div>`,

	EventContactReply: `<p style="font-size:18px;font-weight:600">Hello {{.Ev.Name}},</p>
<p>Thank you for reaching out to us. We've carefully reviewed your message and are pleased to provide you with a personalized response.</p>
<div style="background:#f3f4f6;border-left:4px solid #ec4899;padding:24px;border-radius:8px"><h3>Our Response</h3><p>{{nl2br .Ev.Reply}}</p></div>
<div style="background:#f9fafb;border:1px solid #e5e7eb;border-radius:8px;padding:20px">
<h4>Your Original Message</h4>
<p><strong>Subject:</strong> {{.Ev.Title}}</p>
<div style="color:#6b7280;font-style:italic">{{nl2br .Ev.Message}}</div>
</div>`,
}

type mailTemplates struct {
	site string
	url  string
	set  map[EventType]*template.Template
}

type templateData struct {
	Site string
	URL  string
	Ev   Event
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"nl2br": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}

func newMailTemplates(site, url string) *mailTemplates {
	set := make(map[EventType]*template.Template, len(contentTemplates))
	for ev, body := range contentTemplates {
		t := template.Must(template.New("base").Funcs(templateFuncs).Parse(baseLayout))
		template.Must(t.New("content").Parse(body))
		set[ev] = t
	}
	return &mailTemplates{site: site, url: url, set: set}
}

func (m *mailTemplates) subject(ev Event) string {
	switch ev.Type {
	case EventWelcome:
		return fmt.Sprintf("Welcome to %s! 🎉", m.site)
	case EventCommentAdded:
		return fmt.Sprintf("New Comment on %q 💬", ev.Title)
	case EventReplyAdded:
		return fmt.Sprintf("New Reply in %q 🗨️", ev.Title)
	case EventContactAdmin:
		return "📧 New Contact: " + ev.Title
	case EventContactAutoReply:
		return "✅ Thank you for contacting us - " + ev.Title
	case EventContactReply:
		return "💬 Re: " + ev.Title
	default:
		return m.site
	}
}

func (m *mailTemplates) render(ev Event) (utils.Mail, error) {
	t, ok := m.set[ev.Type]
	if !ok {
		return utils.Mail{}, fmt.Errorf("no template for notification %q", ev.Type)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", templateData{Site: m.site, URL: m.url, Ev: ev}); err != nil {
		return utils.Mail{}, fmt.Errorf("render %s: %w", ev.Type, err)
	}
	return utils.Mail{To: ev.To, Subject: m.subject(ev), HTML: buf.String()}, nil
}
