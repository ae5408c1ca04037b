package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Message is a rendered subject and plain-text body.
type Message struct {
	Subject string
	Body    string
}

var (
	otpTmpl = template.Must(template.New("otp").Parse(
		`Your {{.App}} login code is: {{.Code}}

This code expires in {{.TTL}}.
It was sent to your {{if .Backup}}backup{{else}}primary{{end}} email address.

If you did not try to sign in, you can ignore this message.
`))

	backupVerifyTmpl = template.Must(template.New("backup-verify").Parse(
		`Your {{.App}} backup email verification code is: {{.Code}}

Enter this code to confirm this address as your backup email.
`))

	backupTestTmpl = template.Must(template.New("backup-test").Parse(
		`This is a test message from {{.App}}.

If you received this, your backup email is configured correctly.
`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(
		`Hello{{if .Name}} {{.Name}}{{end}},

Your {{.App}} account was created.{{if not .Verified}} Please verify your email address before signing in.{{end}}
`))

	emailVerifyTmpl = template.Must(template.New("email-verify").Parse(
		`Your {{.App}} email verification code is: {{.Code}}

Enter this code to activate your account.
`))

	lockTmpl = template.Must(template.New("lock").Parse(
		`Multiple failed sign-in attempts were detected on your {{.App}} account.

Sign-in is blocked until {{.Until}}.
If this was not you, consider changing your password.
`))
)

type tmplData struct {
	App      string
	Code     string
	TTL      string
	Backup   bool
	Name     string
	Verified bool
	Until    string
}

func render(t *template.Template, data tmplData) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// Templates are static and parsed at init; execution only fails on
		// a programming error.
		panic(fmt.Sprintf("mail: render %s: %v", t.Name(), err))
	}
	return buf.String()
}

// OTPMessage renders the login code message.
func OTPMessage(app, code string, ttl time.Duration, backup bool) Message {
	return Message{
		Subject: app + " login code",
		Body:    render(otpTmpl, tmplData{App: app, Code: code, TTL: humanDuration(ttl), Backup: backup}),
	}
}

// BackupVerificationMessage renders the backup-address verification code.
func BackupVerificationMessage(app, code string) Message {
	return Message{
		Subject: "Verify your " + app + " backup email",
		Body:    render(backupVerifyTmpl, tmplData{App: app, Code: code}),
	}
}

// BackupTestMessage renders the backup-address test message.
func BackupTestMessage(app string) Message {
	return Message{
		Subject: app + " backup email test",
		Body:    render(backupTestTmpl, tmplData{App: app}),
	}
}

// EmailVerificationMessage renders the primary-address verification code
// sent on registration.
func EmailVerificationMessage(app, code string) Message {
	return Message{
		Subject: "Verify your " + app + " email",
		Body:    render(emailVerifyTmpl, tmplData{App: app, Code: code}),
	}
}

// WelcomeMessage renders the post-registration message.
func WelcomeMessage(app, name string, verified bool) Message {
	return Message{
		Subject: "Welcome to " + app,
		Body:    render(welcomeTmpl, tmplData{App: app, Name: name, Verified: verified}),
	}
}

// LockAlertMessage renders the account-lock notice.
func LockAlertMessage(app string, until time.Time) Message {
	return Message{
		Subject: app + " sign-in temporarily blocked",
		Body:    render(lockTmpl, tmplData{App: app, Until: until.UTC().Format(time.RFC1123)}),
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
