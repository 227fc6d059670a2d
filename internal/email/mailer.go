package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
)

// Mailer sends the account emails over SMTP.
type Mailer struct {
	Settings  SMTPSettings
	FromName  string
	FromEmail string

	// Send defaults to SendSMTP.
	Send func(ctx context.Context, settings SMTPSettings, msg Message) error
}

var verificationHTML = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="margin:0;padding:40px 20px;background-color:#f8f9fa;font-family:Arial,sans-serif;">
<div style="max-width:500px;margin:0 auto;background:#ffffff;border:2px solid #e9ecef;border-radius:16px;padding:32px;text-align:center;">
<h1 style="margin:0 0 16px;color:#667eea;">BlogSpark</h1>
<h2 style="margin:0 0 16px;color:#212529;">Verify Your Email Address</h2>
<p style="color:#6c757d;">Thanks for signing up! Enter this code to verify your email address:</p>
<p style="font-size:32px;font-weight:700;letter-spacing:6px;color:#212529;">{{.OTP}}</p>
<p style="color:#6c757d;">Or use this link:</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#667eea;color:#ffffff;border-radius:8px;text-decoration:none;">Verify Email</a></p>
<p style="color:#adb5bd;font-size:13px;">The code and link expire in a few minutes. If you did not request this, ignore this email.</p>
</div>
</body>
</html>`))

var resetHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="margin:0;padding:40px 20px;background-color:#f8f9fa;font-family:Arial,sans-serif;">
<div style="max-width:500px;margin:0 auto;background:#ffffff;border:2px solid #e9ecef;border-radius:16px;padding:32px;text-align:center;">
<h1 style="margin:0 0 16px;color:#667eea;">BlogSpark</h1>
<h2 style="margin:0 0 16px;color:#212529;">Reset Your Password</h2>
<p style="color:#6c757d;">We received a request to reset your password.</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#667eea;color:#ffffff;border-radius:8px;text-decoration:none;">Reset Password</a></p>
<p style="color:#adb5bd;font-size:13px;">The link expires in a few minutes. If you did not request this, ignore this email.</p>
</div>
</body>
</html>`))

func (m *Mailer) SendVerification(ctx context.Context, to, otp, link string) error {
	text := strings.Join([]string{
		"Thanks for signing up to BlogSpark!",
		"",
		"Your verification code is: " + otp,
		"",
		"Or verify using this link:",
		link,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")
	html, err := render(verificationHTML, map[string]string{"OTP": otp, "Link": link})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{
		ToEmail:  to,
		Subject:  "Verify Your BlogSpark Email Address",
		TextBody: text,
		HTMLBody: html,
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, link string) error {
	text := strings.Join([]string{
		"You requested a password reset.",
		"",
		"Reset your password using this link:",
		link,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")
	html, err := render(resetHTML, map[string]string{"Link": link})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{
		ToEmail:  to,
		Subject:  "Reset Your BlogSpark Password",
		TextBody: text,
		HTMLBody: html,
	})
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	msg.FromName = m.FromName
	msg.FromEmail = m.FromEmail
	send := m.Send
	if send == nil {
		send = SendSMTP
	}
	if err := send(ctx, m.Settings, msg); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// LogMailer writes links and codes to the log instead of sending mail. It is
// used in dev when no SMTP host is configured.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

func (m LogMailer) SendVerification(_ context.Context, to, otp, link string) error {
	m.logger().Info("verification email (not sent)", "to", to, "otp", otp, "link", link)
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.logger().Info("password reset email (not sent)", "to", to, "link", link)
	return nil
}
