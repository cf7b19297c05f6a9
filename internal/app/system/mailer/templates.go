// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// VerificationEmailData holds data for the signup verification email.
type VerificationEmailData struct {
	SiteName  string
	Username  string
	Code      string
	CheckURL  string // absolute link to the code entry page; optional
	ExpiresIn string // e.g., "10 minutes"
}

// BuildVerificationEmail creates the verification email for to.
func BuildVerificationEmail(to string, data VerificationEmailData) Email {
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Your %s verification code", data.SiteName),
		TextBody: buildVerificationText(data),
		HTMLBody: buildVerificationHTML(data),
	}
}

func buildVerificationText(data VerificationEmailData) string {
	var buf bytes.Buffer
	if data.Username != "" {
		fmt.Fprintf(&buf, "Hello %s,\n\n", data.Username)
	}
	fmt.Fprintf(&buf, "Your %s verification code is: %s\n\n", data.SiteName, data.Code)
	if data.CheckURL != "" {
		buf.WriteString("Enter it here to activate your account:\n")
		buf.WriteString(data.CheckURL + "\n\n")
	}
	fmt.Fprintf(&buf, "This code expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not sign up, you can safely ignore this email.\n")
	return buf.String()
}

var verificationHTML = template.Must(template.New("verification").Parse(verificationHTMLTemplate))

func buildVerificationHTML(data VerificationEmailData) string {
	var buf bytes.Buffer
	_ = verificationHTML.Execute(&buf, data)
	return buf.String()
}

const verificationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Verification Code</title>
</head>
<body style="margin:0;padding:0;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;background-color:#eef5ef;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding:40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:480px;background:#ffffff;border-radius:8px;">
          <tr>
            <td style="padding:28px 32px;text-align:center;border-bottom:1px solid #d9e7dc;">
              <h1 style="margin:0;font-size:22px;color:#2f7d32;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding:32px;">
              {{if .Username}}<p style="margin:0 0 16px;font-size:16px;color:#374151;">Hello {{.Username}},</p>{{end}}
              <p style="margin:0 0 24px;font-size:16px;color:#374151;">Your verification code is:</p>
              <div style="background:#f3f4f6;border-radius:8px;padding:24px;text-align:center;margin-bottom:24px;">
                <span style="font-size:32px;font-weight:700;letter-spacing:8px;color:#1f2937;font-family:'Courier New',monospace;">{{.Code}}</span>
              </div>
              {{if .CheckURL}}
              <p style="margin:0 0 24px;text-align:center;">
                <a href="{{.CheckURL}}" style="display:inline-block;padding:12px 28px;background:#2f7d32;color:#ffffff;text-decoration:none;border-radius:6px;">Enter code</a>
              </p>
              {{end}}
              <p style="margin:0;font-size:13px;color:#9ca3af;text-align:center;">This code expires in {{.ExpiresIn}}.</p>
            </td>
          </tr>
          <tr>
            <td style="padding:20px 32px;background:#f9fafb;border-top:1px solid #e5e7eb;">
              <p style="margin:0;font-size:12px;color:#9ca3af;text-align:center;">If you did not sign up, you can safely ignore this email.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
