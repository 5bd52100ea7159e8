package pslog

import (
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
)

// Reporter mails log sessions and ad hoc reports through an SMTP relay.
type Reporter struct {
	Host string
	Port int
	From string
	To   []string

	// Auth is optional; many district relays accept unauthenticated mail
	// from inside the network.
	Auth smtp.Auth

	// send allows tests to intercept delivery.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewReporter creates a reporter for the given relay and addresses.
func NewReporter(host string, port int, from string, to []string) *Reporter {
	return &Reporter{
		Host: host,
		Port: port,
		From: from,
		To:   to,
		send: smtp.SendMail,
	}
}

// SendErrorReport mails the logger's transcript when the session logged any
// errors. A clean session sends nothing.
func (r *Reporter) SendErrorReport(subject string, logger *Logger) error {
	if !logger.HasErrors() {
		return nil
	}

	return r.SendReport(subject, logger.Transcript(), nil)
}

// SendReport mails a report with optional attachments, keyed by filename.
func (r *Reporter) SendReport(subject, body string, attachments map[string][]byte) error {
	message, err := r.buildMessage(subject, body, attachments)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.Host, r.Port)

	sender := r.send
	if sender == nil {
		sender = smtp.SendMail
	}

	if err := sender(addr, r.Auth, r.From, r.To, message); err != nil {
		return fmt.Errorf("sending report: %w", err)
	}

	return nil
}

func (r *Reporter) buildMessage(subject, body string, attachments map[string][]byte) ([]byte, error) {
	var builder strings.Builder

	fmt.Fprintf(&builder, "From: %s\r\n", r.From)
	fmt.Fprintf(&builder, "To: %s\r\n", strings.Join(r.To, ", "))
	fmt.Fprintf(&builder, "Subject: %s\r\n", subject)
	builder.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		builder.WriteString(body)

		return []byte(builder.String()), nil
	}

	var payload strings.Builder

	writer := multipart.NewWriter(&payload)

	fmt.Fprintf(&builder, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")

	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("building report body: %w", err)
	}

	if _, err := textPart.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("building report body: %w", err)
	}

	for filename, content := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/octet-stream")
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("attaching %s: %w", filename, err)
		}

		encoded := base64.StdEncoding.EncodeToString(content)
		if _, err := part.Write([]byte(encoded)); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finishing report: %w", err)
	}

	builder.WriteString(payload.String())

	return []byte(builder.String()), nil
}
