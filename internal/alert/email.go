package alert

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/simbiota/simbiotad/internal/config"
	"github.com/simbiota/simbiotad/internal/logging"
)

// EmailSink sends a detection notification over SMTP, body shape grounded
// on the original's email_alert.rs::gen_body. Unlike the original — which
// panics if smtp_config is absent — a misconfigured sink simply logs and
// drops, since the dispatcher must never let one collaborator wedge
// the alert queue.
type EmailSink struct {
	cfg     config.EmailConfig
	limiter *rateLimiter
	log     *logging.Logger
}

// NewEmailSink constructs an EmailSink rate-limited per recipient+path at
// DefaultRateLimitWindow.
func NewEmailSink(cfg config.EmailConfig) *EmailSink {
	return &EmailSink{cfg: cfg, limiter: newRateLimiter(DefaultRateLimitWindow), log: logging.Get("alert.email")}
}

// Notify implements Sink.
func (s *EmailSink) Notify(event DetectionEvent) {
	if !s.cfg.Enabled || len(s.cfg.Recipients) == 0 {
		return
	}

	now := time.Now()
	var recipients []string
	for _, r := range s.cfg.Recipients {
		if s.limiter.allow(r, event.Path, now) {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return
	}

	if err := s.send(recipients, event); err != nil {
		s.log.Warn("failed to send email alert", "error", err, "path", event.Path)
		return
	}
	s.log.Debug("alert email sent", "path", event.Path, "recipients", len(recipients))
}

func (s *EmailSink) send(recipients []string, event DetectionEvent) error {
	smtpCfg := s.cfg.SMTP
	from := fmt.Sprintf("SIMBIoTA AV <%s>", smtpCfg.Username)
	subject := "SIMBIoTA Alert"
	body := s.genBody(event)

	msg := buildMessage(from, recipients, subject, body)
	addr := fmt.Sprintf("%s:%d", smtpCfg.Server, smtpCfg.Port)
	auth := smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Server)

	switch smtpCfg.Security {
	case config.SMTPSecuritySSL:
		return sendTLS(addr, smtpCfg.Server, auth, from, recipients, msg)
	case config.SMTPSecurityStartTLS, config.SMTPSecurityNone:
		return smtp.SendMail(addr, auth, from, recipients, msg)
	default:
		return fmt.Errorf("unsupported smtp security %q", smtpCfg.Security)
	}
}

func sendTLS(addr, server string, auth smtp.Auth, from string, recipients []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: server})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, server)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, r := range recipients {
		if err := client.Rcpt(r); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func buildMessage(from string, recipients []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", subject)
	b.WriteString(body)
	return []byte(b.String())
}

func (s *EmailSink) genBody(event DetectionEvent) string {
	if event.Note != "" {
		return fmt.Sprintf("SIMBIoTA Alert message:\n\n%s\nTime: %s", event.Note, event.Time.Format(time.RFC3339))
	}
	sig := "unknown"
	if event.Matched != nil {
		sig = fmt.Sprintf("%s (distance %d)", event.Matched.Name, event.Matched.Distance)
	}
	size := "unknown"
	if event.Size > 0 {
		size = humanize.IBytes(uint64(event.Size))
	}
	return fmt.Sprintf(
		"SIMBIoTA Alert message:\n\nThe system detected a malicious file: %s (%s)\nMatched signature: %s\nDetection time: %s",
		event.Path, size, sig, event.Time.Format(time.RFC3339),
	)
}
