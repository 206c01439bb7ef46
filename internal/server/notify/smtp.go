package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// implicitTLSPort is the SMTPS port; other ports use STARTTLS when offered.
const implicitTLSPort = 465

// SMTPConfig describes the relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg SMTPConfig

	// sendMail is smtp.SendMail for STARTTLS relays; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	dialTLS  func(network, addr string, cfg *tls.Config) (net.Conn, error)
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:      cfg,
		sendMail: smtp.SendMail,
		dialTLS: func(network, addr string, cfg *tls.Config) (net.Conn, error) {
			return tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, network, addr, cfg)
		},
	}
}

func (n *SMTPNotifier) auth() smtp.Auth {
	if n.cfg.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
}

// buildMessage renders RFC 5322 headers and body. Header values are
// stripped of CR and LF.
func buildMessage(from, to, subject, body string) []byte {
	clean := strings.NewReplacer("\r", "", "\n", "").Replace

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", clean(from))
	fmt.Fprintf(&b, "To: %s\r\n", clean(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", clean(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := n.cfg.From
	if from == "" {
		from = n.cfg.Username
	}
	raw := buildMessage(from, msg.To, msg.Subject, msg.Body)
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	if n.cfg.Port == implicitTLSPort {
		return n.sendImplicitTLS(addr, from, msg.To, raw)
	}

	if err := n.sendMail(addr, n.auth(), from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) sendImplicitTLS(addr, from, to string, raw []byte) error {
	conn, err := n.dialTLS("tcp", addr, &tls.Config{ServerName: n.cfg.Host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if a := n.auth(); a != nil {
		if err := client.Auth(a); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) Close() error { return nil }
