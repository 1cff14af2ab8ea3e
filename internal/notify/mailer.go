package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"ticket-gate/internal/config"
	"ticket-gate/internal/models"
)

const (
	qrContentID = "qrcode-ticket"

	// Upper bound for one SMTP exchange when the caller's context has no
	// deadline of its own.
	defaultSMTPTimeout = 30 * time.Second
)

var ticketTemplate = template.Must(template.New("ticket").Parse(`
<div style="font-family:Arial,sans-serif;background:#111;color:#f6ead1;padding:24px;line-height:1.6;">
  <h2 style="margin:0 0 8px;">Your 7ALA Ticket Is Confirmed ✅</h2>
  <p style="margin:0 0 16px;">Hi {{.GuestName}}, your payment was received. Here is your QR ticket.</p>
  <p><strong>Ticket Code:</strong> {{.TicketCode}}</p>
  <p><strong>Date:</strong> {{.Event.Date}}</p>
  <p><strong>Timing:</strong> {{.Event.Timing}}</p>
  <p><strong>Lineup:</strong> {{.Event.Lineup}}</p>
  <p><strong>Location:</strong> {{.Event.Location}}</p>
  <p><strong>Ticket Type:</strong> {{.TicketType}}</p>
  <p><strong>Paid Amount:</strong> {{.Event.Currency}} {{.PaymentAmount}}</p>
  <p><strong>Organizer Check-In URL:</strong> {{.CheckInURL}}</p>
  <div style="margin:20px 0;">
    <img src="cid:{{.ContentID}}" alt="QR Ticket" style="width:240px;height:240px;border:1px solid #333;padding:8px;background:#0f0c0a;" />
  </div>
  <p style="font-size:13px;color:#ffcb7c;"><strong>Warning:</strong> Do not share this QR code. Only organizers should scan it at entry.</p>
  <p style="font-size:13px;color:#bda982;">Entry policy: {{.Event.Policy}}</p>
</div>`))

type ticketView struct {
	GuestName     string
	TicketCode    string
	TicketType    string
	PaymentAmount int64
	CheckInURL    string
	ContentID     string
	Event         config.EventConfig
}

// Mailer sends the ticket over SMTP with the QR inlined in the HTML body.
type Mailer struct {
	cfg   config.SMTPConfig
	event config.EventConfig
	send  func(ctx context.Context, e *email.Email) error
}

func NewMailer(cfg config.SMTPConfig, event config.EventConfig) *Mailer {
	m := &Mailer{cfg: cfg, event: event}
	m.send = m.deliver
	return m
}

func (m *Mailer) Name() string { return "smtp" }

// Compose builds the message without sending it.
func (m *Mailer) Compose(n *models.TicketNotification) (*email.Email, error) {
	var body bytes.Buffer
	err := ticketTemplate.Execute(&body, ticketView{
		GuestName:     n.GuestName,
		TicketCode:    n.TicketCode,
		TicketType:    strings.ToUpper(n.TicketType),
		PaymentAmount: n.PaymentAmount,
		CheckInURL:    n.CheckInURL,
		ContentID:     qrContentID,
		Event:         m.event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render ticket email: %w", err)
	}

	e := email.NewEmail()
	e.From = m.cfg.Sender()
	e.To = []string{n.Recipient}
	e.Subject = fmt.Sprintf("Your Ticket for %s — %s", m.event.Name, n.TicketCode)
	e.HTML = body.Bytes()

	if len(n.QRCodePNG) > 0 {
		filename := n.TicketCode + ".png"
		a, err := e.Attach(bytes.NewReader(n.QRCodePNG), filename, "image/png")
		if err != nil {
			return nil, fmt.Errorf("failed to attach qr code: %w", err)
		}
		a.Header.Set("Content-Disposition", fmt.Sprintf("inline;\r\n filename=%q", filename))
		a.Header.Set("Content-ID", "<"+qrContentID+">")
	}
	return e, nil
}

// Send returns once the SMTP exchange finishes or ctx ends. The exchange
// is tied to ctx, so an abandoned send does not outlive it.
func (m *Mailer) Send(ctx context.Context, n *models.TicketNotification) error {
	e, err := m.Compose(n)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.send(ctx, e) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send ticket email to %s: %w", n.Recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ticket email to %s not confirmed: %w", n.Recipient, ctx.Err())
	}
}

// deliver speaks SMTP over a connection bounded by ctx: the dial honours it,
// the socket deadline follows it, and cancelling it closes the socket.
func (m *Mailer) deliver(ctx context.Context, e *email.Email) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSMTPTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	raw, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("invalid sender %q: %w", e.From, err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	// 465 is implicit TLS; everything else negotiates STARTTLS when offered.
	if m.cfg.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer c.Close()

	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := c.Mail(from.Address); err != nil {
		return err
	}
	for _, to := range e.To {
		rcpt, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
		if err := c.Rcpt(rcpt.Address); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
