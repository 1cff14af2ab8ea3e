package notify

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-gate/internal/config"
	"ticket-gate/internal/models"
)

func testMailer() *Mailer {
	return NewMailer(
		config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "tickets@example.com", Password: "secret"},
		config.EventConfig{Name: "ELECTRAMCO", Date: "07 February", Timing: "3:00 AM – 12:00 PM", Currency: "EGP", Policy: "21+"},
	)
}

func testNotification() *models.TicketNotification {
	return &models.TicketNotification{
		Recipient:     "guest@example.com",
		GuestName:     "Nour <b>Adel</b>",
		TicketCode:    "7ALA-1A2B3C4D",
		TicketType:    "standing",
		PaymentAmount: 1500,
		CheckInURL:    "http://localhost:3000/check-in/7ALA-1A2B3C4D",
		QRCodePNG:     []byte("\x89PNG fake"),
	}
}

func TestComposeTicketEmail(t *testing.T) {
	e, err := testMailer().Compose(testNotification())
	require.NoError(t, err)

	assert.Equal(t, "tickets@example.com", e.From)
	assert.Equal(t, []string{"guest@example.com"}, e.To)
	assert.Equal(t, "Your Ticket for ELECTRAMCO — 7ALA-1A2B3C4D", e.Subject)

	html := string(e.HTML)
	assert.Contains(t, html, "7ALA-1A2B3C4D")
	assert.Contains(t, html, "EGP 1500")
	assert.Contains(t, html, "STANDING")
	assert.Contains(t, html, "cid:qrcode-ticket")
	assert.Contains(t, html, "Nour &lt;b&gt;Adel&lt;/b&gt;", "guest input must be escaped")

	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "7ALA-1A2B3C4D.png", e.Attachments[0].Filename)
	assert.Equal(t, "<qrcode-ticket>", e.Attachments[0].Header.Get("Content-ID"))
}

func TestSendReportsTransportError(t *testing.T) {
	m := testMailer()
	m.send = func(context.Context, *email.Email) error { return errors.New("535 auth failed") }

	err := m.Send(context.Background(), testNotification())
	assert.ErrorContains(t, err, "535 auth failed")
}

func TestSendGivesUpAfterContextDeadline(t *testing.T) {
	m := testMailer()
	release := make(chan struct{})
	defer close(release)
	m.send = func(context.Context, *email.Email) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, testNotification())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Send(context.Background(), testNotification()))
	assert.Equal(t, "none", n.Name())
}

// stalledSMTPServer accepts connections and never sends a greeting.
func stalledSMTPServer(t *testing.T) (host string, port int, closed <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	done := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Read returns once the client hangs up.
		_, _ = bufio.NewReader(conn).ReadString('\n')
		close(done)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, done
}

func TestDeliverAbandonsStalledServer(t *testing.T) {
	host, port, closed := stalledSMTPServer(t)
	m := NewMailer(
		config.SMTPConfig{Host: host, Port: port, Username: "tickets@example.com", Password: "secret"},
		config.EventConfig{Name: "ELECTRAMCO"},
	)
	e, err := m.Compose(testNotification())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.deliver(ctx, e)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection to the stalled server was left open")
	}
}

// recordingSMTPServer speaks just enough SMTP to accept one message.
func recordingSMTPServer(t *testing.T) (host string, port int, got func() string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var (
		mu   sync.Mutex
		data strings.Builder
	)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		reply("220 localhost ESMTP")
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					reply("250 queued")
					continue
				}
				mu.Lock()
				data.WriteString(line)
				mu.Unlock()
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250 localhost")
			case cmd == "DATA":
				inData = true
				reply("354 go ahead")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() string {
		mu.Lock()
		defer mu.Unlock()
		return data.String()
	}
}

func TestDeliverSendsMessage(t *testing.T) {
	host, port, got := recordingSMTPServer(t)
	m := NewMailer(
		config.SMTPConfig{Host: host, Port: port, Username: "tickets@example.com", Password: "secret"},
		config.EventConfig{Name: "ELECTRAMCO"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, testNotification()))

	assert.Contains(t, got(), "7ALA-1A2B3C4D")
	assert.Contains(t, got(), "<qrcode-ticket>")
}
