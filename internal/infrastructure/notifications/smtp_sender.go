package notifications

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/config"
)

const defaultSendTimeout = 15 * time.Second

// SMTPSender delivers transactional email through a shoutrrr smtp:// service
type SMTPSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST must be set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP_FROM must be set")
	}
	return &SMTPSender{cfg: cfg, timeout: defaultSendTimeout}, nil
}

// ServiceURL builds the shoutrrr URL for a single recipient
func (s *SMTPSender) ServiceURL(msg *entities.EmailMessage) string {
	q := url.Values{}
	q.Set("fromaddress", s.cfg.From)
	q.Set("toaddresses", msg.To)
	if msg.HTML {
		q.Set("usehtml", "yes")
	} else {
		q.Set("usehtml", "no")
	}

	u := url.URL{
		Scheme:   "smtp",
		Host:     s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	if s.cfg.Username != "" {
		u.User = url.UserPassword(s.cfg.Username, s.cfg.Password)
	}
	return u.String()
}

// Send delivers msg, returning the first error reported by the router
func (s *SMTPSender) Send(ctx context.Context, msg *entities.EmailMessage) error {
	if msg == nil || msg.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sender, err := shoutrrr.CreateSender(s.ServiceURL(msg))
	if err != nil {
		return fmt.Errorf("failed to create smtp sender: %w", err)
	}
	sender.Timeout = s.timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	params.SetTitle(msg.Subject)

	for _, e := range sender.Send(msg.Body, &params) {
		if e != nil {
			return fmt.Errorf("failed to send email: %w", e)
		}
	}
	return nil
}

// LogSender records emails in the log instead of delivering them. It is
// used when SMTP is disabled.
type LogSender struct{}

// Send logs msg and always succeeds
func (LogSender) Send(ctx context.Context, msg *entities.EmailMessage) error {
	observability.LoggerFromContext(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Email delivery disabled, message logged only")
	return nil
}
