package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Режимы TLS.
const (
	TLSNone     = "none"     // без шифрования
	TLSStartTLS = "starttls" // STARTTLS после EHLO (порт 587)
	TLSImplicit = "implicit" // TLS сразу после connect (порт 465)
)

// SMTPConfig — параметры почтового сервера.
type SMTPConfig struct {
	Host      string
	Port      int
	TLSMode   string
	Username  string
	Password  string
	FromName  string
	FromEmail string

	// Timeout ограничивает всю сессию: connect, auth, send, quit (default: 30s).
	Timeout time.Duration

	// InsecureSkipVerify отключает проверку сертификата (только для разработки).
	InsecureSkipVerify bool
}

// Validate проверяет обязательные поля.
func (c SMTPConfig) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	case c.Port <= 0:
		return fmt.Errorf("%w: port must be positive", ErrInvalidConfig)
	case c.FromEmail == "":
		return fmt.Errorf("%w: from email is required", ErrInvalidConfig)
	case c.FromName == "":
		return fmt.Errorf("%w: from name is required", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	switch c.TLSMode {
	case "", TLSNone, TLSStartTLS, TLSImplicit:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTLSMode, c.TLSMode)
	}

	if _, err := mail.ParseAddress(c.FromEmail); err != nil {
		return fmt.Errorf("%w: from email: %v", ErrInvalidConfig, err)
	}

	return nil
}

// SMTPSender отправляет письма через SMTP.
//
// Каждое письмо — отдельная сессия: connect → (STARTTLS) → AUTH → MAIL/RCPT/DATA → QUIT.
// Любая ошибка на любом шаге возвращается как есть, без повторов.
type SMTPSender struct {
	cfg    SMTPConfig
	from   mail.Address
	logger *slog.Logger
	now    func() time.Time
}

// NewSMTPSender создаёт SMTPSender. Пустой TLSMode — starttls.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSStartTLS
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPSender{
		cfg:    cfg,
		from:   mail.Address{Name: cfg.FromName, Address: cfg.FromEmail},
		logger: logger,
		now:    time.Now,
	}, nil
}

// SendBookingConfirmation отправляет одно письмо.
func (s *SMTPSender) SendBookingConfirmation(ctx context.Context, toEmail, subject, body string) error {
	to, err := parseRecipient(toEmail)
	if err != nil {
		return err
	}

	msg, err := Message{
		From:    s.from,
		To:      *to,
		Subject: subject,
		Body:    body,
		Date:    s.now(),
	}.Bytes()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	// go-smtp сам выставляет дедлайны на каждую команду, поэтому
	// отмена ctx закрывает соединение и прерывает любой шаг сессии.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := s.newClient(conn)
	if err != nil {
		return sessionError(ctx, err)
	}
	defer c.Close()

	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return sessionError(ctx, fmt.Errorf("smtp auth: %w", err))
		}
	}

	if err := c.SendMail(s.from.Address, []string{to.Address}, bytes.NewReader(msg)); err != nil {
		return sessionError(ctx, fmt.Errorf("smtp send: %w", err))
	}

	if err := c.Quit(); err != nil {
		// Письмо уже принято сервером
		s.logger.Debug("smtp quit failed", "error", err)
	}

	s.logger.Debug("email sent", "to", to.Address, "host", s.cfg.Host)
	return nil
}

// dial открывает TCP (или TLS для implicit) соединение с сервером.
func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.TLSMode == TLSImplicit {
		d := &tls.Dialer{Config: s.tlsConfig()}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp connect %s: %w", addr, err)
	}
	return conn, nil
}

// newClient создаёт клиента с таймаутами команд из конфигурации.
// STARTTLS выполняется до того, как таймауты можно выставить; его
// ограничивает закрытие соединения по ctx.
func (s *SMTPSender) newClient(conn net.Conn) (*smtp.Client, error) {
	var c *smtp.Client
	if s.cfg.TLSMode == TLSStartTLS {
		var err error
		c, err = smtp.NewClientStartTLS(conn, s.tlsConfig())
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("smtp starttls %s: %w", conn.RemoteAddr(), err)
		}
	} else {
		c = smtp.NewClient(conn)
	}

	c.CommandTimeout = s.cfg.Timeout
	c.SubmissionTimeout = s.cfg.Timeout
	return c, nil
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
}

// sessionError добавляет причину отмены, если соединение закрыл дедлайн ctx.
func sessionError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", err, ctxErr)
	}
	return err
}
