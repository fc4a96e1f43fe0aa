package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the settings for outbound mail delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

// SMTPSender delivers single-use links over SMTP.
type SMTPSender struct {
	client    *mail.Client
	from      string
	templates map[Kind]emailTemplate
	logger    *slog.Logger
}

const (
	verificationBody = `<p>Welcome! Please confirm your email address by clicking the link below.</p>
<p><a href="{{.Link}}">Verify your email</a></p>
<p>The link expires in 24 hours. If you did not create an account, ignore this message.</p>`

	resetBody = `<p>We received a request to reset your password.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in 15 minutes. If you did not request a reset, ignore this message.</p>`

	magicLinkBody = `<p>A sign-in from an unrecognized device was requested for your account.</p>
<p><a href="{{.Link}}">Sign in</a></p>
<p>The link expires in 15 minutes and can be used once.</p>`
)

func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}

	templates := map[Kind]emailTemplate{
		KindEmailVerification: {subject: "Verify your email", body: template.Must(template.New("verify").Parse(verificationBody))},
		KindPasswordReset:     {subject: "Password reset request", body: template.Must(template.New("reset").Parse(resetBody))},
		KindMagicLink:         {subject: "Your sign-in link", body: template.Must(template.New("magic").Parse(magicLinkBody))},
	}

	return &SMTPSender{client: client, from: cfg.From, templates: templates, logger: logger}, nil
}

func (s *SMTPSender) Send(_ context.Context, kind Kind, recipient, link string) error {
	tmpl, ok := s.templates[kind]
	if !ok {
		return fmt.Errorf("no template for notification kind %q", kind)
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, struct{ Link string }{Link: link}); err != nil {
		return fmt.Errorf("render %s template: %w", kind, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(tmpl.subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := s.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", kind, err)
	}

	s.logger.Info("notification email sent", "kind", string(kind), "recipient", recipient)
	return nil
}
