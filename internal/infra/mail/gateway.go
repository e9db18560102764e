package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"time"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/config"
	"github.com/serenbook/account-service/internal/infra/logger"
)

const dialTimeout = 30 * time.Second

// SMTPGateway delivers transactional mail over SMTP.
type SMTPGateway struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

// NewSMTPGateway constructs a gateway from SMTP settings.
func NewSMTPGateway(cfg config.SMTPSettings, log *zap.Logger) (*SMTPGateway, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(dialTimeout),
	}

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
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &SMTPGateway{client: client, from: cfg.From, logger: log}, nil
}

// SendOTP delivers a one-time code, with the reset link included when present.
func (g *SMTPGateway) SendOTP(ctx context.Context, msg port.OTPEmail) error {
	subject := "Your verification code"
	if msg.Purpose == port.OTPPurposePasswordReset {
		subject = "Your password reset code"
	}

	body, err := renderTemplate(otpTemplate, map[string]any{
		"Name": msg.Name,
		"Code": msg.Code,
		"Link": msg.Link,
	})
	if err != nil {
		return err
	}

	return g.send(ctx, msg.To, subject, body)
}

// SendPasswordReset delivers the combined reset link and code message.
func (g *SMTPGateway) SendPasswordReset(ctx context.Context, msg port.PasswordResetEmail) error {
	body, err := renderTemplate(resetTemplate, map[string]any{
		"Name": msg.Name,
		"Code": msg.Code,
		"Link": msg.Link,
	})
	if err != nil {
		return err
	}

	return g.send(ctx, msg.To, "Reset your password", body)
}

// SendWelcome delivers the post-verification welcome message.
func (g *SMTPGateway) SendWelcome(ctx context.Context, to, name string) error {
	body, err := renderTemplate(welcomeTemplate, map[string]any{"Name": name})
	if err != nil {
		return err
	}

	return g.send(ctx, to, "Welcome to Serenbook", body)
}

func (g *SMTPGateway) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(g.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := g.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	g.logger.Debug("email sent",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject))

	return nil
}

func renderTemplate(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

var _ port.EmailGateway = (*SMTPGateway)(nil)

// LogGateway stands in for SMTP in development: messages are logged, never
// delivered. Codes and links are masked so local logs stay credential-free.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway constructs the logging gateway.
func NewLogGateway(log *zap.Logger) *LogGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogGateway{logger: log}
}

func (g *LogGateway) SendOTP(_ context.Context, msg port.OTPEmail) error {
	g.logger.Info("otp email (log gateway)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("purpose", string(msg.Purpose)),
		zap.String("code", logger.MaskString(msg.Code)))
	return nil
}

func (g *LogGateway) SendPasswordReset(_ context.Context, msg port.PasswordResetEmail) error {
	g.logger.Info("password reset email (log gateway)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("code", logger.MaskString(msg.Code)),
		zap.String("link", logger.MaskString(msg.Link)))
	return nil
}

func (g *LogGateway) SendWelcome(_ context.Context, to, _ string) error {
	g.logger.Info("welcome email (log gateway)", zap.String("to", logger.MaskEmail(to)))
	return nil
}

var _ port.EmailGateway = (*LogGateway)(nil)
