package services

import (
  "context"
  "fmt"

  "github.com/sendgrid/sendgrid-go"
  "github.com/sendgrid/sendgrid-go/helpers/mail"

  "github.com/dialforhelp/localpro-backend/internal/config"
  "github.com/dialforhelp/localpro-backend/internal/logger"
)

type EmailService interface {
  SendEmail(ctx context.Context, toEmail string, subject string, plainText string, htmlContent string) error
}

type emailService struct {
  log       *logger.Logger
  client    *sendgrid.Client
  fromEmail string
}

func NewEmailService(cfg *config.Config, log *logger.Logger) (EmailService, error) {
  serviceLog := log.With("service", "EmailService")
  if cfg.SendgridAPIKey == "" {
    return nil, fmt.Errorf("Missing SENDGRID_API_KEY config value")
  }
  client := sendgrid.NewSendClient(cfg.SendgridAPIKey)

  return &emailService{
    log:       serviceLog,
    client:    client,
    fromEmail: cfg.SendgridFromEmail,
  }, nil
}

func (es *emailService) SendEmail(ctx context.Context, toEmail string, subject string, plainText string, htmlContent string) error {
  from := mail.NewEmail("LocalPro", es.fromEmail)
  to := mail.NewEmail("", toEmail)
  message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
  response, err := es.client.SendWithContext(ctx, message)
  if err != nil {
    es.log.Warn("Sendgrid email send failed", "error", err)
    return err
  }
  es.log.Info("Email sent", "to", toEmail, "statusCode", response.StatusCode)
  return nil
}
