package services

import (
  "context"
  "fmt"
  "time"

  twilio "github.com/twilio/twilio-go"
  openapi "github.com/twilio/twilio-go/rest/api/v2010"

  "github.com/dialforhelp/localpro-backend/internal/config"
  "github.com/dialforhelp/localpro-backend/internal/logger"
)

type TextService interface {
  SendText(ctx context.Context, toNumber string, body string) error
}

type textService struct {
  log    *logger.Logger
  client *twilio.RestClient
  from   string
}

func NewTextService(cfg *config.Config, log *logger.Logger) (TextService, error) {
  serviceLog := log.With("service", "TextService")

  if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
    return nil, fmt.Errorf("Missing Twilio config values: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER")
  }

  client := twilio.NewRestClientWithParams(twilio.ClientParams{
    Username: cfg.TwilioAccountSID,
    Password: cfg.TwilioAuthToken,
  })
  // Delivery attempts are bounded; past this the send counts as failed.
  client.SetTimeout(10 * time.Second)

  ts := &textService{
    log:    serviceLog,
    client: client,
    from:   cfg.TwilioFromNumber,
  }
  return ts, nil
}

func (ts *textService) SendText(ctx context.Context, toNumber string, body string) error {
  params := &openapi.CreateMessageParams{}
  params.SetTo(toNumber)
  params.SetFrom(ts.from)
  params.SetBody(body)

  resp, err := ts.client.Api.CreateMessage(params)
  if err != nil {
    ts.log.Warn("Failed to send Text via Twilio", "error", err)
    return err
  }
  ts.log.Info("Successfully sent Text via Twilio", "toNumber", toNumber, "sid", *resp.Sid, "status", *resp.Status)
  return nil
}
