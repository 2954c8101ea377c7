package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rsi-tracker/internal/signal"
)

// SMSNotifier sends alerts as text messages through the Twilio REST API.
type SMSNotifier struct {
	accountSID string
	authToken  string
	from       string
	recipients []string
	client     *http.Client
}

// NewSMSNotifier creates a Twilio-backed SMS notifier. from is the
// sending phone number in E.164 form.
func NewSMSNotifier(accountSID, authToken, from string, recipients []string) *SMSNotifier {
	return &SMSNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		recipients: recipients,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SMSNotifier) Name() string { return "sms" }

func (s *SMSNotifier) Send(ctx context.Context, sig signal.Signal) error {
	if s.accountSID == "" || s.authToken == "" || s.from == "" || len(s.recipients) == 0 {
		return fmt.Errorf("sms: %w", ErrNotConfigured)
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)
	text := messageText(sig)

	for _, to := range s.recipients {
		form := url.Values{}
		form.Set("From", s.from)
		form.Set("To", to)
		form.Set("Body", text)

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("sms: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(s.accountSID, s.authToken)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("sms: send to %s: %w", to, err)
		}
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("sms: unexpected status %d for %s", resp.StatusCode, to)
		}
	}

	log.Printf("[sms] sent alert for %s to %d recipients", sig.Symbol, len(s.recipients))
	return nil
}
