package notification

import "log"

// Options selects and configures the channels to build. Credentials for
// disabled channels are ignored.
type Options struct {
	EmailEnabled    bool
	SMTPServer      string
	SMTPPort        int
	EmailUsername   string
	EmailPassword   string
	EmailRecipients []string

	SMSEnabled    bool
	SMSAPIKey     string
	SMSAPISecret  string
	SMSFromNumber string
	SMSRecipients []string

	WebhookEnabled bool
	WebhookURL     string

	TelegramEnabled  bool
	TelegramBotToken string
	TelegramChatID   string
}

// Build assembles the enabled notification channels. When nothing is
// enabled it falls back to the log notifier so alerts always land
// somewhere visible.
func Build(opts Options) []Notifier {
	var channels []Notifier

	if opts.EmailEnabled {
		channels = append(channels, NewEmailNotifier(
			opts.SMTPServer, opts.SMTPPort,
			opts.EmailUsername, opts.EmailPassword, opts.EmailRecipients))
	}
	if opts.SMSEnabled {
		channels = append(channels, NewSMSNotifier(
			opts.SMSAPIKey, opts.SMSAPISecret,
			opts.SMSFromNumber, opts.SMSRecipients))
	}
	if opts.WebhookEnabled {
		channels = append(channels, NewWebhookNotifier(opts.WebhookURL))
	}
	if opts.TelegramEnabled {
		channels = append(channels, NewTelegramNotifier(opts.TelegramBotToken, opts.TelegramChatID))
	}

	if len(channels) == 0 {
		log.Printf("[notify] no channels enabled, alerts go to the log only")
		channels = append(channels, NewLogNotifier())
	}
	return channels
}
