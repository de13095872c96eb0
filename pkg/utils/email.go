package utils

import (
	"errors"
	"fmt"
	"sync"

	"checkmate/internal/config"

	"gopkg.in/gomail.v2"
)

var (
	mailerMu  sync.RWMutex
	smtpConf  config.SMTPConfig
	errNoSMTP = errors.New("SMTP is not configured")
)

// ConfigureMailer sets the SMTP account used by SendEmail.
func ConfigureMailer(cfg config.SMTPConfig) {
	mailerMu.Lock()
	defer mailerMu.Unlock()
	smtpConf = cfg
}

func SendEmail(to, subject, body string) error {
	mailerMu.RLock()
	cfg := smtpConf
	mailerMu.RUnlock()

	if cfg.Host == "" {
		return errNoSMTP
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", cfg.Email)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Email, cfg.Password)
	if err := d.DialAndSend(msg); err != nil {
		Logger.Errorf("failed to send email to %s", to)
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
