package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type EmailSender struct {
	apiKey      string
	senderEmail string
	senderName  string
}

func NewEmailSender(apiKey, senderEmail string) *EmailSender {
	return &EmailSender{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  "CourseHub Billing",
	}
}

// SendGrid request format
type sgEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
type sgRequest struct {
	Personalizations []struct {
		To []sgEmail `json:"to"`
	} `json:"personalizations"`
	From    sgEmail     `json:"from"`
	Subject string      `json:"subject"`
	Content []sgContent `json:"content"`
}

// SendPaymentFailed — письмо о неудачном списании со ссылкой на повторную
// оплату инвойса.
func (s *EmailSender) SendPaymentFailed(toEmail, invoiceID, paymentLink string) error {
	body := sgRequest{
		Personalizations: []struct {
			To []sgEmail `json:"to"`
		}{
			{To: []sgEmail{{Email: toEmail}}},
		},
		From: sgEmail{
			Email: s.senderEmail,
			Name:  s.senderName,
		},
		Subject: "Не удалось списать оплату подписки",
		Content: []sgContent{
			{
				Type: "text/html",
				Value: fmt.Sprintf(`
				<html>
				<body style="font-family: Arial, sans-serif; color: #1b263b;">
					<div style="max-width: 600px; margin: 40px auto; padding: 24px; border: 1px solid #e0e0e0; border-radius: 8px;">
						<h3>Оплата не прошла</h3>
						<p>Попытка оплаты по счету <strong>%s</strong> завершилась неудачно.
						Чтобы сохранить доступ к premium-курсам, завершите оплату по ссылке:</p>
						<p style="text-align: center; margin: 28px 0;">
							<a href="%s" style="padding: 12px 28px; background: #1b263b; color: #ffffff; text-decoration: none; border-radius: 6px;">Оплатить</a>
						</p>
						<p style="font-size: 12px; color: #888888;">Если вы уже оплатили, проигнорируйте это письмо.</p>
					</div>
				</body>
				</html>`, invoiceID, paymentLink),
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, "https://api.sendgrid.com/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
