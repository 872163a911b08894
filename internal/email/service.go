package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"
)

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service. Credentials are optional; local
// relays such as MailHog accept unauthenticated mail.
func NewService(host, port, user, password, from string) *Service {
	s := &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
	if user != "" {
		s.auth = smtp.PlainAuth("", user, password, host)
	}
	return s
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, name, orderID string, items []OrderItem, deliveryFee, total decimal.Decimal) error {
	subject := fmt.Sprintf("Order confirmation (order %s)", shortID(orderID))
	return s.send(to, subject, BuildOrderConfirmationBody(name, orderID, items, deliveryFee, total))
}

// SendShippingNotice tells the customer the order is on its way.
func (s *Service) SendShippingNotice(to, name, orderID, carrier, trackingNumber string) error {
	subject := fmt.Sprintf("Your order %s has shipped", shortID(orderID))
	return s.send(to, subject, BuildShippingNoticeBody(name, orderID, carrier, trackingNumber))
}

// SendPaymentReceipt confirms a verified online payment.
func (s *Service) SendPaymentReceipt(to, name, orderID, reference string, amount decimal.Decimal) error {
	subject := fmt.Sprintf("Payment received for order %s", shortID(orderID))
	return s.send(to, subject, BuildPaymentReceiptBody(name, orderID, reference, amount))
}

// SendReceiptAlert notifies the shop admin that a customer confirmed receipt.
func (s *Service) SendReceiptAlert(to string, alert ReceiptAlert) error {
	subject := fmt.Sprintf("Order %s received by customer", shortID(alert.OrderID))
	if !alert.AllItemsReceived || !alert.ItemsInGoodCondition {
		subject = fmt.Sprintf("[Attention] Order %s received with issues", shortID(alert.OrderID))
	}
	return s.send(to, subject, BuildReceiptAlertBody(alert))
}

func (s *Service) send(to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no recipient for %q", subject)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, s.auth, s.from, []string{to}, []byte(msg))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
