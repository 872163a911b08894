package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Size      string
	Quantity  int
	Price     decimal.Decimal
}

// ReceiptAlert is what the admin sees when a customer confirms delivery.
type ReceiptAlert struct {
	OrderID              string
	CustomerName         string
	CustomerEmail        string
	Note                 string
	AllItemsReceived     bool
	ItemsInGoodCondition bool
}

const currency = "ETB"

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(name, orderID string, items []OrderItem, deliveryFee, total decimal.Decimal) string {
	var rows strings.Builder
	for _, item := range items {
		label := item.Name
		if label == "" {
			label = item.ProductID
		}
		if item.Size != "" {
			label += " (" + item.Size + ")"
		}
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(label),
			item.Quantity,
			formatMoney(item.Price),
			formatMoney(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		))
	}

	content := fmt.Sprintf(`<p style="margin-top: 0;">Hi %s, thank you for your order.</p>
		%s
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>%s</tbody>
		</table>
		<p style="text-align: right; margin: 0;">Delivery: %s</p>
		<p style="text-align: right; font-size: 18px; font-weight: bold;">Total: %s</p>
		<p style="color: #666; font-size: 14px;">We will let you know as soon as your order ships.</p>`,
		html.EscapeString(greetingName(name)),
		orderBox(orderID),
		rows.String(),
		formatMoney(deliveryFee),
		formatMoney(total),
	)
	return layout("Thank you for your order", content)
}

func BuildShippingNoticeBody(name, orderID, carrier, trackingNumber string) string {
	content := fmt.Sprintf(`<p style="margin-top: 0;">Hi %s, your order is on its way.</p>
		%s
		<p><strong>Carrier:</strong> %s<br><strong>Tracking number:</strong> %s</p>
		<p style="color: #666; font-size: 14px;">Once it arrives, please confirm receipt from your order page.</p>`,
		html.EscapeString(greetingName(name)),
		orderBox(orderID),
		html.EscapeString(carrier),
		html.EscapeString(trackingNumber),
	)
	return layout("Your order has shipped", content)
}

func BuildPaymentReceiptBody(name, orderID, reference string, amount decimal.Decimal) string {
	content := fmt.Sprintf(`<p style="margin-top: 0;">Hi %s, we received your payment.</p>
		%s
		<p><strong>Amount:</strong> %s<br><strong>Reference:</strong> %s</p>
		<p style="color: #666; font-size: 14px;">Your order is now being processed.</p>`,
		html.EscapeString(greetingName(name)),
		orderBox(orderID),
		formatMoney(amount),
		html.EscapeString(reference),
	)
	return layout("Payment received", content)
}

func BuildReceiptAlertBody(a ReceiptAlert) string {
	note := "(no note)"
	if a.Note != "" {
		note = a.Note
	}
	content := fmt.Sprintf(`<p style="margin-top: 0;">%s (%s) confirmed receipt of their order.</p>
		%s
		<ul>
			<li>All items received: %s</li>
			<li>Items in good condition: %s</li>
		</ul>
		<p><strong>Customer note:</strong> %s</p>`,
		html.EscapeString(greetingName(a.CustomerName)),
		html.EscapeString(a.CustomerEmail),
		orderBox(a.OrderID),
		yesNo(a.AllItemsReceived),
		yesNo(a.ItemsInGoodCondition),
		html.EscapeString(note),
	)
	return layout("Order received by customer", content)
}

func layout(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #1f9d55 0%%, #146c43 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">%s</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		%s
	</div>
</body>
</html>`, html.EscapeString(title), content)
}

func orderBox(orderID string) string {
	return fmt.Sprintf(`<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>`, html.EscapeString(orderID))
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "<strong style=\"color: #c0392b;\">no</strong>"
}

// formatMoney renders an amount with thousands separators, e.g. "ETB 1,234.50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s %s%s.%s", currency, sign, b.String(), frac)
}
