// Package notification delivers operator review items.
package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	infraconfig "github.com/marketplace/payouts/internal/infrastructure/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var reviewTemplate = template.Must(template.New("review").Parse(`<h2>Payout review required: {{.Kind}}</h2>
<table>
<tr><td>Vendor</td><td>{{.VendorID}}</td></tr>
{{if .PayoutID}}<tr><td>Payout</td><td>{{.PayoutID}}</td></tr>{{end}}
<tr><td>Period</td><td>{{.PeriodStart}} to {{.PeriodEnd}}</td></tr>
<tr><td>Commission</td><td>{{.CommissionTotal}} {{.Currency}}</td></tr>
<tr><td>Fees</td><td>{{.Fees}} {{.Currency}}</td></tr>
<tr><td>Tax</td><td>{{.Tax}} {{.Currency}}</td></tr>
<tr><td>Net</td><td>{{.Net}} {{.Currency}}</td></tr>
<tr><td>Raised at</td><td>{{.RaisedAt}}</td></tr>
</table>
<p>{{.Reason}}</p>
`))

type reviewView struct {
	Kind            string
	VendorID        string
	PayoutID        string
	PeriodStart     string
	PeriodEnd       string
	Currency        string
	CommissionTotal string
	Fees            string
	Tax             string
	Net             string
	RaisedAt        string
	Reason          string
}

func newReviewView(item finance.ReviewItem) reviewView {
	currency := valueobject.Currency(item.Currency)
	amount := func(v int64) string { return valueobject.FormatMinor(v, currency) }
	view := reviewView{
		Kind:            string(item.Kind),
		VendorID:        item.VendorID.String(),
		PeriodStart:     item.PeriodStart.UTC().Format("2006-01-02"),
		PeriodEnd:       item.PeriodEnd.UTC().Format("2006-01-02"),
		Currency:        item.Currency,
		CommissionTotal: amount(item.CommissionTotal),
		Fees:            amount(item.FeesDeducted),
		Tax:             amount(item.TaxDeducted),
		Net:             amount(item.NetAmount),
		RaisedAt:        item.RaisedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		Reason:          item.Reason,
	}
	if item.PayoutID != nil {
		view.PayoutID = item.PayoutID.String()
	}
	return view
}

// sender is satisfied by *gomail.Dialer
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailOperatorQueue emails review items to the operator recipients over SMTP
type MailOperatorQueue struct {
	sender     sender
	from       string
	recipients []string
	logger     *zap.Logger
}

// NewMailOperatorQueue creates a queue from mail configuration
func NewMailOperatorQueue(cfg infraconfig.MailConfig, logger *zap.Logger) (*MailOperatorQueue, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail host is required")
	}
	if cfg.From == "" || len(cfg.Recipients) == 0 {
		return nil, errors.New("mail sender and at least one recipient are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return newMailOperatorQueue(dialer, cfg.From, cfg.Recipients, logger), nil
}

func newMailOperatorQueue(s sender, from string, recipients []string, logger *zap.Logger) *MailOperatorQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailOperatorQueue{sender: s, from: from, recipients: recipients, logger: logger}
}

// Enqueue implements finance.OperatorQueue
func (q *MailOperatorQueue) Enqueue(ctx context.Context, item finance.ReviewItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := reviewTemplate.Execute(&body, newReviewView(item)); err != nil {
		return fmt.Errorf("failed to render review mail: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", q.from)
	msg.SetHeader("To", q.recipients...)
	msg.SetHeader("Subject", subjectFor(item))
	msg.SetBody("text/html", body.String())

	if err := q.sender.DialAndSend(msg); err != nil {
		q.logger.Error("Failed to send operator review mail",
			zap.String("kind", string(item.Kind)),
			zap.String("vendor_id", item.VendorID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send review mail: %w", err)
	}
	q.logger.Info("Operator review mail sent",
		zap.String("kind", string(item.Kind)),
		zap.String("vendor_id", item.VendorID.String()),
		zap.Int("recipients", len(q.recipients)),
	)
	return nil
}

func subjectFor(item finance.ReviewItem) string {
	if item.PayoutID != nil {
		return fmt.Sprintf("[payouts] %s for payout %s", item.Kind, item.PayoutID)
	}
	return fmt.Sprintf("[payouts] %s for vendor %s", item.Kind, item.VendorID)
}

// LogOperatorQueue writes review items to the log. It is used when no SMTP
// server is configured.
type LogOperatorQueue struct {
	logger *zap.Logger
}

// NewLogOperatorQueue creates a new LogOperatorQueue
func NewLogOperatorQueue(logger *zap.Logger) *LogOperatorQueue {
	return &LogOperatorQueue{logger: logger}
}

// Enqueue implements finance.OperatorQueue
func (q *LogOperatorQueue) Enqueue(_ context.Context, item finance.ReviewItem) error {
	fields := []zap.Field{
		zap.String("kind", string(item.Kind)),
		zap.String("vendor_id", item.VendorID.String()),
		zap.Time("period_start", item.PeriodStart),
		zap.Time("period_end", item.PeriodEnd),
		zap.String("currency", item.Currency),
		zap.Int64("commission_total", item.CommissionTotal),
		zap.Int64("net_amount", item.NetAmount),
		zap.String("reason", item.Reason),
	}
	if item.PayoutID != nil {
		fields = append(fields, zap.String("payout_id", item.PayoutID.String()))
	}
	q.logger.Warn("Operator review required", fields...)
	return nil
}

var (
	_ finance.OperatorQueue = (*MailOperatorQueue)(nil)
	_ finance.OperatorQueue = (*LogOperatorQueue)(nil)
)
