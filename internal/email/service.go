package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"belta/internal/logger"
	"belta/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
)

type EmailJob struct {
	To         string    `json:"to"`
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Attachment string    `json:"attachment,omitempty"`
	Tries      int       `json:"tries"`
	Created    time.Time `json:"created"`
}

type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

// NewWithClient wires an existing redis client; tests use redismock here.
func NewWithClient(client *redis.Client, fromEmail, fromName string) *Service {
	return &Service{
		redis:    client,
		from:     fromEmail,
		fromName: fromName,
	}
}

func (s *Service) Send(ctx context.Context, to, name, subject, body, attachment string) error {
	job := EmailJob{
		To:         to,
		Name:       name,
		Subject:    subject,
		Body:       body,
		Attachment: attachment,
		Tries:      0,
		Created:    time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		return err
	}

	metrics.EmailQueueLength.Inc()
	logger.Infof("Email queued: %s to %s", subject, to)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}
	metrics.EmailQueueLength.Dec()

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Infof("Sending email to %s (attempt %d)", job.To, job.Tries)
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send email to %s: %v", job.To, err)
		metrics.RecordEmail("generic", "failed")

		if job.Tries < 3 {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			metrics.EmailQueueLength.Inc()
			logger.Infof("Retrying email to %s (attempt %d)", job.To, job.Tries+1)
		} else {
			logger.Errorf("Email to %s failed after 3 attempts", job.To)
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordEmail("generic", "sent")
	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) sendNow(job EmailJob) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, s.fromName))
	m.SetHeader("To", job.To)
	m.SetHeader("Subject", job.Subject)
	m.SetBody("text/plain", job.Body)

	if job.Attachment != "" {
		m.Attach(job.Attachment)
	}

	port := 587
	if p, err := strconv.Atoi(s.smtpPort); err == nil {
		port = p
	}

	d := gomail.NewDialer(s.smtpHost, port, s.smtpUser, s.smtpPass)
	return d.DialAndSend(m)
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

// SendPurchaseInvoice queues the post-settlement invoice. Failures are
// the caller's to log and swallow; settlement must not depend on mail.
func (s *Service) SendPurchaseInvoice(ctx context.Context, to, name, courseTitle, invoiceRef string, amount decimal.Decimal, currency string) error {
	subject := "Your Belta invoice - " + courseTitle
	body := fmt.Sprintf(`Hi %s,

Thanks for your purchase!

Course: %s
Amount: %s %s
Invoice: %s

Happy learning,
The Belta Team`, name, courseTitle, amount.StringFixed(2), currency, invoiceRef)

	attachment, err := GenerateInvoicePDF("Purchase", invoiceRef, name, courseTitle, amount, currency)
	if err != nil {
		logger.Errorf("Failed to generate purchase invoice PDF: %v", err)
		attachment = ""
	}

	return s.Send(ctx, to, name, subject, body, attachment)
}

func (s *Service) SendRefundInvoice(ctx context.Context, to, name, courseTitle, invoiceRef string, amount decimal.Decimal, currency string) error {
	subject := "Your Belta refund - " + courseTitle
	body := fmt.Sprintf(`Hi %s,

Your refund has been approved.

Course: %s
Refunded amount: %s %s
Reference: %s

The Belta Team`, name, courseTitle, amount.StringFixed(2), currency, invoiceRef)

	attachment, err := GenerateInvoicePDF("Refund", invoiceRef, name, courseTitle, amount, currency)
	if err != nil {
		logger.Errorf("Failed to generate refund invoice PDF: %v", err)
		attachment = ""
	}

	return s.Send(ctx, to, name, subject, body, attachment)
}

func (s *Service) SendPayoutUpdate(ctx context.Context, to, name string, amount decimal.Decimal, currency, status string) error {
	subject := "Payout " + status
	body := fmt.Sprintf(`Hi %s,

Your payout of %s %s is now %s.

The Belta Team`, name, amount.StringFixed(2), currency, status)

	return s.Send(ctx, to, name, subject, body, "")
}
