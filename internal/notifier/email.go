package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/internal/store"
	"github.com/storefront-hq/backoffice/types"
)

const charset = "UTF-8"

// EmailClient is the subset of the SES API used for sending.
type EmailClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// UserLookup resolves the recipient of an order event.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
}

// EmailNotifier mails customers and the shop admin about order events.
type EmailNotifier struct {
	client EmailClient
	sender string
	admin  string
	users  UserLookup
	logger *slog.Logger
}

// NewEmailNotifier constructs a notifier around an SES client.
func NewEmailNotifier(client EmailClient, sender, admin string, users UserLookup, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{
		client: client,
		sender: sender,
		admin:  admin,
		users:  users,
		logger: logger,
	}
}

// NewFromConfig builds an SES client from config. It returns nil when no sender is configured.
func NewFromConfig(ctx context.Context, cfg config.EmailConfig, users UserLookup, logger *slog.Logger) (*EmailNotifier, error) {
	if strings.TrimSpace(cfg.SenderEmail) == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewEmailNotifier(ses.NewFromConfig(awsCfg), cfg.SenderEmail, cfg.AdminEmail, users, logger), nil
}

// HandleOrderEvent sends the emails for event, the customer's before the
// admin's. Orders whose owner was deleted only notify the admin.
func (n *EmailNotifier) HandleOrderEvent(ctx context.Context, event types.OrderEvent) error {
	if err := n.notifyCustomer(ctx, event); err != nil {
		return err
	}
	if event.Type == types.OrderEventCreated && n.admin != "" {
		subject := fmt.Sprintf("New order #%d", event.OrderID)
		body := fmt.Sprintf("Order #%d was placed with %d item(s), total %s.", event.OrderID, event.ItemCount, event.Total.StringFixed(2))
		return n.deliver(ctx, n.admin, subject, body)
	}
	return nil
}

func (n *EmailNotifier) notifyCustomer(ctx context.Context, event types.OrderEvent) error {
	if !event.UserID.Valid {
		return nil
	}
	subject, body, ok := customerMessage(event)
	if !ok {
		return nil
	}
	user, err := n.users.GetByID(ctx, event.UserID.UUID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			n.logger.Info("order owner no longer exists", "order_id", event.OrderID)
			return nil
		}
		return fmt.Errorf("load order owner: %w", err)
	}
	return n.deliver(ctx, user.Email, subject, body)
}

// deliver sends one email. Rejections that a retry cannot fix are logged and dropped.
func (n *EmailNotifier) deliver(ctx context.Context, to, subject, body string) error {
	err := n.send(ctx, to, subject, body)
	if err != nil && isPermanent(err) {
		n.logger.Warn("email rejected, not retrying", "to", to, "subject", subject, "error", err)
		return nil
	}
	return err
}

func isPermanent(err error) bool {
	var rejected *sestypes.MessageRejected
	var unverified *sestypes.MailFromDomainNotVerifiedException
	return errors.As(err, &rejected) || errors.As(err, &unverified)
}

func customerMessage(event types.OrderEvent) (subject, body string, ok bool) {
	switch event.Type {
	case types.OrderEventCreated:
		return fmt.Sprintf("Order #%d confirmation", event.OrderID),
			fmt.Sprintf("Thank you for your order! Order #%d has been placed.\n\nItems: %d\nTotal: %s\n\nWe will email you when it is completed.",
				event.OrderID, event.ItemCount, event.Total.StringFixed(2)),
			true
	case types.OrderEventStatusChanged:
		return fmt.Sprintf("Order #%d is %s", event.OrderID, event.Status),
			fmt.Sprintf("Your order #%d changed from %s to %s.", event.OrderID, event.PreviousStatus, event.Status),
			true
	default:
		return "", "", false
	}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(n.sender),
		Destination: &sestypes.Destination{ToAddresses: []string{to}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Charset: aws.String(charset), Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Charset: aws.String(charset), Data: aws.String(body)},
			},
		},
	}
	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	n.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
