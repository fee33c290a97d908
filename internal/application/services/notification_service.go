package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// Subjects are plain text; bodies are HTML and escaped.
type emailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

func mustEmailTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

var emailTemplates = map[entities.EmailTemplate]emailTemplate{
	entities.EmailBusinessSubmitted: mustEmailTemplate(
		string(entities.EmailBusinessSubmitted),
		`New listing awaiting review: {{.BusinessName}}`,
		`<p>A new business was submitted to Persian Hub.</p>
<p><strong>{{.BusinessName}}</strong> in {{.CategoryName}}</p>
<p><a href="{{.URL}}">Review pending listings</a></p>`,
	),
	entities.EmailBusinessApproved: mustEmailTemplate(
		string(entities.EmailBusinessApproved),
		`Your listing {{.BusinessName}} is live`,
		`<p>Good news! <strong>{{.BusinessName}}</strong> was approved and is now visible in the directory.</p>
<p><a href="{{.URL}}">View your listing</a></p>`,
	),
	entities.EmailBusinessRejected: mustEmailTemplate(
		string(entities.EmailBusinessRejected),
		`Update on your listing {{.BusinessName}}`,
		`<p>We could not approve <strong>{{.BusinessName}}</strong> at this time.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>You can edit the listing and submit it again.</p>`,
	),
	entities.EmailCategoryApproved: mustEmailTemplate(
		string(entities.EmailCategoryApproved),
		`Category approved: {{.CategoryName}}`,
		`<p>The category <strong>{{.CategoryName}}</strong> was approved automatically.</p>
<p>{{.RequestCount}} businesses requested it and it was searched {{.SearchCount}} times.</p>`,
	),
}

// EmailData is the template input for every notification
type EmailData struct {
	BusinessName string
	CategoryName string
	Reason       string
	URL          string
	RequestCount int
	SearchCount  int64
}

// NotificationService renders and delivers transactional email. Each
// template is sent at most once per entity and recipient.
type NotificationService struct {
	sender      providers.EmailSender
	logs        repositories.EmailLogRepository
	adminEmails []string
	publicURL   string
	metrics     *observability.Metrics
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	sender providers.EmailSender,
	logs repositories.EmailLogRepository,
	adminEmails []string,
	publicURL string,
	metrics *observability.Metrics,
) *NotificationService {
	return &NotificationService{
		sender:      sender,
		logs:        logs,
		adminEmails: adminEmails,
		publicURL:   strings.TrimRight(publicURL, "/"),
		metrics:     metrics,
	}
}

// NotifyBusinessSubmitted tells every admin about a new listing
func (n *NotificationService) NotifyBusinessSubmitted(ctx context.Context, business *entities.Business) error {
	data := EmailData{
		BusinessName: business.Name,
		CategoryName: business.CategoryName,
		URL:          n.publicURL + "/admin/businesses",
	}
	return n.sendToAdmins(ctx, entities.EmailBusinessSubmitted, business.ID, data)
}

// NotifyBusinessApproved tells the owner the listing is live
func (n *NotificationService) NotifyBusinessApproved(ctx context.Context, business *entities.Business) error {
	data := EmailData{
		BusinessName: business.Name,
		URL:          n.publicURL + "/businesses/" + business.ID,
	}
	return n.Send(ctx, entities.EmailBusinessApproved, business.ID, business.Email, data)
}

// NotifyBusinessRejected tells the owner the listing was declined
func (n *NotificationService) NotifyBusinessRejected(ctx context.Context, business *entities.Business, reason string) error {
	data := EmailData{
		BusinessName: business.Name,
		Reason:       reason,
	}
	return n.Send(ctx, entities.EmailBusinessRejected, business.ID, business.Email, data)
}

// NotifyCategoryApproved tells every admin about an automatic approval
func (n *NotificationService) NotifyCategoryApproved(ctx context.Context, categoryID, categoryName string, requestCount int, searchCount int64) error {
	data := EmailData{
		CategoryName: categoryName,
		RequestCount: requestCount,
		SearchCount:  searchCount,
	}
	return n.sendToAdmins(ctx, entities.EmailCategoryApproved, categoryID, data)
}

func (n *NotificationService) sendToAdmins(ctx context.Context, tmpl entities.EmailTemplate, entityID string, data EmailData) error {
	var errs []error
	for _, admin := range n.adminEmails {
		if err := n.Send(ctx, tmpl, entityID, admin, data); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to notify %d of %d admins: %w", len(errs), len(n.adminEmails), errs[0])
	}
	return nil
}

// Send delivers one templated email unless the same template was already
// sent to recipient for entityID. Every attempt is logged.
func (n *NotificationService) Send(ctx context.Context, tmpl entities.EmailTemplate, entityID, recipient string, data EmailData) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil
	}
	logger := observability.LoggerFromContext(ctx)
	key := entities.DedupKey(tmpl, entityID, recipient)

	sent, err := n.logs.WasSent(ctx, key)
	if err != nil {
		return err
	}
	if sent {
		logger.Debug().Str("dedup_key", key).Msg("Email already sent, skipping")
		return nil
	}

	msg, err := render(tmpl, recipient, data)
	if err != nil {
		return apperrors.NewInternalError("failed to render email", err)
	}

	entry := &entities.EmailLog{
		DedupKey:  key,
		Template:  tmpl,
		Recipient: recipient,
		EntityID:  entityID,
		Status:    entities.EmailStatusSent,
	}

	sendErr := n.sender.Send(ctx, msg)
	if sendErr != nil {
		entry.Status = entities.EmailStatusFailed
		errMsg := sendErr.Error()
		entry.ErrorMessage = &errMsg
	}
	observability.RecordEmailDelivery(ctx, n.metrics, string(tmpl), string(entry.Status))

	if err := n.logs.Create(ctx, entry); err != nil && !apperrors.IsConflict(err) {
		logger.Error().Err(err).Str("dedup_key", key).Msg("Failed to write email log")
	}

	if sendErr != nil {
		return apperrors.NewExternalError("failed to send email", sendErr)
	}

	logger.Info().Str("template", string(tmpl)).Str("entity_id", entityID).Msg("Email sent")
	return nil
}

func render(tmpl entities.EmailTemplate, recipient string, data EmailData) (*entities.EmailMessage, error) {
	t, ok := emailTemplates[tmpl]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", tmpl)
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return nil, err
	}

	return &entities.EmailMessage{
		To:      recipient,
		Subject: subject.String(),
		Body:    body.String(),
		HTML:    true,
	}, nil
}
