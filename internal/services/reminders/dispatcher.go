package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/observability/metrics"
	"liaison/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SystemActor dispatches scheduled reminders on behalf of the firm.
const SystemActor = models.SystemPartyID

type Dispatcher struct {
	store     ports.Store
	directory ports.Directory
	mailer    ports.Mailer
	publisher ports.NoticePublisher
	metrics   *metrics.DomainMetrics
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithMailer(m ports.Mailer) Option { return func(d *Dispatcher) { d.mailer = m } }

func WithPublisher(p ports.NoticePublisher) Option { return func(d *Dispatcher) { d.publisher = p } }

func WithMetrics(m *metrics.DomainMetrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func NewDispatcher(store ports.Store, directory ports.Directory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		directory: directory,
		log:       zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Preview is a rendered reminder for one obligation.
type Preview struct {
	ObligationID   string  `json:"obligation_id"`
	RelationshipID string  `json:"relationship_id"`
	SenderID       string  `json:"sender_id"`
	ReceiverID     string  `json:"receiver_id"`
	Tier           Tier    `json:"tier"`
	DaysUntilDue   int     `json:"days_until_due"`
	Score          float64 `json:"score"`
	Message        Message `json:"message"`

	recipientEmail string
	senderName     string
}

type Delivery struct {
	Preview
	Notice    models.Notice `json:"notice"`
	EmailSent bool          `json:"email_sent"`
	EmailErr  string        `json:"email_error,omitempty"`
}

// Preview renders the reminder the client of the obligation's relationship
// would receive now, without sending it.
func (d *Dispatcher) Preview(ctx context.Context, actor, obligationID string) (Preview, error) {
	ob, err := d.store.GetObligation(ctx, obligationID)
	if err != nil {
		return Preview{}, ports.MapError("reminder_preview", "obligation", obligationID, err)
	}
	if !ob.Status.Outstanding() {
		return Preview{}, apperr.Invariant("obligation_state", fmt.Sprintf("obligation %s is %s", ob.ID, ob.Status))
	}
	plan, err := d.store.GetPlan(ctx, ob.PlanID)
	if err != nil {
		return Preview{}, ports.MapError("reminder_preview", "plan", ob.PlanID, err)
	}
	rel, err := d.store.GetRelationship(ctx, plan.RelationshipID)
	if err != nil {
		return Preview{}, ports.MapError("reminder_preview", "relationship", plan.RelationshipID, err)
	}
	if actor != SystemActor && !rel.IsParty(actor) {
		return Preview{}, apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
	}

	recipientName, recipientEmail, err := d.contact(ctx, rel.ClientPartyID)
	if err != nil {
		return Preview{}, err
	}
	senderName, _, err := d.contact(ctx, rel.FirmPartyID)
	if err != nil {
		return Preview{}, err
	}

	days := models.DaysBetween(d.now(), ob.DueDate)
	tier := Classify(days, rel.Score)
	msg, err := Render(tier, Params{
		RecipientName: recipientName,
		SenderName:    senderName,
		Amount:        ob.Amount,
		DueDate:       ob.DueDate,
		DaysUntilDue:  days,
	})
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		ObligationID:   ob.ID,
		RelationshipID: rel.ID,
		SenderID:       rel.FirmPartyID,
		ReceiverID:     rel.ClientPartyID,
		Tier:           tier,
		DaysUntilDue:   days,
		Score:          rel.Score,
		Message:        msg,
		recipientEmail: recipientEmail,
		senderName:     senderName,
	}, nil
}

func (d *Dispatcher) contact(ctx context.Context, partyID string) (string, string, error) {
	if d.directory == nil {
		return partyID, "", nil
	}
	name, email, err := d.directory.Contact(ctx, partyID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return partyID, "", nil
	case err != nil:
		return "", "", apperr.Dependency("directory", err)
	}
	if name == "" {
		name = partyID
	}
	return name, email, nil
}

// Send records a reminder notice in the relationship and emails the
// client. An email failure is logged and reported on the delivery; the
// notice stays recorded.
func (d *Dispatcher) Send(ctx context.Context, actor, obligationID string) (Delivery, error) {
	p, err := d.Preview(ctx, actor, obligationID)
	if err != nil {
		return Delivery{}, err
	}
	n := models.Notice{
		ID:             uuid.NewString(),
		RelationshipID: p.RelationshipID,
		SenderID:       p.SenderID,
		ReceiverID:     p.ReceiverID,
		Kind:           models.NoticeReminder,
		Body:           models.TextBody(p.Message.Body),
		CreatedAt:      d.now(),
	}
	if err := d.store.InsertNotice(ctx, &n); err != nil {
		return Delivery{}, ports.MapError("reminder_send", "notice", n.ID, err)
	}
	d.metrics.Reminder(string(p.Tier))
	if d.publisher != nil {
		if err := d.publisher.PublishNotice(ctx, n); err != nil {
			d.log.Warn("notice publish failed", zap.String("notice_id", n.ID), zap.Error(err))
		}
	}

	out := Delivery{Preview: p, Notice: n}
	switch {
	case d.mailer == nil:
	case p.recipientEmail == "":
		d.log.Info("reminder email skipped, no address", zap.String("party_id", p.ReceiverID))
	default:
		err := d.mailer.Send(ctx, ports.Email{
			To:         p.recipientEmail,
			Subject:    p.Message.Subject,
			Body:       p.Message.Body,
			SenderName: p.senderName,
			SenderID:   p.SenderID,
		})
		if err != nil {
			d.metrics.EmailFailure()
			d.log.Warn("reminder email failed",
				zap.String("notice_id", n.ID),
				zap.String("obligation_id", p.ObligationID),
				zap.Error(err),
			)
			out.EmailErr = err.Error()
		} else {
			out.EmailSent = true
		}
	}

	d.log.Info("reminder sent",
		zap.String("obligation_id", p.ObligationID),
		zap.String("tier", string(p.Tier)),
		zap.Int("days_until_due", p.DaysUntilDue),
		zap.Bool("email_sent", out.EmailSent),
	)
	return out, nil
}

// DispatchDue sends reminders for outstanding obligations of active plans
// due within horizon from now, including those already past due or marked
// overdue.
func (d *Dispatcher) DispatchDue(ctx context.Context, horizon time.Duration, limit int) ([]Delivery, error) {
	statuses := []models.ObligationStatus{models.ObligationPending, models.ObligationOverdue}
	due, err := d.store.ListDueBefore(ctx, d.now().Add(horizon), statuses, limit)
	if err != nil {
		return nil, ports.MapError("reminder_dispatch", "obligation", "", err)
	}
	var (
		out  []Delivery
		errs []error
	)
	for _, ob := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		del, err := d.Send(ctx, SystemActor, ob.ID)
		if err != nil {
			d.log.Warn("reminder skipped", zap.String("obligation_id", ob.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("obligation %s: %w", ob.ID, err))
			continue
		}
		out = append(out, del)
	}
	return out, errors.Join(errs...)
}
