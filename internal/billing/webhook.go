package billing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

// Processor applies Stripe webhook events to local subscription state.
type Processor struct {
	subs   *store.SubscriptionStore
	logger *slog.Logger
	// OnChange, when set, is called with the user whose premium status may
	// have changed.
	OnChange func(userID int64)
}

func NewProcessor(subs *store.SubscriptionStore, logger *slog.Logger) *Processor {
	return &Processor{subs: subs, logger: logger.With("component", "billing")}
}

// Process handles one event. Unknown event types are ignored.
func (p *Processor) Process(event stripe.Event) error {
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}
	switch event.Type {
	case "checkout.session.completed":
		return p.checkoutCompleted(event.Data.Raw)
	case "invoice.payment_failed":
		return p.paymentFailed(event.Data.Raw)
	case "customer.subscription.updated", "customer.subscription.deleted":
		return p.subscriptionChanged(event.Data.Raw, event.Type == "customer.subscription.deleted")
	}
	return nil
}

func (p *Processor) checkoutCompleted(raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	userID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session %s: bad client reference %q", sess.ID, sess.ClientReferenceID)
	}
	if sess.Customer == nil || sess.Subscription == nil {
		return fmt.Errorf("checkout session %s: missing customer or subscription", sess.ID)
	}

	if err := p.subs.Activate(userID, sess.Customer.ID, sess.Subscription.ID, model.SubscriptionActive); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	p.logger.Info("checkout completed", "user_id", userID, "subscription", sess.Subscription.ID)
	p.changed(userID)
	return nil
}

func (p *Processor) paymentFailed(raw json.RawMessage) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}
	if invoice.Parent == nil || invoice.Parent.SubscriptionDetails == nil || invoice.Parent.SubscriptionDetails.Subscription == nil {
		return nil
	}

	sub, err := p.subs.GetByStripeID(invoice.Parent.SubscriptionDetails.Subscription.ID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		return nil
	}
	if err := p.subs.UpdateStatus(sub.ID, model.SubscriptionPastDue, nil); err != nil {
		return fmt.Errorf("mark past due: %w", err)
	}
	p.changed(sub.UserID)
	return nil
}

func (p *Processor) subscriptionChanged(raw json.RawMessage, deleted bool) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(raw, &ss); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	sub, err := p.subs.GetByStripeID(ss.ID)
	if err != nil {
		return fmt.Errorf("get subscription: %w", err)
	}
	if sub == nil {
		p.logger.Warn("webhook for unknown subscription", "subscription", ss.ID)
		return nil
	}

	status := string(ss.Status)
	if deleted {
		status = model.SubscriptionCanceled
	}
	if err := p.subs.UpdateStatus(sub.ID, status, periodEnd(&ss)); err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	p.changed(sub.UserID)
	return nil
}

// periodEnd returns the latest period end across the subscription's items.
func periodEnd(ss *stripe.Subscription) *time.Time {
	if ss.Items == nil {
		return nil
	}
	var max int64
	for _, item := range ss.Items.Data {
		if item != nil && item.CurrentPeriodEnd > max {
			max = item.CurrentPeriodEnd
		}
	}
	if max == 0 {
		return nil
	}
	t := time.Unix(max, 0).UTC()
	return &t
}

func (p *Processor) changed(userID int64) {
	if p.OnChange != nil {
		p.OnChange(userID)
	}
}
