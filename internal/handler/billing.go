package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/tandem/internal/billing"
	"github.com/dukerupert/tandem/internal/store"
)

// maxWebhookBytes caps Stripe webhook payloads.
const maxWebhookBytes = 65536

type BillingHandler struct {
	client    *billing.Client
	processor *billing.Processor
	userStore *store.UserStore
	subStore  *store.SubscriptionStore
	returnURL string
	logger    *slog.Logger
}

func NewBillingHandler(client *billing.Client, processor *billing.Processor, us *store.UserStore, subs *store.SubscriptionStore, returnURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		client:    client,
		processor: processor,
		userStore: us,
		subStore:  subs,
		returnURL: returnURL,
		logger:    logger,
	}
}

// Status handles GET /api/billing.
func (h *BillingHandler) Status(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	sub, err := h.subStore.GetByUserID(u.ID)
	if err != nil {
		h.logger.Error("get subscription", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	resp := map[string]any{
		"premium":            sub.IsPremium(),
		"status":             "none",
		"current_period_end": nil,
		"checkout_available": h.client.Configured(),
	}
	if sub != nil {
		resp["status"] = sub.Status
		resp["current_period_end"] = sub.CurrentPeriodEnd
	}
	writeJSON(w, http.StatusOK, resp)
}

// Checkout handles POST /api/billing/checkout and returns a hosted checkout URL.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.client.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	sub, err := h.subStore.GetByUserID(u.ID)
	if err != nil {
		h.logger.Error("get subscription", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub.IsPremium() {
		writeError(w, http.StatusConflict, "already subscribed")
		return
	}

	customerID := ""
	if sub != nil {
		customerID = sub.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.client.CreateCustomer(u.Email, u.ID)
		if err != nil {
			h.logger.Error("create customer", "user_id", u.ID, "error", err)
			writeError(w, http.StatusBadGateway, "failed to create customer")
			return
		}
		if err := h.subStore.SetCustomer(u.ID, customerID); err != nil {
			h.logger.Error("save customer", "user_id", u.ID, "error", err)
		}
	}

	url, err := h.client.CreateCheckoutSession(customerID, u.ID)
	if err != nil {
		h.logger.Error("create checkout session", "user_id", u.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal handles POST /api/billing/portal.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if !h.client.Configured() {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	sub, err := h.subStore.GetByUserID(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil || sub.StripeCustomerID == "" {
		writeError(w, http.StatusBadRequest, "no billing account")
		return
	}

	url, err := h.client.CreateBillingPortalSession(sub.StripeCustomerID, h.returnURL)
	if err != nil {
		h.logger.Error("create portal session", "user_id", u.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create portal session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook handles POST /webhooks/stripe. Events that fail to apply are
// logged and acknowledged so Stripe does not retry malformed payloads.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.client.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.processor.Process(event); err != nil {
		h.logger.Error("process webhook", "event_id", event.ID, "type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
