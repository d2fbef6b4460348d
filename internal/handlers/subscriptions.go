package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/models"
)

// SubscriptionToggler flips a subscription edge.
type SubscriptionToggler interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (models.ToggleResult, error)
}

// SubscriptionViews lists both sides of the subscription graph.
type SubscriptionViews interface {
	SubscriberList(ctx context.Context, channelID string) ([]models.SubscriberEntry, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.ChannelEntry, error)
}

// SubscriptionHandler implements channel subscriptions.
type SubscriptionHandler struct {
	Subscriptions SubscriptionToggler
	Views         SubscriptionViews
}

// Toggle handles POST /api/v1/subscriptions/subscribe/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelId", "channel id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Subscriptions.Toggle(ctx, actor(r), channelID)
	if err != nil {
		respondError(ctx, w, storeError(err, "channel not found", "unable to toggle subscription"))
		return
	}

	message := "Subscribed"
	if result == models.ToggleRemoved {
		message = "Unsubscribed"
	}
	respond(ctx, w, http.StatusOK, toggleResponse{Result: result, Active: result == models.ToggleAdded}, message)
}

// SubscriberList handles GET /api/v1/subscriptions/subscriber-list/{channelId}.
func (h SubscriptionHandler) SubscriberList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelId", "channel id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	list, err := h.Views.SubscriberList(ctx, channelID)
	if err != nil {
		respondError(ctx, w, storeError(err, "channel not found", "unable to list subscribers"))
		return
	}
	if list == nil {
		list = []models.SubscriberEntry{}
	}
	respond(ctx, w, http.StatusOK, list, "Subscribers fetched successfully")
}

// ChannelList handles GET /api/v1/subscriptions/channel-list/{subscriberId}.
func (h SubscriptionHandler) ChannelList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID, err := pathID(r, "subscriberId", "subscriber id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	list, err := h.Views.SubscribedChannels(ctx, subscriberID)
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to list subscribed channels"))
		return
	}
	if list == nil {
		list = []models.ChannelEntry{}
	}
	respond(ctx, w, http.StatusOK, list, "Subscribed channels fetched successfully")
}
