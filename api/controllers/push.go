package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/comedorlabs/comedor-backend/api/responses"
	"github.com/comedorlabs/comedor-backend/api/validators"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys" validate:"required"`
}

type pushTestRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// PushVAPIDKey exposes the server VAPID public key user agents subscribe with.
func PushVAPIDKey(svc push.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"vapid_public_key": svc.VAPIDPublicKey()})
	}
}

// PushSubscribe stores the browser subscription for the authenticated user.
func PushSubscribe(svc push.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body pushSubscribeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		keys := push.SubscriptionKeys{
			Endpoint:  body.Endpoint,
			P256dhKey: body.Keys.P256dh,
			AuthKey:   body.Keys.Auth,
		}
		if err := svc.SaveSubscription(r.Context(), userID, keys); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]bool{"subscribed": true})
	}
}

// PushUnsubscribe removes the stored subscription for the authenticated user.
func PushUnsubscribe(svc push.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveSubscription(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"unsubscribed": true})
	}
}

// PushTestSend fires a test push to the caller's own subscription. Delivery
// is best effort; the call reports acceptance, not arrival.
func PushTestSend(svc push.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// An empty body is fine, the defaults below apply.
		var body pushTestRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := push.Payload{
			Title: validators.SanitizeString(body.Title, 120),
			Body:  validators.SanitizeString(body.Message, 500),
		}
		if payload.Title == "" {
			payload.Title = "Test notification"
		}

		svc.SendPush(r.Context(), userID, payload)
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"queued": true})
	}
}
