package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// ListNotifications pages the caller's inbox.
//
//	GET /api/v1/notifications?limit=&cursor=&unreadOnly=&type=&priority=
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query, err := inboxQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query.UserID = caller.UserID

		page, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func inboxQuery(r *http.Request) (notifications.Query, error) {
	var q notifications.Query
	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	if q.UnreadOnly, err = validators.ParseQueryBool(r, "unreadOnly"); err != nil {
		return q, err
	}
	q.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		typ, err := enums.ParseNotificationType(raw)
		if err != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type").WithDetails(map[string]any{"field": "type"})
		}
		q.Type = &typ
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("priority")); raw != "" {
		priority, err := enums.ParseNotificationPriority(raw)
		if err != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority").WithDetails(map[string]any{"field": "priority"})
		}
		q.Priority = &priority
	}
	return q, nil
}

func UnreadNotificationCount(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := svc.UnreadCount(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"unread": count})
	}
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := validators.ParsePathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkRead(r.Context(), caller.UserID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.MarkAllRead(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}
