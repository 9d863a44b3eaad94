package httpadapter

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const maxCatalogBytes = 4 << 20

func (rt *Router) queryActivity(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter, messages := activityFilterFromQuery(r)
	if len(messages) > 0 {
		writeErrorMessages(w, http.StatusBadRequest, messages...)
		return
	}

	page, err := rt.services.Activity.Query(r.Context(), scope, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func activityFilterFromQuery(r *http.Request) (domain.ActivityFilter, []string) {
	query := r.URL.Query()
	filter := domain.ActivityFilter{
		ProjectID:  strings.TrimSpace(query.Get("project_id")),
		ActorID:    strings.TrimSpace(query.Get("user_id")),
		EntityType: strings.TrimSpace(query.Get("entity_type")),
		EntityID:   strings.TrimSpace(query.Get("entity_id")),
		Search:     query.Get("search"),
	}

	var messages []string
	if raw := strings.TrimSpace(query.Get("activity_type")); raw != "" {
		activityType, ok := domain.ParseActivityType(raw)
		if ok {
			filter.ActivityType = activityType
		} else {
			messages = append(messages, fmt.Sprintf("unknown activity_type %q", raw))
		}
	}
	if raw := query.Get("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			messages = append(messages, "from: "+err.Error())
		} else {
			filter.From = &from
		}
	}
	if raw := query.Get("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			messages = append(messages, "to: "+err.Error())
		} else {
			filter.To = &to
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			messages = append(messages, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			messages = append(messages, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, messages
}

func (rt *Router) importFrameworks(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	frameworks, err := rt.services.Catalog.Import(r.Context(), scope, io.LimitReader(r.Body, maxCatalogBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, frameworks)
}
