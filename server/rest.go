package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/genewire/genewire/pkg/digest"
	"github.com/genewire/genewire/pkg/llm"
	"github.com/genewire/genewire/pkg/repository"
	"github.com/genewire/genewire/pkg/search"
)

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// searchHandler runs an on-demand article search without storing anything
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := s.searcher.Search(r.Context())
	if err != nil {
		if errors.Is(err, search.ErrNoActiveSites) {
			renderError(w, r, err, http.StatusBadRequest)
			return
		}
		lgr.Printf("[ERROR] search failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"count":    len(articles),
		"articles": articles,
	})
}

// digestHandler triggers the digest pipeline, ?force=true regenerates an
// already stored digest
func (s *Server) digestHandler(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	summary, err := s.digests.Run(r.Context(), force)
	if err != nil {
		switch {
		case errors.Is(err, digest.ErrNoArticles):
			renderError(w, r, err, http.StatusNotFound)
		case errors.Is(err, llm.ErrQuotaExceeded):
			renderError(w, r, err, http.StatusServiceUnavailable)
		case errors.Is(err, search.ErrNoActiveSites):
			renderError(w, r, err, http.StatusBadRequest)
		default:
			lgr.Printf("[ERROR] digest run failed: %v", err)
			renderError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	renderJSON(w, r, http.StatusOK, summary)
}

// listSummariesHandler returns recent digests, newest first
func (s *Server) listSummariesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			renderError(w, r, fmt.Errorf("invalid limit"), http.StatusBadRequest)
			return
		}
		limit = n
	}

	summaries, err := s.summaries.ListDailySummaries(r.Context(), limit)
	if err != nil {
		lgr.Printf("[ERROR] list summaries failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, summaries)
}

// getSummaryHandler returns one stored digest
func (s *Server) getSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid summary ID"), http.StatusBadRequest)
		return
	}

	summary, err := s.summaries.GetDailySummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] get summary failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, summary)
}

// summaryFeedbackCountsHandler returns the vote tallies for one digest
func (s *Server) summaryFeedbackCountsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid summary ID"), http.StatusBadRequest)
		return
	}

	up, down, err := s.feedback.CountFeedback(r.Context(), "summary", id)
	if err != nil {
		lgr.Printf("[ERROR] count feedback failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]int{"up": up, "down": down})
}

// feedbackRequest is a thumbs up/down vote
type feedbackRequest struct {
	RecipientID   string `json:"recipient_id"`
	FeedbackType  string `json:"feedback_type"`
	TargetID      int64  `json:"target_id"`
	FeedbackValue string `json:"feedback_value"`
}

// feedbackHandler records a thumbs up/down vote. The "top10" type from older
// email links is accepted as an alias for "summary". Repeat votes are silently
// ignored, the first stored vote wins.
func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if req.FeedbackType == "top10" {
		req.FeedbackType = "summary"
	}

	if req.FeedbackType != "summary" && req.FeedbackType != "article" {
		renderError(w, r, fmt.Errorf("invalid feedback type %q", req.FeedbackType), http.StatusBadRequest)
		return
	}
	if req.FeedbackValue != "up" && req.FeedbackValue != "down" {
		renderError(w, r, fmt.Errorf("invalid feedback value %q", req.FeedbackValue), http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" || req.TargetID == 0 {
		renderError(w, r, fmt.Errorf("recipient_id and target_id are required"), http.StatusBadRequest)
		return
	}

	event := &repository.FeedbackEvent{
		RecipientID:   req.RecipientID,
		FeedbackType:  req.FeedbackType,
		TargetID:      req.TargetID,
		FeedbackValue: req.FeedbackValue,
	}
	if err := s.feedback.CreateFeedback(r.Context(), event); err != nil {
		lgr.Printf("[ERROR] record feedback failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusCreated, map[string]string{"status": "recorded"})
}

// createSessionRequest starts a comparison session
type createSessionRequest struct {
	RecipientID string `json:"recipient_id"`
	SummaryID   int64  `json:"summary_id"`
}

// createComparisonSessionHandler starts a new A/B comparison session
func (s *Server) createComparisonSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" || req.SummaryID == 0 {
		renderError(w, r, fmt.Errorf("recipient_id and summary_id are required"), http.StatusBadRequest)
		return
	}

	session, err := s.engine.CreateSession(r.Context(), req.RecipientID, req.SummaryID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			renderError(w, r, err, http.StatusNotFound)
		case errors.Is(err, digest.ErrInsufficientArticles):
			renderError(w, r, err, http.StatusBadRequest)
		default:
			lgr.Printf("[ERROR] create comparison session failed: %v", err)
			renderError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	renderJSON(w, r, http.StatusCreated, session)
}

// getComparisonHandler returns one round of a session
func (s *Server) getComparisonHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	order, err := strconv.Atoi(r.PathValue("order"))
	if err != nil || order < 1 {
		renderError(w, r, fmt.Errorf("invalid comparison order"), http.StatusBadRequest)
		return
	}

	data, err := s.engine.GetComparisonData(r.Context(), sessionID, order)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] get comparison failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, data)
}

// preferenceRequest records the reader's pick for a round
type preferenceRequest struct {
	Preference string `json:"preference"`
}

// recordPreferenceHandler records the vote for one round
func (s *Server) recordPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	order, err := strconv.Atoi(r.PathValue("order"))
	if err != nil || order < 1 {
		renderError(w, r, fmt.Errorf("invalid comparison order"), http.StatusBadRequest)
		return
	}

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	result, err := s.engine.RecordPreference(r.Context(), sessionID, order, req.Preference)
	if err != nil {
		switch {
		case errors.Is(err, digest.ErrInvalidPreference):
			renderError(w, r, err, http.StatusBadRequest)
		case errors.Is(err, repository.ErrNotFound):
			renderError(w, r, err, http.StatusNotFound)
		default:
			lgr.Printf("[ERROR] record preference failed: %v", err)
			renderError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	renderJSON(w, r, http.StatusOK, result)
}

// sessionSummaryHandler returns the state of every round in a session
func (s *Server) sessionSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.GetSessionSummary(r.Context(), r.PathValue("session"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] session summary failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, summary)
}

// createRecipientHandler adds a subscriber
func (s *Server) createRecipientHandler(w http.ResponseWriter, r *http.Request) {
	var recipient repository.Recipient
	if err := json.NewDecoder(r.Body).Decode(&recipient); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if !strings.Contains(recipient.Email, "@") {
		renderError(w, r, fmt.Errorf("valid email is required"), http.StatusBadRequest)
		return
	}

	recipient.Active = true
	if err := s.recipients.CreateRecipient(r.Context(), &recipient); err != nil {
		lgr.Printf("[ERROR] create recipient failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusCreated, recipient)
}

// listRecipientsHandler lists subscribers, ?active=true limits to active ones
func (s *Server) listRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	recipients, err := s.recipients.GetRecipients(r.Context(), activeOnly)
	if err != nil {
		lgr.Printf("[ERROR] list recipients failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, recipients)
}

// updateRecipientHandler updates a subscriber
func (s *Server) updateRecipientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid recipient ID"), http.StatusBadRequest)
		return
	}

	var recipient repository.Recipient
	if err := json.NewDecoder(r.Body).Decode(&recipient); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	recipient.ID = id

	if err := s.recipients.UpdateRecipient(r.Context(), &recipient); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] update recipient failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, recipient)
}

// deleteRecipientHandler removes a subscriber
func (s *Server) deleteRecipientHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid recipient ID"), http.StatusBadRequest)
		return
	}

	if err := s.recipients.DeleteRecipient(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] delete recipient failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// createSiteHandler adds a search site
func (s *Server) createSiteHandler(w http.ResponseWriter, r *http.Request) {
	var site repository.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if site.Domain == "" {
		renderError(w, r, fmt.Errorf("domain is required"), http.StatusBadRequest)
		return
	}

	site.Active = true
	if err := s.sites.CreateSite(r.Context(), &site); err != nil {
		lgr.Printf("[ERROR] create site failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusCreated, site)
}

// listSitesHandler lists search sites, ?active=true limits to active ones
func (s *Server) listSitesHandler(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	sites, err := s.sites.GetSites(r.Context(), activeOnly)
	if err != nil {
		lgr.Printf("[ERROR] list sites failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, sites)
}

// updateSiteHandler updates a search site
func (s *Server) updateSiteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid site ID"), http.StatusBadRequest)
		return
	}

	var site repository.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	site.ID = id

	if err := s.sites.UpdateSite(r.Context(), &site); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] update site failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, site)
}

// deleteSiteHandler removes a search site
func (s *Server) deleteSiteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		renderError(w, r, fmt.Errorf("invalid site ID"), http.StatusBadRequest)
		return
	}

	if err := s.sites.DeleteSite(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			renderError(w, r, err, http.StatusNotFound)
			return
		}
		lgr.Printf("[ERROR] delete site failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// listSettingsHandler returns all runtime settings
func (s *Server) listSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetAllSettings(r.Context())
	if err != nil {
		lgr.Printf("[ERROR] list settings failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, settings)
}

// updateSettingsHandler upserts the submitted settings
func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if len(settings) == 0 {
		renderError(w, r, fmt.Errorf("no settings provided"), http.StatusBadRequest)
		return
	}

	for key, value := range settings {
		if err := s.settings.SetSetting(r.Context(), key, value); err != nil {
			lgr.Printf("[ERROR] set setting %s failed: %v", key, err)
			renderError(w, r, err, http.StatusInternalServerError)
			return
		}
	}

	renderJSON(w, r, http.StatusOK, map[string]string{"status": "updated"})
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
