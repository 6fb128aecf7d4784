package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperr "github.com/zakupnik/suggestd/internal/errors"
	"github.com/zakupnik/suggestd/internal/suggest"
)

// handleSearchProducts serves GET /api/suggestions/products.
// With a profileId the result is fused with that profile's history after an
// access check; without one it is catalog-wide only.
func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	profileID := r.URL.Query().Get("profileId")

	if profileID != "" && !s.authorizeProfile(w, r, profileID) {
		return
	}

	limit := queryInt(r, "limit", 0)
	suggestions, err := s.engine.Suggest(r.Context(), q, profileID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestions)
}

type createProductRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	DefaultUnit string `json:"defaultUnit"`
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	DefaultUnit string `json:"defaultUnit,omitempty"`
	UsageCount  int64  `json:"usageCount"`
}

// handleCreateProduct serves POST /api/suggestions/products: catalog upsert
// plus asynchronous index replication. Repeated posts of the same name
// increment usage_count instead of duplicating the product.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.ValidationError("invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, r, apperr.New(apperr.ErrCodeNameRequired, "name is required", nil))
		return
	}

	product, err := s.catalog.Upsert(r.Context(), req.Name, req.Category, req.DefaultUnit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// The write is acknowledged now; the index catches up in the
	// background.
	s.replicator.EnqueueUpsert(product)

	s.writeJSON(w, http.StatusCreated, productResponse{
		ID:          product.ID,
		Name:        product.Name,
		Category:    product.Category,
		DefaultUnit: product.DefaultUnit,
		UsageCount:  product.UsageCount,
	})
}

type profileItem struct {
	Name              string  `json:"name"`
	TimesBought       int64   `json:"timesBought"`
	SuggestedQuantity float64 `json:"suggestedQuantity"`
	SuggestedUnit     string  `json:"suggestedUnit"`
}

// handleProfileItems serves GET /api/suggestions/profile/{profileId}/items:
// the profile's own purchase history grouped by product, most bought first.
func (s *Server) handleProfileItems(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileId")
	if !s.authorizeProfile(w, r, profileID) {
		return
	}

	// A query below the suggestion minimum filters nothing; the client
	// gets the whole history instead.
	q := r.URL.Query().Get("q")
	if len([]rune(strings.TrimSpace(q))) < s.minQueryLen {
		q = ""
	}

	limit := queryInt(r, "limit", 10)
	items, err := s.history.PersonalSuggestions(
		r.Context(), profileID, q, s.threshold, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]profileItem, len(items))
	for i, item := range items {
		out[i] = profileItem{
			Name:              item.Name,
			TimesBought:       item.TimesBought,
			SuggestedQuantity: item.AvgQuantity,
			SuggestedUnit:     unitOrFallback(item.ModalUnit),
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleQuantity serves
// GET /api/suggestions/profile/{profileId}/quantity/{productName}.
func (s *Server) handleQuantity(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileId")
	if !s.authorizeProfile(w, r, profileID) {
		return
	}

	estimate, err := s.estimator.Estimate(r.Context(), profileID, chi.URLParam(r, "productName"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, estimate)
}

type listSuggestionResponse struct {
	SuggestedItems []profileItem `json:"suggestedItems"`
}

// handleListSuggestion serves GET /api/suggestions/profile/{profileId}/lists:
// a whole-list proposal built from the profile's frequently bought products.
func (s *Server) handleListSuggestion(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileId")
	if !s.authorizeProfile(w, r, profileID) {
		return
	}

	items, err := s.history.FrequentItems(r.Context(), profileID, s.frequentMinCount, s.frequentLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := listSuggestionResponse{SuggestedItems: make([]profileItem, len(items))}
	for i, item := range items {
		out.SuggestedItems[i] = profileItem{
			Name:              item.Name,
			TimesBought:       item.TimesBought,
			SuggestedQuantity: item.AvgQuantity,
			SuggestedUnit:     unitOrFallback(item.ModalUnit),
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func unitOrFallback(unit string) string {
	if unit == "" {
		return suggest.FallbackUnit
	}
	return unit
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 100 {
		return def
	}
	return n
}
