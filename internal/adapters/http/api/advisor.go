package api

import (
	"net/http"

	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/model"
)

// Operation names attached to transport errors.
const (
	opProbability      = "probability"
	opProbabilityBatch = "probability_batch"
	opRecommendations  = "recommendations"
	opRecommendBatch   = "recommendations_batch"
	opInstitutions     = "institutions"
)

type probabilityBatchRequest struct {
	Items []service.ProbabilityItem `json:"items" validate:"required"`
}

type recommendationBatchRequest struct {
	Items []service.RecommendationItem `json:"items" validate:"required"`
}

type fieldsResponse struct {
	Results []model.FieldRecommendation `json:"results"`
}

type institutionsResponse struct {
	Results []model.Recommendation `json:"results"`
}

type batchResponse struct {
	Results []service.BatchResult `json:"results"`
}

// handleProbability handles POST /v1/probability.
func (s *Server) handleProbability(w http.ResponseWriter, r *http.Request) {
	var req service.ProbabilityRequest
	if err := s.decode(r, w, opProbability, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pred, err := s.advisor.PredictProbability(r.Context(), req)
	if err != nil {
		s.writeError(w, r, Wrap(opProbability, err))
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

// handleRecommendations handles POST /v1/recommendations.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req service.RecommendationRequest
	if err := s.decode(r, w, opRecommendations, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.advisor.RecommendFields(r.Context(), req)
	if err != nil {
		s.writeError(w, r, Wrap(opRecommendations, err))
		return
	}
	writeJSON(w, http.StatusOK, fieldsResponse{Results: nonNil(recs)})
}

// handleInstitutions handles POST /v1/institutions.
func (s *Server) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	var req service.InstitutionRequest
	if err := s.decode(r, w, opInstitutions, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.advisor.RecommendInstitutions(r.Context(), req)
	if err != nil {
		s.writeError(w, r, Wrap(opInstitutions, err))
		return
	}
	writeJSON(w, http.StatusOK, institutionsResponse{Results: nonNil(recs)})
}

// handleProbabilityBatch handles POST /v1/probability/batch. Item failures are
// reported inside the body; the status is 200 whenever the envelope is valid.
func (s *Server) handleProbabilityBatch(w http.ResponseWriter, r *http.Request) {
	var req probabilityBatchRequest
	if err := s.decode(r, w, opProbabilityBatch, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.advisor.PredictBatch(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, r, Wrap(opProbabilityBatch, err))
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: nonNil(results)})
}

// handleRecommendationBatch handles POST /v1/recommendations/batch.
func (s *Server) handleRecommendationBatch(w http.ResponseWriter, r *http.Request) {
	var req recommendationBatchRequest
	if err := s.decode(r, w, opRecommendBatch, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.advisor.RecommendBatch(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, r, Wrap(opRecommendBatch, err))
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: nonNil(results)})
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
