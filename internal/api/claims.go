package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/claimguard/internal/claims"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/identity"
)

// maxListLimit caps GET /claims page sizes.
const maxListLimit = 500

// ReceiptInput is the receipt part of POST /claims. Total is a pointer so a
// missing total is told apart from zero.
type ReceiptInput struct {
	Vendor      string            `json:"vendor"`
	Date        domain.Date       `json:"date"`
	Total       *float64          `json:"total"`
	Items       []domain.LineItem `json:"items,omitempty"`
	Description string            `json:"description,omitempty"`
}

// SubmitClaimRequest is the request body for POST /claims. The claimant is
// the caller.
type SubmitClaimRequest struct {
	ReceiptImage string       `json:"receiptImage,omitempty"`
	ReceiptData  ReceiptInput `json:"receiptData"`
}

// FraudDetection summarizes intake scoring.
type FraudDetection struct {
	RiskLevel         domain.RiskLevel        `json:"riskLevel"`
	AuthenticityScore float64                 `json:"authenticityScore"`
	Indicators        []domain.FraudIndicator `json:"indicators"`
	IsDuplicate       bool                    `json:"isDuplicate"`
}

// SubmitClaimResponse is the response for POST /claims.
type SubmitClaimResponse struct {
	ClaimID        string         `json:"claimId"`
	Claim          *domain.Claim  `json:"claim"`
	FraudDetection FraudDetection `json:"fraudDetection"`
	Metadata       struct {
		TraceID string `json:"traceId"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ListClaimsResponse is the response for GET /claims.
type ListClaimsResponse struct {
	Claims []*domain.Claim `json:"claims"`
	Count  int             `json:"count"`
}

func callerFrom(r *http.Request) domain.Caller {
	caller, _ := identity.FromContext(r.Context())
	return caller
}

// SubmitClaim handles POST /claims.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req SubmitClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.ReceiptData.Total == nil {
		writeError(w, r, domain.NewValidationError("receiptData.total", "total is required"))
		return
	}

	sub := claims.Submission{
		ClaimantID:   callerFrom(r).ID,
		ReceiptImage: req.ReceiptImage,
		Receipt: domain.ReceiptData{
			Vendor:      req.ReceiptData.Vendor,
			Date:        req.ReceiptData.Date,
			Total:       *req.ReceiptData.Total,
			Items:       req.ReceiptData.Items,
			Description: req.ReceiptData.Description,
		},
	}

	claim, err := h.claims.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := SubmitClaimResponse{
		ClaimID: claim.ID,
		Claim:   claim,
		FraudDetection: FraudDetection{
			RiskLevel:         claim.FraudRiskLevel,
			AuthenticityScore: claim.AuthenticityScore,
			Indicators:        claim.FraudIndicators,
			IsDuplicate:       claim.DuplicateCheck.IsDuplicate,
		},
	}
	resp.Metadata.TraceID = GetTraceID(r.Context())
	resp.Metadata.Version = h.version

	w.Header().Set("Location", "/claims/"+claim.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// ListClaims handles GET /claims. Reviewers may filter by status, riskLevel
// and employee; employees always get their own claims.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	filter, err := parseClaimFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.claims.List(r.Context(), callerFrom(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Claim{}
	}

	writeJSON(w, http.StatusOK, ListClaimsResponse{Claims: list, Count: len(list)})
}

func parseClaimFilter(r *http.Request) (domain.ClaimFilter, error) {
	q := r.URL.Query()
	verr := &domain.ValidationError{}

	filter := domain.ClaimFilter{
		EmployeeName: q.Get("employee"),
		Status:       domain.Status(q.Get("status")),
		RiskLevel:    domain.RiskLevel(q.Get("riskLevel")),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	switch filter.RiskLevel {
	case "", domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
	default:
		verr.Add("riskLevel", fmt.Sprintf("unknown risk level %q", filter.RiskLevel))
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			verr.Add("limit", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
		}
		filter.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			verr.Add("offset", "offset must be a non-negative integer")
		}
		filter.Offset = n
	}

	if verr.HasErrors() {
		return domain.ClaimFilter{}, verr
	}
	return filter, nil
}

// ClaimStats handles GET /claims/stats. It takes the same filters as
// GET /claims; paging parameters do not apply.
func (h *Handler) ClaimStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseClaimFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.claims.Stats(r.Context(), callerFrom(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.Get(r.Context(), chi.URLParam(r, "id"), callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ReviewClaim handles PATCH /claims/{id}.
func (h *Handler) ReviewClaim(w http.ResponseWriter, r *http.Request) {
	var req claims.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.claims.Review(r.Context(), chi.URLParam(r, "id"), callerFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
