package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// ListRules returns the rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRule validates a rule and saves it. It takes effect after
// POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.RuleConfig
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, err)
		return
	}
	rule.ID = strings.TrimSpace(rule.ID)

	if err := h.engine.ValidateRule(&rule); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.repo.SaveRuleConfig(r.Context(), &rule); err != nil {
		writeError(w, r, domain.Unavailable("save rule", err))
		return
	}

	slog.Info("rule saved", "id", rule.ID, "name", rule.Name, "enabled", rule.Enabled)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule saved. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule removes a rule and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRuleConfig(r.Context(), ruleID); err != nil {
		writeError(w, r, domain.Unavailable("delete rule", err))
		return
	}

	count, err := h.reload(r)
	if err != nil {
		writeError(w, r, fmt.Errorf("rule %s deleted but reload failed: %w", ruleID, err))
		return
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rule deleted and engine reloaded.",
		"count":   count,
	})
}

// ReloadRules reloads all rules from the repository into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.reload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reload(r *http.Request) (int, error) {
	stored, err := h.repo.ListRuleConfigs(r.Context())
	if err != nil {
		return 0, domain.Unavailable("list rules", err)
	}
	if err := h.engine.ReloadRules(stored); err != nil {
		return 0, err
	}

	count := h.engine.RulesCount()
	slog.Info("rules reloaded from repository", "stored", len(stored), "loaded", count)
	return count, nil
}
