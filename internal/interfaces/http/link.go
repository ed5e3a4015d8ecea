package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"balancebook/internal/domain/banklink"
)

// LinkService is the banklink surface used by LinkHandler.
type LinkService interface {
	CreatePlaidLinkToken(ctx context.Context, userID int64) (*banklink.LinkToken, error)
	LinkPlaid(ctx context.Context, userID int64, publicToken, institution string) (*banklink.BankLink, error)
	LinkCryptoWallet(ctx context.Context, userID int64, chainName, address, label string) (*banklink.BankLink, error)
	List(ctx context.Context, userID int64) ([]*banklink.BankLink, error)
	Remove(ctx context.Context, userID int64, linkID string) error
	Refresh(ctx context.Context, userID int64, linkID string) (*banklink.BankLink, error)
}

type LinkHandler struct {
	links LinkService
}

func NewLinkHandler(links LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

type PlaidExchangeRequest struct {
	PublicToken     string `json:"publicToken"`
	InstitutionName string `json:"institutionName"`
}

type CryptoWalletRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Label   string `json:"label"`
}

// HandleList handles GET /api/links
func (h *LinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	links, err := h.links.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list links")
		return
	}
	if links == nil {
		links = []*banklink.BankLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

// HandleDelete handles DELETE /api/links/{id}
func (h *LinkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.links.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "Failed to remove link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh handles POST /api/links/{id}/refresh
func (h *LinkHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	link, err := h.links.Refresh(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Failed to refresh link")
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// HandlePlaidLinkToken handles POST /api/links/plaid/link-token
func (h *LinkHandler) HandlePlaidLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	token, err := h.links.CreatePlaidLinkToken(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to create link token")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// HandlePlaidExchange handles POST /api/links/plaid/exchange
func (h *LinkHandler) HandlePlaidExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req PlaidExchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	link, err := h.links.LinkPlaid(r.Context(), userID, req.PublicToken, req.InstitutionName)
	if err != nil {
		writeError(w, r, err, "Failed to link institution")
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// HandleCryptoWallet handles POST /api/links/crypto
func (h *LinkHandler) HandleCryptoWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CryptoWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	link, err := h.links.LinkCryptoWallet(r.Context(), userID, req.Chain, req.Address, req.Label)
	if err != nil {
		writeError(w, r, err, "Failed to link wallet")
		return
	}
	writeJSON(w, http.StatusCreated, link)
}
