package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/services"
	pkghttp "github.com/opsdesk/opsdesk/pkg/http"
	pkglogger "github.com/opsdesk/opsdesk/pkg/logger"
)

// IPBlockServiceInterface defines the blocked-IP administration contract.
type IPBlockServiceInterface interface {
	List(ctx context.Context) ([]*services.BlockedIPResponse, error)
	Unblock(ctx context.Context, ip string) (bool, error)
	UnblockByID(ctx context.Context, id string) (bool, error)
}

// LockoutServiceInterface defines the account lock administration contract.
type LockoutServiceInterface interface {
	Lock(ctx context.Context, userID string) (bool, error)
	Unlock(ctx context.Context, userID string) (bool, error)
}

// SessionRevoker revokes every session belonging to a user.
type SessionRevoker interface {
	DestroyForUser(ctx context.Context, userID string) error
}

// AdminHandler handles security administration HTTP requests.
type AdminHandler struct {
	ipBlocks    IPBlockServiceInterface
	lockouts    LockoutServiceInterface
	sessions    SessionRevoker
	ipConfig    *pkghttp.IPConfig
	auditLogger *pkglogger.AuditLogger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	ipBlocks IPBlockServiceInterface,
	lockouts LockoutServiceInterface,
	sessions SessionRevoker,
	ipConfig *pkghttp.IPConfig,
	auditLogger *pkglogger.AuditLogger,
) *AdminHandler {
	return &AdminHandler{
		ipBlocks:    ipBlocks,
		lockouts:    lockouts,
		sessions:    sessions,
		ipConfig:    ipConfig,
		auditLogger: auditLogger,
	}
}

// BlockedIPListResponse wraps the active block rows.
type BlockedIPListResponse struct {
	BlockedIPs []*services.BlockedIPResponse `json:"blocked_ips"`
	Count      int                           `json:"count"`
}

// ListBlockedIPs handles GET /admin/blocked-ips
func (h *AdminHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.ipBlocks.List(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list blocked IPs")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BlockedIPListResponse{
		BlockedIPs: blocks,
		Count:      len(blocks),
	})
}

// UnblockByID handles DELETE /admin/blocked-ips/{id}
func (h *AdminHandler) UnblockByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Missing block id")
		return
	}

	removed, err := h.ipBlocks.UnblockByID(r.Context(), id)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to unblock IP")
		return
	}
	if !removed {
		pkghttp.WriteNotFound(w, "No such block")
		return
	}

	h.auditAdminAction(r, "ip_unblocked", map[string]string{"block_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// UnblockByIP handles DELETE /admin/blocked-ips/ip/{ip}
func (h *AdminHandler) UnblockByIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		pkghttp.WriteBadRequest(w, "Missing IP address")
		return
	}

	removed, err := h.ipBlocks.Unblock(r.Context(), ip)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to unblock IP")
		return
	}
	if !removed {
		pkghttp.WriteNotFound(w, "IP is not blocked")
		return
	}

	h.auditAdminAction(r, "ip_unblocked", map[string]string{"blocked_ip": ip})
	w.WriteHeader(http.StatusNoContent)
}

// LockUser handles POST /admin/users/{id}/lock. An admin cannot lock
// their own account; that would orphan the tenant.
func (h *AdminHandler) LockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	actor := auth.GetUserFromContext(r)
	if actor != nil && actor.ID == userID {
		pkghttp.WriteBadRequest(w, "Cannot lock your own account")
		return
	}

	locked, err := h.lockouts.Lock(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to lock account")
		return
	}
	if !locked {
		pkghttp.WriteNotFound(w, "User not found")
		return
	}

	// A locked account keeps no live sessions.
	if err := h.sessions.DestroyForUser(r.Context(), userID); err != nil {
		pkghttp.WriteInternalError(w, "Account locked but session revocation failed")
		return
	}

	h.auditAdminAction(r, "account_locked", map[string]string{"target_user_id": userID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account locked"})
}

// UnlockUser handles POST /admin/users/{id}/unlock
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	unlocked, err := h.lockouts.Unlock(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}
	if !unlocked {
		pkghttp.WriteNotFound(w, "User not found")
		return
	}

	h.auditAdminAction(r, "account_unlocked", map[string]string{"target_user_id": userID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account unlocked"})
}

func (h *AdminHandler) auditAdminAction(r *http.Request, eventType string, metadata map[string]string) {
	actorID := ""
	if actor := auth.GetUserFromContext(r); actor != nil {
		actorID = actor.ID
	}
	h.auditLogger.LogAccountAction(eventType, actorID, pkghttp.ExtractClientIP(r, h.ipConfig), metadata)
}
