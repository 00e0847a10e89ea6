package handler

import (
	"encoding/json"
	"net/http"

	"memberhub-api/internal/service"
	"memberhub-api/pkg/apierror"
	"memberhub-api/pkg/response"
)

// AdminHandler exposes the operator surface: manual expiry runs and
// one-off role removal. All routes sit behind the admin shared secret.
type AdminHandler struct {
	expiry *service.ExpiryService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(expiry *service.ExpiryService) *AdminHandler {
	return &AdminHandler{expiry: expiry}
}

// TriggerExpiryScan handles POST /api/v1/admin/expiry/scan
func (h *AdminHandler) TriggerExpiryScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.expiry.RunExpiryScan(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}
	response.OK(w, report)
}

// TriggerReminder handles POST /api/v1/admin/expiry/remind
func (h *AdminHandler) TriggerReminder(w http.ResponseWriter, r *http.Request) {
	report, err := h.expiry.RunReminder(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}
	response.OK(w, report)
}

// RemoveRoleRequest asks for one member's membership roles to be revoked.
type RemoveRoleRequest struct {
	DiscordID string `json:"discord_id"`
	Reason    string `json:"reason"`
}

// RemoveRole handles POST /api/v1/admin/roles/remove
func (h *AdminHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	var req RemoveRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.DiscordID == "" {
		response.Error(w, apierror.BadRequest("discord_id is required"))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual removal"
	}

	report, err := h.expiry.RevokeMembership(r.Context(), req.DiscordID, reason)
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}
	response.OK(w, report)
}
