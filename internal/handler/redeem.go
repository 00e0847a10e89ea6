package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"memberhub-api/internal/service"
	"memberhub-api/pkg/apierror"
	"memberhub-api/pkg/response"
)

// RedeemHandler exposes the two redemption entry points the bot relays:
// free-form chat commands and the activation form.
type RedeemHandler struct {
	activation *service.ActivationService
}

// NewRedeemHandler creates a new redeem handler.
func NewRedeemHandler(activation *service.ActivationService) *RedeemHandler {
	return &RedeemHandler{activation: activation}
}

// MessageRequest is one chat message forwarded by the bot.
type MessageRequest struct {
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	Content         string `json:"content"`
}

// FormRequest is one submission of the activation form.
type FormRequest struct {
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	ActivationCode  string `json:"activation_code"`
}

// MembershipReply wraps a membership check for the bot to relay.
type MembershipReply struct {
	Message string                `json:"message"`
	Status  *service.StatusResult `json:"status,omitempty"`
}

type commandKind int

const (
	cmdUnknown commandKind = iota
	cmdActivate
	cmdCheck
)

// parseCommand classifies one chat message. Prefix matching is
// case-insensitive; "aktivasi" aliases "activate" and "cek" aliases
// "check" for the membership lookup.
func parseCommand(content string) (commandKind, string) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return cmdUnknown, ""
	}

	switch strings.ToLower(fields[0]) {
	case "activate", "aktivasi":
		if len(fields) < 2 {
			return cmdUnknown, ""
		}
		return cmdActivate, fields[1]
	case "check", "cek":
		if len(fields) < 2 {
			return cmdUnknown, ""
		}
		switch strings.ToLower(fields[1]) {
		case "membership", "expiry":
			return cmdCheck, ""
		}
	}
	return cmdUnknown, ""
}

// Message handles POST /api/v1/redeem/message
func (h *RedeemHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.DiscordID == "" {
		response.Error(w, apierror.BadRequest("discord_id is required"))
		return
	}

	kind, code := parseCommand(req.Content)
	switch kind {
	case cmdActivate:
		identity := service.Identity{DiscordID: req.DiscordID, Username: req.DiscordUsername}
		res, err := h.activation.Redeem(r.Context(), code, identity)
		writeRedeemOutcome(w, res, err)
	case cmdCheck:
		h.writeStatus(w, r, req.DiscordID)
	default:
		response.OK(w, MembershipReply{
			Message: "Perintah tidak dikenali. Gunakan `activate <kode>` atau `cek membership`.",
		})
	}
}

// Form handles POST /api/v1/redeem/form
func (h *RedeemHandler) Form(w http.ResponseWriter, r *http.Request) {
	var req FormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.DiscordID == "" {
		response.Error(w, apierror.BadRequest("discord_id is required"))
		return
	}
	code := strings.TrimSpace(req.ActivationCode)
	if code == "" {
		response.Error(w, apierror.BadRequest("activation_code is required"))
		return
	}

	identity := service.Identity{DiscordID: req.DiscordID, Username: req.DiscordUsername}
	res, err := h.activation.Redeem(r.Context(), code, identity)
	writeRedeemOutcome(w, res, err)
}

func (h *RedeemHandler) writeStatus(w http.ResponseWriter, r *http.Request, discordID string) {
	status, err := h.activation.MembershipStatus(r.Context(), discordID)
	if err != nil {
		response.OK(w, MembershipReply{
			Message: "Membership aktif tidak ditemukan untuk akun kamu.",
		})
		return
	}

	msg := "Membership kamu aktif."
	switch {
	case status.Lifetime:
		msg = "Membership kamu aktif selamanya. Nikmati!"
	case status.ExpiryDate != "":
		msg = "Membership kamu aktif sampai " + status.ExpiryDate + "."
	}
	response.OK(w, MembershipReply{Message: msg, Status: status})
}
