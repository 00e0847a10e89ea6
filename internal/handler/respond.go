package handler

import (
	"errors"
	"net/http"

	"memberhub-api/internal/service"
	"memberhub-api/pkg/apierror"
	"memberhub-api/pkg/response"
)

// User-facing messages per outcome. NotFound and AlreadyUsed deliberately
// render the same text so claim state is not leaked; the distinct internal
// codes still reach the audit log.
const (
	msgCodeInvalid     = "Kode aktivasi tidak ditemukan. Periksa kembali kode kamu ya."
	msgNotInCommunity  = "Kamu belum bergabung di server komunitas. Join dulu, lalu coba lagi."
	msgMisconfigured   = "Terjadi kendala konfigurasi. Silakan hubungi admin komunitas."
	msgPersistFailed   = "Aktivasi berhasil, tapi ada kendala pencatatan. Silakan hubungi admin untuk memastikan."
	msgActivated       = "Aktivasi berhasil! Role membership sudah diberikan. Selamat bergabung!"
	msgGenericFailure  = "Terjadi kesalahan. Silakan coba lagi nanti."
)

// redeemResponse is the classified outcome returned to the bot plumbing,
// identical for the message-command and form entry points.
type redeemResponse struct {
	Outcome string                `json:"outcome"`
	Message string                `json:"message"`
	Result  *service.RedeemResult `json:"result,omitempty"`
}

// writeRedeemOutcome renders a redemption result or error as a classified
// outcome. Only lock timeouts and unclassified failures surface as HTTP
// errors; every user-level outcome is a 200 so the bot can relay it.
func writeRedeemOutcome(w http.ResponseWriter, res *service.RedeemResult, err error) {
	if err == nil {
		response.OK(w, redeemResponse{Outcome: "success", Message: msgActivated, Result: res})
		return
	}

	var persistErr *service.PersistAfterGrantError
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrAlreadyUsed):
		response.OK(w, redeemResponse{Outcome: "not_found", Message: msgCodeInvalid})
	case errors.Is(err, service.ErrNotInCommunity):
		response.OK(w, redeemResponse{Outcome: "not_in_community", Message: msgNotInCommunity})
	case errors.Is(err, service.ErrMisconfiguredGrant):
		response.OK(w, redeemResponse{Outcome: "misconfigured", Message: msgMisconfigured})
	case errors.As(err, &persistErr):
		response.OK(w, redeemResponse{Outcome: "persist_failed", Message: msgPersistFailed})
	case errors.Is(err, service.ErrLockTimeout):
		response.Error(w, &apierror.Error{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "LOCK_TIMEOUT",
			Message:    msgGenericFailure,
		})
	default:
		response.Error(w, apierror.InternalError(msgGenericFailure))
	}
}
