package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mailshop-bot/internal/service"
	"mailshop-bot/internal/sheets"
	"mailshop-bot/pkg/apierror"
	"mailshop-bot/pkg/response"
)

// AdminHandler serves the staff side of the ops API: store aggregates, the
// deposit review queue and the state of the remote inventory store. It is a
// read-only dashboard surface; mutations happen through the chat flows.
type AdminHandler struct {
	account *service.AccountService
	queue   *sheets.Queue
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(account *service.AccountService, queue *sheets.Queue) *AdminHandler {
	return &AdminHandler{account: account, queue: queue}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.account.Stats(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("Failed to load stats"))
		return
	}
	response.OK(w, stats)
}

// GetPendingDeposits handles GET /api/v1/admin/deposits
func (h *AdminHandler) GetPendingDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.account.PendingDeposits(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("Failed to load pending deposits"))
		return
	}
	response.OK(w, deposits)
}

// GetUsers handles GET /api/v1/admin/users
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.account.AllUsers(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("Failed to load users"))
		return
	}
	response.OK(w, users)
}

// GetUserTransactions handles GET /api/v1/admin/users/{user_id}/transactions
func (h *AdminHandler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("user_id must be numeric"))
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	transactions, err := h.account.Transactions(r.Context(), userID, limit)
	if err != nil {
		response.Error(w, apierror.InternalError("Failed to load transactions"))
		return
	}
	response.OK(w, transactions)
}

// GetSheetStatus handles GET /api/v1/admin/sheet
func (h *AdminHandler) GetSheetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.Status(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("Remote store unreachable"))
		return
	}
	response.OK(w, status)
}
