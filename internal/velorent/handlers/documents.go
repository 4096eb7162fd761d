package handlers

import (
	"net/http"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/service"
)

// GetMyDocument returns the caller's personal data and latest document
func (h *Handler) GetMyDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.GetMyDocument(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateMyDocument saves the caller's personal data
func (h *Handler) UpdateMyDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.PersonalDataInput
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.UpsertPersonalData(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitMyDocument sends the caller's data for review
func (h *Handler) SubmitMyDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.Submit(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListMyContracts lists the caller's contract documents
func (h *Handler) ListMyContracts(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	contracts, err := h.Docs.ListMyContracts(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if contracts == nil {
		contracts = []service.DocumentView{}
	}
	writeJSON(w, http.StatusOK, contracts)
}

// DownloadMyContract exports one of the caller's contracts as DOCX
func (h *Handler) DownloadMyContract(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	documentID, err := pathID(r, "documentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	path, err := h.Docs.ExportContract(r.Context(), userID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	serveContract(w, r, path)
}

// ListUsers lists regular users, optionally filtered by ?status=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var status *models.Status
	if q := r.URL.Query().Get("status"); q != "" {
		s := models.Status(q)
		status = &s
	}

	users, err := h.Docs.ListUsers(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []service.UserSummary{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser returns one user's summary
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.Docs.GetUserSummary(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ApproveUser approves pending personal data
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.Approve(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RejectUser rejects personal data with a reason
func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.Reject(r.Context(), userID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateUserDocument sets admin fields on the user's latest document
func (h *Handler) UpdateUserDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.AdminDocumentUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.AdminUpdateDocument(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListUserContracts lists an approved user's contracts
func (h *Handler) ListUserContracts(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	contracts, err := h.Docs.ListUserContracts(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if contracts == nil {
		contracts = []service.DocumentView{}
	}
	writeJSON(w, http.StatusOK, contracts)
}

// GetUserDocument returns one document of a user
func (h *Handler) GetUserDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	documentID, err := pathID(r, "documentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.GetUserDocument(r.Context(), userID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SignUserDocument signs a document and builds its payment schedule
func (h *Handler) SignUserDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	documentID, err := pathID(r, "documentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.Docs.SignDocument(r.Context(), userID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPaymentSchedule returns a user's installments
func (h *Handler) GetPaymentSchedule(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows, err := h.Docs.GetSchedule(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.ContractPayment{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// DownloadUserContract exports a user's contract as DOCX
func (h *Handler) DownloadUserContract(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	documentID, err := pathID(r, "documentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	path, err := h.Docs.ExportContract(r.Context(), userID, documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	serveContract(w, r, path)
}
