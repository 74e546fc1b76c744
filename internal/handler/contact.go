package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// ContactSender delivers contact enquiries.
type ContactSender interface {
	SendContact(ctx context.Context, msg model.ContactMessage) error
}

// contactResponse is the body of POST /contact.
type contactResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ContactHandler handles the landing page contact form.
type ContactHandler struct {
	responder
	sender ContactSender
}

// NewContactHandler creates a new ContactHandler instance.
func NewContactHandler(sender ContactSender, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		responder: responder{logger: logger},
		sender:    sender,
	}
}

// RegisterRoutes registers POST /contact with the router.
func (h *ContactHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/contact", h.Submit).Methods(http.MethodPost)
}

// Submit validates the enquiry and mails it. Delivery problems are logged
// and reported to the visitor generically.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	in, err := parseInput(w, r, 0)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, contactResponse{Error: errBadRequest.Error()})
		return
	}

	msg := model.ContactMessage{
		Name:    in.values["name"],
		Email:   in.values["email"],
		Message: in.values["message"],
	}

	err = h.sender.SendContact(r.Context(), msg)
	var verr *model.ValidationError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, contactResponse{Success: true})
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, contactResponse{Error: verr.Error()})
	default:
		h.logger.Error("contact message not delivered", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, contactResponse{Error: "the message could not be sent"})
	}
}
