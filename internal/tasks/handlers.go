package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/mail"
)

type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	mailer  mail.Mailer
	baseURL string
}

func NewHandler(db *gorm.DB, logger *slog.Logger, mailer mail.Mailer, baseURL string) *Handler {
	return &Handler{
		db:      db,
		logger:  logger,
		mailer:  mailer,
		baseURL: baseURL,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeMagicLinkMail, h.HandleMagicLinkMail)
	mux.HandleFunc(TypeOverdueSweep, h.HandleOverdueSweep)
}

func (h *Handler) HandleMagicLinkMail(ctx context.Context, t *asynq.Task) error {
	var payload MagicLinkMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// The client may have been removed since the link was requested.
	var client models.Client
	if err := h.db.WithContext(ctx).First(&client, "id = ?", payload.ClientID).Error; err != nil {
		h.logger.Warn("skipping magic link for unknown client", "client_id", payload.ClientID)
		return nil
	}

	link := fmt.Sprintf("%s/portal/verify?token=%s", h.baseURL, url.QueryEscape(payload.Token))

	err := h.mailer.Send(ctx, mail.Message{
		To:      payload.Email,
		Subject: "Your login link",
		Body: fmt.Sprintf(
			"Hello %s,\n\nUse this link to sign in to your client portal:\n\n%s\n\nThe link works once and expires shortly.\n",
			client.Name, link,
		),
	})
	if err != nil {
		// Let asynq retry; the token stays valid until its TTL.
		return fmt.Errorf("sending magic link mail: %w", err)
	}

	h.logger.Info("magic link mail sent", "client_id", payload.ClientID)
	return nil
}

// HandleOverdueSweep marks sent invoices past their due date as
// overdue. Scope is re-derived at execution time; nothing from
// enqueue time is trusted.
func (h *Handler) HandleOverdueSweep(ctx context.Context, t *asynq.Task) error {
	result := h.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ? AND due_at < ?", models.InvoiceStatusSent, time.Now()).
		Update("status", models.InvoiceStatusOverdue)
	if result.Error != nil {
		return fmt.Errorf("overdue sweep: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		h.logger.Info("marked invoices overdue", "count", result.RowsAffected)
	}
	return nil
}
