package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeMagicLinkMail = "mail:magic_link"
	TypeOverdueSweep  = "invoice:overdue_sweep"
)

// MagicLinkMailPayload carries everything needed to deliver a portal
// login link. The raw token rides the queue exactly once; it is not
// recoverable from the database.
type MagicLinkMailPayload struct {
	ClientID uuid.UUID `json:"client_id"`
	Email    string    `json:"email"`
	Token    string    `json:"token"`
}

func NewMagicLinkMailTask(payload MagicLinkMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMagicLinkMail, data), nil
}

// OverdueSweepPayload is empty - the sweep walks all companies.
type OverdueSweepPayload struct{}

func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TypeOverdueSweep, nil)
}
