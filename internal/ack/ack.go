// Package ack implements the Acknowledgement Engine (spec §4.5):
// acks_pending, acks_overdue, and a periodic sweep that flips expired
// pending acks to overdue and emits ack.overdue events.
package ack

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// Engine implements the acknowledgement-deadline operations over a Store.
type Engine struct {
	store *store.Store
	bus   *eventbus.Bus
}

func New(s *store.Store, bus *eventbus.Bus) *Engine {
	return &Engine{store: s, bus: bus}
}

// AckEntry is one row returned by acks_pending/acks_overdue.
type AckEntry struct {
	AckID       int64          `json:"ack_id"`
	DeliveryID  int64          `json:"delivery_id"`
	MessageID   int64          `json:"message_id"`
	Sender      string         `json:"sender"`
	Subject     string         `json:"subject"`
	State       model.AckState `json:"state"`
	DeadlineMs  int64          `json:"deadline_ms"`
	CreatedAtMs int64          `json:"created_at_ms"`
}

// AcksPending returns pending acks where the caller is the recipient.
func (e *Engine) AcksPending(ctx context.Context, projectKey, agentName string) ([]AckEntry, error) {
	return e.listByState(ctx, projectKey, agentName, model.AckPending)
}

// AcksOverdue returns acks newly (or already) past deadline for the
// caller, flipping any still-pending ones to overdue (and their
// Delivery's state) as a side effect (spec §4.5).
func (e *Engine) AcksOverdue(ctx context.Context, projectKey, agentName string) ([]AckEntry, error) {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	agent, err := e.requireAgent(ctx, project.ID, agentName)
	if err != nil {
		return nil, err
	}

	now := e.store.Clock().NowMillis()
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return flipOverdueForRecipient(tx, agent.ID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("ack: acks_overdue: %w", err)
	}

	return e.listByState(ctx, projectKey, agentName, model.AckOverdue)
}

func (e *Engine) listByState(ctx context.Context, projectKey, agentName string, state model.AckState) ([]AckEntry, error) {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	agent, err := e.requireAgent(ctx, project.ID, agentName)
	if err != nil {
		return nil, err
	}

	type row struct {
		AckID       int64
		DeliveryID  int64
		MessageID   int64
		SenderName  string
		Subject     string
		State       model.AckState
		DeadlineMs  int64
		CreatedAtMs int64
	}
	var rows []row
	err = e.store.DB().WithContext(ctx).
		Table("acks AS ak").
		Joins("JOIN deliveries AS d ON d.id = ak.delivery_id").
		Joins("JOIN messages AS m ON m.id = d.message_id").
		Joins("JOIN agents AS sender ON sender.id = m.sender_agent_id").
		Select("ak.id AS ack_id, ak.delivery_id AS delivery_id, m.id AS message_id, sender.name AS sender_name, m.subject AS subject, ak.state AS state, ak.deadline_ms AS deadline_ms, ak.created_at_ms AS created_at_ms").
		Where("d.recipient_agent_id = ? AND ak.state = ?", agent.ID, state).
		Order("ak.deadline_ms ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ack: list: %w", err)
	}

	entries := make([]AckEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, AckEntry{
			AckID: r.AckID, DeliveryID: r.DeliveryID, MessageID: r.MessageID,
			Sender: r.SenderName, Subject: r.Subject, State: r.State,
			DeadlineMs: r.DeadlineMs, CreatedAtMs: r.CreatedAtMs,
		})
	}
	return entries, nil
}

// flipOverdueForRecipient conditionally updates pending acks past
// deadline for one recipient. A plain recipient-scoped conditional
// UPDATE, same idempotent shape as the background Sweep uses project-wide.
func flipOverdueForRecipient(tx *gorm.DB, recipientAgentID, now int64) error {
	var ackIDs []int64
	err := tx.Table("acks AS ak").
		Joins("JOIN deliveries AS d ON d.id = ak.delivery_id").
		Where("d.recipient_agent_id = ? AND ak.state = ? AND ak.deadline_ms < ?", recipientAgentID, model.AckPending, now).
		Pluck("ak.id", &ackIDs).Error
	if err != nil {
		return err
	}
	if len(ackIDs) == 0 {
		return nil
	}

	if err := tx.Model(&model.Ack{}).Where("id IN ? AND state = ?", ackIDs, model.AckPending).
		Update("state", model.AckOverdue).Error; err != nil {
		return err
	}

	var deliveryIDs []int64
	if err := tx.Model(&model.Ack{}).Where("id IN ?", ackIDs).Pluck("delivery_id", &deliveryIDs).Error; err != nil {
		return err
	}
	return tx.Model(&model.Delivery{}).Where("id IN ? AND state = ?", deliveryIDs, model.DeliveryDelivered).
		Update("state", model.DeliveryOverdue).Error
}

func (e *Engine) requireProject(ctx context.Context, humanKey string) (*model.Project, error) {
	var project model.Project
	err := e.store.DB().WithContext(ctx).Where("human_key = ?", humanKey).First(&project).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.ProjectNotFound, "no project %q", humanKey)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (e *Engine) requireAgent(ctx context.Context, projectID int64, name string) (*model.Agent, error) {
	var agent model.Agent
	err := e.store.DB().WithContext(ctx).
		Where("project_id = ? AND name_lower = ?", projectID, strings.ToLower(name)).
		First(&agent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.AgentNotFound, "no agent named %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}
