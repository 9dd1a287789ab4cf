// Package mail implements the Mail Engine (spec §4.4): send_message,
// fetch_inbox, search_messages, acknowledge_message, mark_read.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

const defaultAckDeadline = 24 * 60 * 60 * 1000 // 24h, in ms

// Engine implements the Mail Engine over a Store and Event Bus.
type Engine struct {
	store *store.Store
	bus   *eventbus.Bus
}

func New(s *store.Store, bus *eventbus.Bus) *Engine {
	return &Engine{store: s, bus: bus}
}

// SendInput carries send_message's arguments (spec §4.4).
type SendInput struct {
	ProjectKey     string
	SenderName     string
	To             []string
	Subject        string
	BodyMD         string
	ThreadID       string // caller-supplied external thread id, optional
	Importance     model.Importance
	AckRequired    bool
	AckDeadlineMs  int64 // 0 means "use default"
	AttachmentRefs []string
}

// DeliveryEnvelope describes one recipient's delivery in send_message's
// response envelope.
type DeliveryEnvelope struct {
	Recipient   string `json:"recipient"`
	DeliveryID  int64  `json:"delivery_id"`
	AckRequired bool   `json:"ack_required"`
}

// SendEnvelope is send_message's full response shape.
type SendEnvelope struct {
	MessageID  int64              `json:"message_id"`
	ThreadID   int64              `json:"thread_id"`
	Deliveries []DeliveryEnvelope `json:"deliveries"`
	Payload    struct {
		ID          int64  `json:"id"`
		Subject     string `json:"subject"`
		BodyMD      string `json:"body_md"`
		CreatedAtMs int64  `json:"created_at_ms"`
	} `json:"payload"`
}

// Send implements send_message end to end in one transaction: resolve
// sender/recipients, apply the contact gate, resolve-or-create the
// thread, insert the message, FTS row, deliveries, and acks, then emit
// delivery.created events after commit.
func (e *Engine) Send(ctx context.Context, in SendInput) (*SendEnvelope, error) {
	if len(in.To) == 0 {
		return nil, errs.New(errs.InvalidArgument, "at least one recipient is required")
	}
	if in.Importance == "" {
		in.Importance = model.ImportanceNormal
	}

	var project model.Project
	var envelope SendEnvelope
	var deliveredTo []string

	err := e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Where("human_key = ?", in.ProjectKey).First(&project).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.Newf(errs.ProjectNotFound, "no project %q", in.ProjectKey)
			}
			return err
		}

		sender, err := resolveAgent(tx, project.ID, in.SenderName)
		if err != nil {
			return err
		}

		recipients, order, err := resolveRecipients(tx, project.ID, in.To)
		if err != nil {
			return err
		}

		for _, r := range recipients {
			if err := contacts.CheckSendGate(tx, project.ID, sender.ID, r.ID); err != nil {
				return err
			}
		}

		now := e.store.Clock().NowMillis()
		if err := touchLastSeen(tx, sender.ID, now); err != nil {
			return err
		}

		thread, err := resolveThread(tx, project.ID, in.ThreadID, in.Subject, now)
		if err != nil {
			return err
		}

		msg := model.Message{
			ThreadID:       thread.ID,
			SenderAgentID:  sender.ID,
			Subject:        in.Subject,
			BodyMD:         in.BodyMD,
			Importance:     in.Importance,
			AckRequired:    in.AckRequired,
			AttachmentRefs: strings.Join(in.AttachmentRefs, "\n"),
			CreatedAtMs:    now,
		}
		if in.AckRequired {
			deadline := in.AckDeadlineMs
			if deadline <= 0 {
				deadline = now + defaultAckDeadline
			}
			msg.AckDeadlineMs = &deadline
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if err := tx.Exec(
			"INSERT INTO message_fts (rowid, subject, body, message_id) VALUES (?, ?, ?, ?)",
			msg.ID, msg.Subject, msg.BodyMD, msg.ID,
		).Error; err != nil {
			return fmt.Errorf("mail: index message: %w", err)
		}

		if err := tx.Model(&model.Thread{}).Where("id = ?", thread.ID).
			Update("last_activity_at_ms", now).Error; err != nil {
			return err
		}

		envelope.MessageID = msg.ID
		envelope.ThreadID = thread.ID
		envelope.Payload.ID = msg.ID
		envelope.Payload.Subject = msg.Subject
		envelope.Payload.BodyMD = msg.BodyMD
		envelope.Payload.CreatedAtMs = msg.CreatedAtMs

		for _, name := range order {
			recipient := recipients[name]
			delivery := model.Delivery{
				MessageID:        msg.ID,
				RecipientAgentID: recipient.ID,
				State:            model.DeliveryDelivered,
				CreatedAtMs:      now,
			}
			if err := tx.Create(&delivery).Error; err != nil {
				return err
			}
			if in.AckRequired {
				ack := model.Ack{
					DeliveryID:  delivery.ID,
					State:       model.AckPending,
					DeadlineMs:  *msg.AckDeadlineMs,
					CreatedAtMs: now,
				}
				if err := tx.Create(&ack).Error; err != nil {
					return err
				}
			}
			envelope.Deliveries = append(envelope.Deliveries, DeliveryEnvelope{
				Recipient:   name,
				DeliveryID:  delivery.ID,
				AckRequired: in.AckRequired,
			})
			deliveredTo = append(deliveredTo, name)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mail: send_message: %w", err)
	}

	for i, d := range envelope.Deliveries {
		e.bus.PublishAt(eventbus.TopicDeliveryCreated, project.ID, envelope.Payload.CreatedAtMs, map[string]any{
			"message_id":  envelope.MessageID,
			"delivery_id": d.DeliveryID,
			"recipient":   deliveredTo[i],
		})
	}

	return &envelope, nil
}

// resolveRecipients resolves each requested name to an Agent, deduplicated
// by agent id while preserving first-occurrence order (spec §4.4).
func resolveRecipients(tx *gorm.DB, projectID int64, names []string) (map[string]model.Agent, []string, error) {
	byID := map[int64]bool{}
	resolved := map[string]model.Agent{}
	var order []string
	for _, name := range names {
		agent, err := resolveAgent(tx, projectID, name)
		if err != nil {
			return nil, nil, err
		}
		if byID[agent.ID] {
			continue
		}
		byID[agent.ID] = true
		resolved[name] = *agent
		order = append(order, name)
	}
	return resolved, order, nil
}

// touchLastSeen records agentID's write activity (spec §3: last-seen is
// "updated implicitly by send/read activity"), so the reservation engine's
// force-release grace window is anchored to real activity rather than the
// agent's registration time.
func touchLastSeen(tx *gorm.DB, agentID, nowMs int64) error {
	return tx.Model(&model.Agent{}).Where("id = ?", agentID).Update("last_seen_at_ms", nowMs).Error
}

func resolveAgent(tx *gorm.DB, projectID int64, name string) (*model.Agent, error) {
	var agent model.Agent
	err := tx.Where("project_id = ? AND name_lower = ?", projectID, strings.ToLower(name)).First(&agent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.AgentNotFound, "no agent named %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// resolveThread implements spec §4.4's thread resolution: reuse a known
// external id, create one with the caller-supplied id if unknown, or mint
// a new id if absent. An existing thread's subject is never overwritten
// (invariant I7).
func resolveThread(tx *gorm.DB, projectID int64, externalID, subject string, now int64) (*model.Thread, error) {
	if externalID != "" {
		var thread model.Thread
		err := tx.Where("project_id = ? AND external_id = ?", projectID, externalID).First(&thread).Error
		if err == nil {
			return &thread, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		thread = model.Thread{
			ProjectID:        projectID,
			ExternalID:       externalID,
			Subject:          subject,
			CreatedAtMs:      now,
			LastActivityAtMs: now,
		}
		if err := tx.Create(&thread).Error; err != nil {
			return nil, err
		}
		return &thread, nil
	}

	thread := model.Thread{
		ProjectID:        projectID,
		ExternalID:       newThreadID(),
		Subject:          subject,
		CreatedAtMs:      now,
		LastActivityAtMs: now,
	}
	if err := tx.Create(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}
