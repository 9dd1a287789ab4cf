// Package contacts implements the Contact Graph (spec §4.3): directed
// approval edges between agents, gating which senders may reach which
// recipients.
package contacts

import (
	"context"
	"fmt"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// Graph implements set_contact_policy, request_contact, respond_contact
// and list_contacts over a Store.
type Graph struct {
	store *store.Store
	bus   *eventbus.Bus
}

func New(s *store.Store, bus *eventbus.Bus) *Graph {
	return &Graph{store: s, bus: bus}
}

// resolveAgent is a small shared helper: look up an agent by project+name
// inside an existing transaction, failing with AgentNotFound.
func resolveAgent(tx *gorm.DB, projectID int64, name string) (*model.Agent, error) {
	var agent model.Agent
	err := tx.Where("project_id = ? AND name_lower = ?", projectID, lower(name)).First(&agent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.AgentNotFound, "no agent named %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// SetContactPolicy sets an agent's default acceptance mode for inbound
// edges from strangers.
func (g *Graph) SetContactPolicy(ctx context.Context, projectID int64, agentName string, policy model.ContactPolicy) error {
	err := g.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		agent, err := resolveAgent(tx, projectID, agentName)
		if err != nil {
			return err
		}
		return tx.Model(&model.Agent{}).Where("id = ?", agent.ID).Update("contact_policy", policy).Error
	})
	if err != nil {
		return fmt.Errorf("contacts: set_contact_policy: %w", err)
	}
	return nil
}

// RequestContact inserts a pending edge from fromAgent to toAgent, unless
// both ends have policy "open", in which case it is written approved
// immediately. Idempotent on (from, to); re-requesting a declined edge
// transitions it back to pending exactly once.
func (g *Graph) RequestContact(ctx context.Context, projectID int64, fromAgent, toAgent, reason string) (*model.ContactEdge, error) {
	var edge model.ContactEdge
	err := g.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		from, err := resolveAgent(tx, projectID, fromAgent)
		if err != nil {
			return err
		}
		to, err := resolveAgent(tx, projectID, toAgent)
		if err != nil {
			return err
		}

		now := g.store.Clock().NowMillis()

		var existing model.ContactEdge
		err = tx.Where("project_id = ? AND from_agent_id = ? AND to_agent_id = ?", projectID, from.ID, to.ID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.State == model.ContactDeclined {
				existing.State = model.ContactPending
				existing.Reason = reason
				existing.RespondedAtMs = nil
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
			edge = existing
			return nil
		case err != gorm.ErrRecordNotFound:
			return err
		}

		state := model.ContactPending
		var respondedAt *int64
		if from.ContactPolicy == model.PolicyOpen && to.ContactPolicy == model.PolicyOpen {
			state = model.ContactApproved
			respondedAt = &now
		}

		edge = model.ContactEdge{
			ProjectID:     projectID,
			FromAgentID:   from.ID,
			ToAgentID:     to.ID,
			State:         state,
			Reason:        reason,
			CreatedAtMs:   now,
			RespondedAtMs: respondedAt,
		}
		return tx.Create(&edge).Error
	})
	if err != nil {
		return nil, fmt.Errorf("contacts: request_contact: %w", err)
	}

	g.bus.PublishAt(eventbus.TopicContactRequested, projectID, g.store.Clock().NowMillis(), map[string]any{
		"from":  fromAgent,
		"to":    toAgent,
		"state": string(edge.State),
	})
	return &edge, nil
}

// RespondContact transitions a pending edge to approved or declined.
// Accepting also writes (or upgrades) the reverse edge to approved, so a
// contact becomes usable for sends in both directions.
func (g *Graph) RespondContact(ctx context.Context, projectID int64, toAgent, fromAgent string, accept bool) (*model.ContactEdge, error) {
	var edge model.ContactEdge
	err := g.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		to, err := resolveAgent(tx, projectID, toAgent)
		if err != nil {
			return err
		}
		from, err := resolveAgent(tx, projectID, fromAgent)
		if err != nil {
			return err
		}

		err = tx.Where("project_id = ? AND from_agent_id = ? AND to_agent_id = ?", projectID, from.ID, to.ID).
			First(&edge).Error
		if err == gorm.ErrRecordNotFound {
			return errs.New(errs.InvalidArgument, "no pending contact request from that agent")
		}
		if err != nil {
			return err
		}

		now := g.store.Clock().NowMillis()
		if accept {
			edge.State = model.ContactApproved
		} else {
			edge.State = model.ContactDeclined
		}
		edge.RespondedAtMs = &now
		if err := tx.Save(&edge).Error; err != nil {
			return err
		}

		if accept {
			var reverse model.ContactEdge
			err = tx.Where("project_id = ? AND from_agent_id = ? AND to_agent_id = ?", projectID, to.ID, from.ID).
				First(&reverse).Error
			switch {
			case err == nil:
				reverse.State = model.ContactApproved
				reverse.RespondedAtMs = &now
				return tx.Save(&reverse).Error
			case err == gorm.ErrRecordNotFound:
				reverse = model.ContactEdge{
					ProjectID:     projectID,
					FromAgentID:   to.ID,
					ToAgentID:     from.ID,
					State:         model.ContactApproved,
					Reason:        "auto-approved: reverse of accepted request",
					CreatedAtMs:   now,
					RespondedAtMs: &now,
				}
				return tx.Create(&reverse).Error
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("contacts: respond_contact: %w", err)
	}

	g.bus.PublishAt(eventbus.TopicContactResponded, projectID, g.store.Clock().NowMillis(), map[string]any{
		"from":   fromAgent,
		"to":     toAgent,
		"accept": accept,
		"state":  string(edge.State),
	})
	return &edge, nil
}

// ListContacts returns both directions of agentName's contact edges.
func (g *Graph) ListContacts(ctx context.Context, projectID int64, agentName string) ([]model.ContactEdge, error) {
	var agent model.Agent
	if err := g.store.DB().WithContext(ctx).
		Where("project_id = ? AND name_lower = ?", projectID, lower(agentName)).
		First(&agent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Newf(errs.AgentNotFound, "no agent named %q", agentName)
		}
		return nil, fmt.Errorf("contacts: list_contacts: %w", err)
	}

	var edges []model.ContactEdge
	err := g.store.DB().WithContext(ctx).
		Where("project_id = ? AND (from_agent_id = ? OR to_agent_id = ?)", projectID, agent.ID, agent.ID).
		Order("created_at_ms ASC").
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("contacts: list_contacts: %w", err)
	}
	return edges, nil
}

// CheckSendGate is invoked by the Mail Engine (spec §4.3 "Send-time
// gate") for one sender/recipient pair inside the send_message
// transaction. It passes if a bidirectional approved pair exists, or if
// policy-open applies on both ends (request_contact would auto-approve
// in that case too, but a sender may not have called request_contact
// yet).
func CheckSendGate(tx *gorm.DB, projectID, senderAgentID, recipientAgentID int64) error {
	if senderAgentID == recipientAgentID {
		return nil
	}

	var sender, recipient model.Agent
	if err := tx.First(&sender, senderAgentID).Error; err != nil {
		return err
	}
	if err := tx.First(&recipient, recipientAgentID).Error; err != nil {
		return err
	}
	if sender.ContactPolicy == model.PolicyOpen && recipient.ContactPolicy == model.PolicyOpen {
		return nil
	}

	var outbound, inbound model.ContactEdge
	outboundErr := tx.Where("project_id = ? AND from_agent_id = ? AND to_agent_id = ?", projectID, senderAgentID, recipientAgentID).
		First(&outbound).Error
	inboundErr := tx.Where("project_id = ? AND from_agent_id = ? AND to_agent_id = ?", projectID, recipientAgentID, senderAgentID).
		First(&inbound).Error

	if outboundErr == nil && inboundErr == nil &&
		outbound.State == model.ContactApproved && inbound.State == model.ContactApproved {
		return nil
	}

	details := map[string]any{"recipient": recipient.Name}
	if outboundErr == nil {
		details["outbound_state"] = outbound.State
	} else {
		details["outbound_state"] = "missing"
	}
	if inboundErr == nil {
		details["inbound_state"] = inbound.State
	} else {
		details["inbound_state"] = "missing"
	}
	return errs.Newf(errs.ContactApprovalRequired, "no approved contact between sender and %q", recipient.Name).WithDetails(details)
}
