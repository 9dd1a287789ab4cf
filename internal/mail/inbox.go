package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// InboxEntry is one row of fetch_inbox's response.
type InboxEntry struct {
	DeliveryID  int64             `json:"delivery_id"`
	MessageID   int64             `json:"message_id"`
	ThreadID    int64             `json:"thread_id"`
	Subject     string            `json:"subject"`
	BodyMD      string            `json:"body_md,omitempty"`
	Sender      string            `json:"sender"`
	State       model.DeliveryState `json:"state"`
	Importance  model.Importance  `json:"importance"`
	CreatedAtMs int64             `json:"created_at_ms"`
}

// FetchInbox returns a project/agent's deliveries ordered by message
// creation time descending, paginated by a before_ms cursor.
func (e *Engine) FetchInbox(ctx context.Context, projectKey, agentName string, limit int, beforeMs int64, includeBodies bool) ([]InboxEntry, error) {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	agent, err := e.requireAgent(ctx, project.ID, agentName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	type row struct {
		DeliveryID  int64
		MessageID   int64
		ThreadID    int64
		State       model.DeliveryState
		Subject     string
		BodyMD      string
		SenderName  string
		Importance  model.Importance
		CreatedAtMs int64
	}

	q := e.store.DB().WithContext(ctx).
		Table("deliveries AS d").
		Joins("JOIN messages AS m ON m.id = d.message_id").
		Joins("JOIN agents AS a ON a.id = m.sender_agent_id").
		Select("d.id AS delivery_id, d.message_id AS message_id, m.thread_id AS thread_id, d.state AS state, m.subject AS subject, m.body_md AS body_md, a.name AS sender_name, m.importance AS importance, m.created_at_ms AS created_at_ms").
		Where("d.recipient_agent_id = ?", agent.ID).
		Order("m.created_at_ms DESC").
		Limit(limit)
	if beforeMs > 0 {
		q = q.Where("m.created_at_ms < ?", beforeMs)
	}

	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("mail: fetch_inbox: %w", err)
	}

	entries := make([]InboxEntry, 0, len(rows))
	for _, r := range rows {
		entry := InboxEntry{
			DeliveryID:  r.DeliveryID,
			MessageID:   r.MessageID,
			ThreadID:    r.ThreadID,
			Subject:     r.Subject,
			Sender:      r.SenderName,
			State:       r.State,
			Importance:  r.Importance,
			CreatedAtMs: r.CreatedAtMs,
		}
		if includeBodies {
			entry.BodyMD = r.BodyMD
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SearchResult is one hit returned by search_messages.
type SearchResult struct {
	MessageID   int64  `json:"message_id"`
	ThreadID    int64  `json:"thread_id"`
	Subject     string `json:"subject"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// SearchMessages runs a full-text query over subject+body. A missing FTS
// table (store never migrated) returns an empty result, not an error
// (spec §4.4, §9).
func (e *Engine) SearchMessages(ctx context.Context, projectKey, query string, limit int) ([]SearchResult, error) {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 25
	}

	type row struct {
		MessageID   int64
		ThreadID    int64
		Subject     string
		CreatedAtMs int64
	}
	var rows []row
	err = e.store.DB().WithContext(ctx).Raw(`
		SELECT m.id AS message_id, m.thread_id AS thread_id, m.subject AS subject, m.created_at_ms AS created_at_ms
		FROM message_fts
		JOIN messages m ON m.id = message_fts.message_id
		JOIN threads t ON t.id = m.thread_id
		WHERE message_fts MATCH ? AND t.project_id = ?
		ORDER BY rank
		LIMIT ?`, query, project.ID, limit).Scan(&rows).Error
	if err != nil {
		if isMissingFTSTable(err) {
			return []SearchResult{}, nil
		}
		return nil, fmt.Errorf("mail: search_messages: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, SearchResult{
			MessageID: r.MessageID, ThreadID: r.ThreadID, Subject: r.Subject, CreatedAtMs: r.CreatedAtMs,
		})
	}
	return results, nil
}

func isMissingFTSTable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such table: message_fts")
}

// AcknowledgeMessage transitions the caller's Ack row to acknowledged and
// the Delivery to acknowledged. Idempotent.
func (e *Engine) AcknowledgeMessage(ctx context.Context, projectKey, agentName string, messageID int64, note string) error {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return err
	}
	agent, err := e.requireAgent(ctx, project.ID, agentName)
	if err != nil {
		return err
	}

	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var delivery model.Delivery
		err := tx.Where("message_id = ? AND recipient_agent_id = ?", messageID, agent.ID).First(&delivery).Error
		if err == gorm.ErrRecordNotFound {
			return errs.Newf(errs.MessageNotFound, "no delivery of message %d to %q", messageID, agentName)
		}
		if err != nil {
			return err
		}

		now := e.store.Clock().NowMillis()
		if err := touchLastSeen(tx, agent.ID, now); err != nil {
			return err
		}
		if delivery.State == model.DeliveryAcknowledged {
			return nil
		}
		delivery.State = model.DeliveryAcknowledged
		delivery.AcknowledgedAtMs = &now
		if err := tx.Save(&delivery).Error; err != nil {
			return err
		}

		var ack model.Ack
		err = tx.Where("delivery_id = ?", delivery.ID).First(&ack).Error
		if err == gorm.ErrRecordNotFound {
			return nil // message wasn't ack_required
		}
		if err != nil {
			return err
		}
		ack.State = model.AckAcknowledged
		ack.AcknowledgedAtMs = &now
		ack.Note = note
		return tx.Save(&ack).Error
	})
	if err != nil {
		return fmt.Errorf("mail: acknowledge_message: %w", err)
	}

	e.bus.PublishAt(eventbus.TopicAckAcknowledged, project.ID, e.store.Clock().NowMillis(), map[string]any{
		"message_id": messageID,
		"agent":      agentName,
	})
	return nil
}

// MarkRead sets Delivery state "read" for the given message ids, but only
// where the current state is "delivered" (no effect on acknowledged
// deliveries, spec §4.4).
func (e *Engine) MarkRead(ctx context.Context, projectKey, agentName string, messageIDs []int64) error {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return err
	}
	agent, err := e.requireAgent(ctx, project.ID, agentName)
	if err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}

	var flipped int64
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := touchLastSeen(tx, agent.ID, e.store.Clock().NowMillis()); err != nil {
			return err
		}
		res := tx.Model(&model.Delivery{}).
			Where("recipient_agent_id = ? AND message_id IN ? AND state = ?", agent.ID, messageIDs, model.DeliveryDelivered).
			Update("state", model.DeliveryRead)
		flipped = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("mail: mark_read: %w", err)
	}

	if flipped > 0 {
		e.bus.PublishAt(eventbus.TopicDeliveryRead, project.ID, e.store.Clock().NowMillis(), map[string]any{
			"message_ids": messageIDs,
			"agent":       agentName,
		})
	}
	return nil
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
