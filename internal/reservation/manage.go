package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// Renew extends the expiry of every active reservation held by agentName
// to now + ttlSeconds, returning the renewed set.
func (e *Engine) Renew(ctx context.Context, projectKey, agentName string, ttlSeconds int64) ([]GrantedPath, error) {
	if ttlSeconds <= 0 {
		return nil, errs.New(errs.InvalidArgument, "ttl_seconds must be positive")
	}
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	lock := lockFor(project.ID)
	lock.Lock()
	defer lock.Unlock()

	var renewed []GrantedPath
	var expired []model.FileReservation
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		agent, err := e.requireAgentTx(tx, project.ID, agentName)
		if err != nil {
			return err
		}

		now := e.store.Clock().NowMillis()
		if err := touchLastSeen(tx, agent.ID, now); err != nil {
			return err
		}

		expiredRows, err := expirePassively(tx, project.ID, now)
		if err != nil {
			return err
		}
		expired = expiredRows

		var active []model.FileReservation
		err = tx.Where("project_id = ? AND holder_agent_id = ? AND released_at_ms IS NULL AND expires_at_ms > ?", project.ID, agent.ID, now).
			Find(&active).Error
		if err != nil {
			return err
		}

		newExpiry := now + ttlSeconds*1000
		for _, res := range active {
			if err := tx.Model(&model.FileReservation{}).Where("id = ?", res.ID).
				Update("expires_at_ms", newExpiry).Error; err != nil {
				return err
			}
			paths, err := pathsFor(tx, res.ID)
			if err != nil {
				return err
			}
			renewed = append(renewed, GrantedPath{ReservationID: res.ID, Paths: paths, ExpiresAtMs: newExpiry})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reservation: renew_file_reservations: %w", err)
	}

	for _, res := range expired {
		e.bus.PublishAt(eventbus.TopicReservationExpired, project.ID, e.store.Clock().NowMillis(), map[string]any{
			"reservation_id": res.ID,
		})
	}
	return renewed, nil
}

// Release releases a specific reservation, or all of agentName's active
// reservations if reservationID is nil.
func (e *Engine) Release(ctx context.Context, projectKey, agentName string, reservationID *int64) error {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return err
	}

	lock := lockFor(project.ID)
	lock.Lock()
	defer lock.Unlock()

	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		agent, err := e.requireAgentTx(tx, project.ID, agentName)
		if err != nil {
			return err
		}

		now := e.store.Clock().NowMillis()
		q := tx.Model(&model.FileReservation{}).
			Where("project_id = ? AND holder_agent_id = ? AND released_at_ms IS NULL", project.ID, agent.ID)
		if reservationID != nil {
			var res model.FileReservation
			if err := tx.Where("id = ? AND holder_agent_id = ?", *reservationID, agent.ID).First(&res).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return errs.Newf(errs.ReservationNotFound, "no reservation %d held by %q", *reservationID, agentName)
				}
				return err
			}
			q = tx.Model(&model.FileReservation{}).Where("id = ?", *reservationID)
		}
		return q.Update("released_at_ms", now).Error
	})
	if err != nil {
		return fmt.Errorf("reservation: release_file_reservations: %w", err)
	}

	e.bus.PublishAt(eventbus.TopicReservationReleased, project.ID, e.store.Clock().NowMillis(), map[string]any{
		"agent":          agentName,
		"reservation_id": reservationID,
	})
	return nil
}

// ForceRelease administratively releases a reservation, refusing if the
// holder has had write activity within the grace window (spec §4.6).
func (e *Engine) ForceRelease(ctx context.Context, projectKey, agentName string, reservationID int64) error {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return err
	}

	lock := lockFor(project.ID)
	lock.Lock()
	defer lock.Unlock()

	var holderName string
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var res model.FileReservation
		if err := tx.Where("id = ? AND project_id = ?", reservationID, project.ID).First(&res).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.Newf(errs.ReservationNotFound, "no reservation %d", reservationID)
			}
			return err
		}

		var holder model.Agent
		if err := tx.First(&holder, res.HolderAgentID).Error; err != nil {
			return err
		}
		holderName = holder.Name

		now := e.store.Clock().NowMillis()
		graceMs := e.forceReleaseGrace.Milliseconds()
		if now-holder.LastSeenAtMs < graceMs {
			return errs.Newf(errs.ForcedReleaseRefused, "holder %q was active %dms ago, within the %dms grace window", holder.Name, now-holder.LastSeenAtMs, graceMs).
				WithDetails(map[string]any{"last_activity_ms": holder.LastSeenAtMs, "now_ms": now})
		}

		return tx.Model(&model.FileReservation{}).Where("id = ?", res.ID).
			Updates(map[string]any{"released_at_ms": now, "force_released": true}).Error
	})
	if err != nil {
		return fmt.Errorf("reservation: force_release_file_reservation: %w", err)
	}

	e.bus.PublishAt(eventbus.TopicReservationReleased, project.ID, e.store.Clock().NowMillis(), map[string]any{
		"reservation_id": reservationID,
		"holder":         holderName,
		"forced":         true,
		"released_by":    agentName,
	})
	return nil
}

// ReservationView is a read-model row for list/active/soon.
type ReservationView struct {
	ReservationID int64    `json:"reservation_id"`
	Holder        string   `json:"holder"`
	Mode          string   `json:"mode"`
	Paths         []string `json:"paths"`
	CreatedAtMs   int64    `json:"created_at_ms"`
	ExpiresAtMs   int64    `json:"expires_at_ms"`
}

// List returns every reservation in the project, active or not.
func (e *Engine) List(ctx context.Context, projectKey string) ([]ReservationView, error) {
	return e.listFiltered(ctx, projectKey, nil)
}

// Active returns currently-active reservations.
func (e *Engine) Active(ctx context.Context, projectKey string) ([]ReservationView, error) {
	now := e.store.Clock().NowMillis()
	return e.listFiltered(ctx, projectKey, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("released_at_ms IS NULL AND expires_at_ms > ?", now)
	})
}

// Soon returns reservations active now that will expire within window.
func (e *Engine) Soon(ctx context.Context, projectKey string, window time.Duration) ([]ReservationView, error) {
	now := e.store.Clock().NowMillis()
	horizon := now + window.Milliseconds()
	return e.listFiltered(ctx, projectKey, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("released_at_ms IS NULL AND expires_at_ms > ? AND expires_at_ms <= ?", now, horizon)
	})
}

func (e *Engine) listFiltered(ctx context.Context, projectKey string, filter func(*gorm.DB) *gorm.DB) ([]ReservationView, error) {
	project, err := e.requireProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	q := e.store.DB().WithContext(ctx).Model(&model.FileReservation{}).
		Joins("JOIN agents ON agents.id = file_reservations.holder_agent_id").
		Where("file_reservations.project_id = ?", project.ID).
		Order("file_reservations.created_at_ms ASC")
	if filter != nil {
		q = filter(q)
	}

	type row struct {
		ReservationID int64
		Holder        string
		Mode          model.ReservationMode
		CreatedAtMs   int64
		ExpiresAtMs   int64
	}
	var rows []row
	err = q.Select("file_reservations.id AS reservation_id, agents.name AS holder, file_reservations.mode AS mode, file_reservations.created_at_ms AS created_at_ms, file_reservations.expires_at_ms AS expires_at_ms").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reservation: list: %w", err)
	}

	views := make([]ReservationView, 0, len(rows))
	for _, r := range rows {
		paths, err := pathsFor(e.store.DB().WithContext(ctx), r.ReservationID)
		if err != nil {
			return nil, err
		}
		views = append(views, ReservationView{
			ReservationID: r.ReservationID, Holder: r.Holder, Mode: string(r.Mode),
			Paths: paths, CreatedAtMs: r.CreatedAtMs, ExpiresAtMs: r.ExpiresAtMs,
		})
	}
	return views, nil
}

func pathsFor(tx *gorm.DB, reservationID int64) ([]string, error) {
	var rows []model.FileReservationPath
	if err := tx.Where("reservation_id = ?", reservationID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(rows))
	for _, r := range rows {
		paths = append(paths, r.Path)
	}
	return paths, nil
}
