// Package reservation implements the Reservation Engine (spec §4.6):
// exclusive/shared time-bounded claims over one or more file paths.
package reservation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// DefaultForceReleaseGrace is the grace window force_release_file_reservation
// refuses within of the holder's last activity (spec §4.6).
const DefaultForceReleaseGrace = 10 * time.Second

// Engine implements the reservation operations over a Store. Conflict
// checks and grants for a given project are additionally serialized by an
// in-process advisory lock (projectLocks), so "check all paths, then
// insert" never races within one process even though the store-level
// transaction already guards cross-process correctness (spec §5).
type Engine struct {
	store             *store.Store
	bus               *eventbus.Bus
	forceReleaseGrace time.Duration
}

func New(s *store.Store, bus *eventbus.Bus, forceReleaseGrace time.Duration) *Engine {
	if forceReleaseGrace <= 0 {
		forceReleaseGrace = DefaultForceReleaseGrace
	}
	return &Engine{store: s, bus: bus, forceReleaseGrace: forceReleaseGrace}
}

var (
	projectLocksMu sync.Mutex
	projectLocks   = map[int64]*sync.Mutex{}
)

func lockFor(projectID int64) *sync.Mutex {
	projectLocksMu.Lock()
	defer projectLocksMu.Unlock()
	l, ok := projectLocks[projectID]
	if !ok {
		l = &sync.Mutex{}
		projectLocks[projectID] = l
	}
	return l
}

// GrantedPath describes one path covered by a successful grant.
type GrantedPath struct {
	ReservationID int64    `json:"reservation_id"`
	Paths         []string `json:"paths"`
	ExpiresAtMs   int64    `json:"expires_at_ms"`
}

// Conflict describes one blocking reservation surfaced in
// FileReservationConflict's details.
type Conflict struct {
	Path        string `json:"path"`
	Holder      string `json:"holder"`
	Mode        string `json:"mode"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// FileReservationPaths grants an exclusive or shared claim over all of
// paths, or fails atomically if any path conflicts (spec §4.6).
func (e *Engine) FileReservationPaths(ctx context.Context, projectKey, agentName string, paths []string, ttlSeconds int64, exclusive bool, reason string) (*GrantedPath, error) {
	canon := canonicalizePaths(paths)
	if len(canon) == 0 {
		return nil, errs.New(errs.InvalidArgument, "at least one path is required")
	}
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

	var result GrantedPath
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

		mode := model.ModeShared
		if exclusive {
			mode = model.ModeExclusive
		}

		conflicts, err := findConflicts(tx, project.ID, canon, mode, now)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return errs.New(errs.FileReservationConflict, "one or more paths are already reserved").
				WithDetails(map[string]any{"conflicts": conflicts})
		}

		expiresAt := now + ttlSeconds*1000
		res := model.FileReservation{
			ProjectID:     project.ID,
			HolderAgentID: agent.ID,
			Mode:          mode,
			Reason:        reason,
			CreatedAtMs:   now,
			ExpiresAtMs:   expiresAt,
		}
		if err := tx.Create(&res).Error; err != nil {
			return err
		}
		for _, p := range canon {
			if err := tx.Create(&model.FileReservationPath{ReservationID: res.ID, Path: p}).Error; err != nil {
				return err
			}
		}

		result = GrantedPath{ReservationID: res.ID, Paths: canon, ExpiresAtMs: expiresAt}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reservation: file_reservation_paths: %w", err)
	}

	now := e.store.Clock().NowMillis()
	for _, res := range expired {
		e.bus.PublishAt(eventbus.TopicReservationExpired, project.ID, now, map[string]any{
			"reservation_id": res.ID,
		})
	}
	e.bus.PublishAt(eventbus.TopicReservationGranted, project.ID, now, map[string]any{
		"reservation_id": result.ReservationID,
		"agent":          agentName,
		"paths":          result.Paths,
		"exclusive":      exclusive,
	})
	return &result, nil
}

// findConflicts returns, for every active reservation overlapping any of
// paths where at least one side is exclusive, a Conflict entry.
func findConflicts(tx *gorm.DB, projectID int64, paths []string, mode model.ReservationMode, now int64) ([]Conflict, error) {
	type row struct {
		Path        string
		Holder      string
		Mode        model.ReservationMode
		ExpiresAtMs int64
	}
	var rows []row
	err := tx.Table("file_reservation_paths AS frp").
		Joins("JOIN file_reservations AS fr ON fr.id = frp.reservation_id").
		Joins("JOIN agents AS a ON a.id = fr.holder_agent_id").
		Where("fr.project_id = ? AND fr.released_at_ms IS NULL AND fr.expires_at_ms > ? AND frp.path IN ?", projectID, now, paths).
		Select("frp.path AS path, a.name AS holder, fr.mode AS mode, fr.expires_at_ms AS expires_at_ms").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, r := range rows {
		if mode == model.ModeExclusive || r.Mode == model.ModeExclusive {
			conflicts = append(conflicts, Conflict{Path: r.Path, Holder: r.Holder, Mode: string(r.Mode), ExpiresAtMs: r.ExpiresAtMs})
		}
	}
	return conflicts, nil
}

// expirePassively marks any reservation whose expiry has passed as
// released, before conflict evaluation or listing (spec §4.6 "Passive
// expiry"), returning the reservations it just expired so the caller can
// publish reservation.expired once the transaction commits.
func expirePassively(tx *gorm.DB, projectID int64, now int64) ([]model.FileReservation, error) {
	var expiring []model.FileReservation
	if err := tx.Where("project_id = ? AND released_at_ms IS NULL AND expires_at_ms <= ?", projectID, now).
		Find(&expiring).Error; err != nil {
		return nil, err
	}
	if len(expiring) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(expiring))
	for i, r := range expiring {
		ids[i] = r.ID
	}
	if err := tx.Model(&model.FileReservation{}).Where("id IN ?", ids).
		Update("released_at_ms", now).Error; err != nil {
		return nil, err
	}
	return expiring, nil
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

// touchLastSeen records agentID's write activity (spec §3: last-seen is
// "updated implicitly by send/read activity"), so force_release's grace
// window is anchored to real activity rather than the agent's registration
// time.
func touchLastSeen(tx *gorm.DB, agentID, nowMs int64) error {
	return tx.Model(&model.Agent{}).Where("id = ?", agentID).Update("last_seen_at_ms", nowMs).Error
}

func (e *Engine) requireAgentTx(tx *gorm.DB, projectID int64, name string) (*model.Agent, error) {
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
