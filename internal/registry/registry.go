// Package registry implements the Identity & Project Registry (spec §4.2):
// project creation, agent name allocation, and the single identity flag.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"gorm.io/gorm"
)

// Registry implements ensure_project, register_agent, whois, list_agents
// and mark_identity over a Store.
type Registry struct {
	store   *store.Store
	lexicon *Lexicon
}

// New builds a Registry; lexicon may be nil, in which case the embedded
// default word lists are loaded.
func New(s *store.Store, lexicon *Lexicon) (*Registry, error) {
	if lexicon == nil {
		var err error
		lexicon, err = LoadLexicon()
		if err != nil {
			return nil, err
		}
	}
	return &Registry{store: s, lexicon: lexicon}, nil
}

// EnsureProject returns the project for humanKey, creating it if absent.
// Idempotent: concurrent callers racing on a new humanKey converge on one
// row (spec R1).
func (r *Registry) EnsureProject(ctx context.Context, humanKey string) (*model.Project, error) {
	if strings.TrimSpace(humanKey) == "" {
		return nil, errs.New(errs.InvalidArgument, "human_key is required")
	}

	var project model.Project
	err := r.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		err := tx.Where("human_key = ?", humanKey).First(&project).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		project = model.Project{
			HumanKey:    humanKey,
			DisplayName: humanKey,
			CreatedAtMs: r.store.Clock().NowMillis(),
		}
		if createErr := tx.Create(&project).Error; createErr != nil {
			// Another transaction won the race on the unique human_key
			// index; re-read instead of surfacing a conflict to the caller.
			if isUniqueViolation(createErr) {
				return tx.Where("human_key = ?", humanKey).First(&project).Error
			}
			return createErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: ensure_project: %w", err)
	}
	return &project, nil
}

// RegisterAgentInput carries register_agent's arguments (spec §4.2).
type RegisterAgentInput struct {
	ProjectKey      string
	Program         string
	Model           string
	Name            string // optional; allocated when empty
	TaskDescription string
}

// RegisterAgent creates an agent record, allocating a name from the
// lexicon when one isn't supplied.
func (r *Registry) RegisterAgent(ctx context.Context, in RegisterAgentInput) (*model.Agent, error) {
	project, err := r.EnsureProject(ctx, in.ProjectKey)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		if err := validateAgentName(in.Name); err != nil {
			return nil, err
		}
		return r.insertAgent(ctx, project.ID, in, in.Name)
	}

	return r.allocateAgent(ctx, project.ID, in)
}

// insertAgent attempts a single-row claim of name within project. Returns
// AgentNameTaken if an un-tombstoned agent already holds the name.
func (r *Registry) insertAgent(ctx context.Context, projectID int64, in RegisterAgentInput, name string) (*model.Agent, error) {
	var agent model.Agent
	err := r.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var existing model.Agent
		err := tx.Where("project_id = ? AND name_lower = ? AND tombstoned_at_ms IS NULL", projectID, strings.ToLower(name)).
			First(&existing).Error
		if err == nil {
			return errs.Newf(errs.AgentNameTaken, "agent name %q is already in use", name)
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		now := r.store.Clock().NowMillis()
		agent = model.Agent{
			ProjectID:       projectID,
			Name:            name,
			NameLower:       strings.ToLower(name),
			Program:         in.Program,
			Model:           in.Model,
			TaskDescription: in.TaskDescription,
			ContactPolicy:   model.PolicyRequest,
			CreatedAtMs:     now,
			LastSeenAtMs:    now,
		}
		return tx.Create(&agent).Error
	})
	if err != nil {
		return nil, fmt.Errorf("registry: register_agent: %w", err)
	}
	return &agent, nil
}

// allocateAgent walks the lexicon from a start index of the project id plus
// the store clock's current millisecond reading modulo the lexicon size,
// trying at most Size consecutive pairs. Each candidate is claimed in its
// own WithTx by a select for a live agent with that lower-cased name
// followed by an insert; a unique-index violation on the insert counts as
// taken, so concurrent allocators need no shared lock.
func (r *Registry) allocateAgent(ctx context.Context, projectID int64, in RegisterAgentInput) (*model.Agent, error) {
	size := r.lexicon.Size()
	seed := int(projectID) + int(r.store.Clock().NowMillis()%int64(size))

	var agent model.Agent
	for attempt := 0; attempt < size; attempt++ {
		candidate := r.lexicon.At(seed + attempt)

		var claimed bool
		err := r.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
			var existing model.Agent
			err := tx.Where("project_id = ? AND name_lower = ? AND tombstoned_at_ms IS NULL", projectID, strings.ToLower(candidate)).
				First(&existing).Error
			if err == nil {
				return nil // taken, caller tries the next candidate
			}
			if err != gorm.ErrRecordNotFound {
				return err
			}

			now := r.store.Clock().NowMillis()
			agent = model.Agent{
				ProjectID:       projectID,
				Name:            candidate,
				NameLower:       strings.ToLower(candidate),
				Program:         in.Program,
				Model:           in.Model,
				TaskDescription: in.TaskDescription,
				ContactPolicy:   model.PolicyRequest,
				CreatedAtMs:     now,
				LastSeenAtMs:    now,
			}
			if err := tx.Create(&agent).Error; err != nil {
				if isUniqueViolation(err) {
					return nil // lost the race to a concurrent allocator
				}
				return err
			}
			claimed = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("registry: register_agent: %w", err)
		}
		if claimed {
			return &agent, nil
		}
	}
	return nil, errs.New(errs.InternalError, "lexicon exhausted: no free agent name pair")
}

// ProjectByKey looks up a project by its human key without creating it,
// for callers (like the dispatcher) that need a project id ahead of an
// operation that itself requires the project to already exist.
func (r *Registry) ProjectByKey(ctx context.Context, humanKey string) (*model.Project, error) {
	var project model.Project
	err := r.store.DB().WithContext(ctx).Where("human_key = ?", humanKey).First(&project).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.ProjectNotFound, "no project %q", humanKey)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: project_by_key: %w", err)
	}
	return &project, nil
}

// Whois resolves an agent by name within a project.
func (r *Registry) Whois(ctx context.Context, projectKey, agentName string) (*model.Agent, error) {
	project, err := r.EnsureProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	var agent model.Agent
	err = r.store.DB().WithContext(ctx).
		Where("project_id = ? AND name_lower = ?", project.ID, strings.ToLower(agentName)).
		First(&agent).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Newf(errs.AgentNotFound, "no agent named %q", agentName)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: whois: %w", err)
	}
	return &agent, nil
}

// ListAgents returns a project's agents ordered by creation time ascending,
// paged by cursor (an opaque creation timestamp) and limit.
func (r *Registry) ListAgents(ctx context.Context, projectKey string, cursorMs int64, limit int) ([]model.Agent, error) {
	project, err := r.EnsureProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var agents []model.Agent
	q := r.store.DB().WithContext(ctx).
		Where("project_id = ?", project.ID).
		Order("created_at_ms ASC, id ASC").
		Limit(limit)
	if cursorMs > 0 {
		q = q.Where("created_at_ms >= ?", cursorMs)
	}
	if err := q.Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("registry: list_agents: %w", err)
	}
	return agents, nil
}

// MarkIdentity flags projectKey as the host's self-identity project,
// clearing the flag on every other project in the same store so at most
// one project is ever flagged (spec §4.2).
func (r *Registry) MarkIdentity(ctx context.Context, projectKey string) (*model.Project, error) {
	project, err := r.EnsureProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	err = r.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Model(&model.Project{}).Where("id <> ?", project.ID).Update("is_identity", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).Where("id = ?", project.ID).Update("is_identity", true).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: mark_identity: %w", err)
	}
	project.IsIdentity = true
	return project, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}
