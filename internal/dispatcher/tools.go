package dispatcher

import (
	"context"
	"time"

	"github.com/agentmaild/agentmail/internal/ack"
	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/mail"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/reservation"
	"github.com/agentmaild/agentmail/internal/store/model"
)

// Deps bundles the engines the dispatcher wires into tool handlers. Every
// field is required; Build panics if one is nil since that indicates a
// wiring bug at startup, not a runtime condition.
type Deps struct {
	Registry    *registry.Registry
	Contacts    *contacts.Graph
	Mail        *mail.Engine
	Ack         *ack.Engine
	Reservation *reservation.Engine
}

// Build constructs a Dispatcher with every spec §4 tool registered against
// deps, per the C7 responsibilities in spec §4.7.
func Build(deps Deps, opts ...Option) *Dispatcher {
	if deps.Registry == nil || deps.Contacts == nil || deps.Mail == nil || deps.Ack == nil || deps.Reservation == nil {
		panic("dispatcher: Build called with a nil engine dependency")
	}
	d := New(opts...)
	registerIdentityTools(d, deps)
	registerContactTools(d, deps)
	registerMailTools(d, deps)
	registerAckTools(d, deps)
	registerReservationTools(d, deps)
	return d
}

// --- C2: Identity & Project Registry -------------------------------------

type projectView struct {
	ID          int64  `json:"id"`
	HumanKey    string `json:"human_key"`
	DisplayName string `json:"display_name"`
	IsIdentity  bool   `json:"is_identity"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

func newProjectView(p *model.Project) projectView {
	return projectView{ID: p.ID, HumanKey: p.HumanKey, DisplayName: p.DisplayName, IsIdentity: p.IsIdentity, CreatedAtMs: p.CreatedAtMs}
}

type agentView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Program         string `json:"program"`
	Model           string `json:"model"`
	TaskDescription string `json:"task_description,omitempty"`
	ContactPolicy   string `json:"contact_policy"`
	CreatedAtMs     int64  `json:"created_at_ms"`
	LastSeenAtMs    int64  `json:"last_seen_at_ms"`
}

func newAgentView(a *model.Agent) agentView {
	return agentView{
		ID: a.ID, Name: a.Name, Program: a.Program, Model: a.Model,
		TaskDescription: a.TaskDescription, ContactPolicy: string(a.ContactPolicy),
		CreatedAtMs: a.CreatedAtMs, LastSeenAtMs: a.LastSeenAtMs,
	}
}

func registerIdentityTools(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "ensure_project",
		Description: "Create a project by human key if absent, otherwise return the existing one.",
		InputSchema: objectSchema(map[string]any{"human_key": stringProp("opaque project key, path-like")}, "human_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				HumanKey string `json:"human_key"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			p, err := deps.Registry.EnsureProject(ctx, in.HumanKey)
			if err != nil {
				return nil, err
			}
			return newProjectView(p), nil
		},
	})

	d.Register(ToolSpec{
		Name:        "register_agent",
		Description: "Register an agent in a project, allocating a lexicon name if none is given.",
		InputSchema: objectSchema(map[string]any{
			"project_key":      stringProp("project human key"),
			"program":          stringProp("calling program identifier"),
			"model":            stringProp("model identifier"),
			"name":             stringProp("explicit agent name, optional"),
			"task_description": stringProp("optional task description"),
		}, "project_key", "program", "model"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey      string `json:"project_key"`
				Program         string `json:"program"`
				Model           string `json:"model"`
				Name            string `json:"name"`
				TaskDescription string `json:"task_description"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			a, err := deps.Registry.RegisterAgent(ctx, registry.RegisterAgentInput{
				ProjectKey: in.ProjectKey, Program: in.Program, Model: in.Model,
				Name: in.Name, TaskDescription: in.TaskDescription,
			})
			if err != nil {
				return nil, err
			}
			return newAgentView(a), nil
		},
	})

	d.Register(ToolSpec{
		Name:        "whois",
		Description: "Resolve an agent by name within a project.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("agent name"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			a, err := deps.Registry.Whois(ctx, in.ProjectKey, in.AgentName)
			if err != nil {
				return nil, err
			}
			return newAgentView(a), nil
		},
	})

	d.Register(ToolSpec{
		Name:        "list_agents",
		Description: "List a project's agents ordered by creation time ascending.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"cursor_ms":   intProp("pagination cursor: creation time of the last seen row"),
			"limit":       intProp("max rows to return, default 100"),
		}, "project_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				CursorMs   int64  `json:"cursor_ms"`
				Limit      int    `json:"limit"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			agents, err := deps.Registry.ListAgents(ctx, in.ProjectKey, in.CursorMs, in.Limit)
			if err != nil {
				return nil, err
			}
			views := make([]agentView, 0, len(agents))
			for i := range agents {
				views = append(views, newAgentView(&agents[i]))
			}
			return views, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "mark_identity",
		Description: "Flag a project as the self-identity project for this host.",
		InputSchema: objectSchema(map[string]any{"project_key": stringProp("project human key")}, "project_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			p, err := deps.Registry.MarkIdentity(ctx, in.ProjectKey)
			if err != nil {
				return nil, err
			}
			return newProjectView(p), nil
		},
	})
}

// --- C3: Contact Graph ----------------------------------------------------

type contactEdgeView struct {
	ID            int64  `json:"id"`
	FromAgentID   int64  `json:"from_agent_id"`
	ToAgentID     int64  `json:"to_agent_id"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
	CreatedAtMs   int64  `json:"created_at_ms"`
	RespondedAtMs *int64 `json:"responded_at_ms,omitempty"`
}

func newContactEdgeView(e *model.ContactEdge) contactEdgeView {
	return contactEdgeView{
		ID: e.ID, FromAgentID: e.FromAgentID, ToAgentID: e.ToAgentID, State: string(e.State),
		Reason: e.Reason, CreatedAtMs: e.CreatedAtMs, RespondedAtMs: e.RespondedAtMs,
	}
}

func registerContactTools(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "set_contact_policy",
		Description: "Set an agent's default acceptance mode for inbound contact edges.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("agent name"),
			"policy":      stringProp("one of open, request, closed"),
		}, "project_key", "agent_name", "policy"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
				Policy     string `json:"policy"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			project, err := deps.Registry.ProjectByKey(ctx, in.ProjectKey)
			if err != nil {
				return nil, err
			}
			policy := model.ContactPolicy(in.Policy)
			switch policy {
			case model.PolicyOpen, model.PolicyRequest, model.PolicyClosed:
			default:
				return nil, errs.Newf(errs.InvalidArgument, "invalid policy %q", in.Policy)
			}
			if err := deps.Contacts.SetContactPolicy(ctx, project.ID, in.AgentName, policy); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "request_contact",
		Description: "Request a directed contact approval edge between two agents.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"from_agent":  stringProp("requesting agent name"),
			"to_agent":    stringProp("target agent name"),
			"reason":      stringProp("optional reason"),
		}, "project_key", "from_agent", "to_agent"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				FromAgent  string `json:"from_agent"`
				ToAgent    string `json:"to_agent"`
				Reason     string `json:"reason"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			project, err := deps.Registry.ProjectByKey(ctx, in.ProjectKey)
			if err != nil {
				return nil, err
			}
			edge, err := deps.Contacts.RequestContact(ctx, project.ID, in.FromAgent, in.ToAgent, in.Reason)
			if err != nil {
				return nil, err
			}
			return newContactEdgeView(edge), nil
		},
	})

	d.Register(ToolSpec{
		Name:        "respond_contact",
		Description: "Accept or decline a pending contact request addressed to the caller.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"to_agent":    stringProp("responding agent name, must be the edge's recipient"),
			"from_agent":  stringProp("requesting agent name"),
			"accept":      boolProp("true to approve, false to decline"),
		}, "project_key", "to_agent", "from_agent", "accept"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				ToAgent    string `json:"to_agent"`
				FromAgent  string `json:"from_agent"`
				Accept     bool   `json:"accept"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			project, err := deps.Registry.ProjectByKey(ctx, in.ProjectKey)
			if err != nil {
				return nil, err
			}
			edge, err := deps.Contacts.RespondContact(ctx, project.ID, in.ToAgent, in.FromAgent, in.Accept)
			if err != nil {
				return nil, err
			}
			return newContactEdgeView(edge), nil
		},
	})

	d.Register(ToolSpec{
		Name:        "list_contacts",
		Description: "List both directions of an agent's contact edges with their states.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("agent name"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			project, err := deps.Registry.ProjectByKey(ctx, in.ProjectKey)
			if err != nil {
				return nil, err
			}
			edges, err := deps.Contacts.ListContacts(ctx, project.ID, in.AgentName)
			if err != nil {
				return nil, err
			}
			views := make([]contactEdgeView, 0, len(edges))
			for i := range edges {
				views = append(views, newContactEdgeView(&edges[i]))
			}
			return views, nil
		},
	})
}

// --- C4: Mail Engine --------------------------------------------------------

func registerMailTools(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "send_message",
		Description: "Send a message to one or more agents, gated by the contact graph.",
		InputSchema: objectSchema(map[string]any{
			"project_key":     stringProp("project human key"),
			"sender_name":     stringProp("sender agent name"),
			"to":              stringArrayProp("recipient agent names"),
			"subject":         stringProp("message subject"),
			"body_md":         stringProp("message body, markdown"),
			"thread_id":       stringProp("optional caller-supplied external thread id"),
			"importance":      stringProp("one of low, normal, high; default normal"),
			"ack_required":    boolProp("whether recipients must acknowledge"),
			"ack_deadline_ms": intProp("ack deadline in epoch ms, optional"),
		}, "project_key", "sender_name", "to", "subject", "body_md"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey    string   `json:"project_key"`
				SenderName    string   `json:"sender_name"`
				To            []string `json:"to"`
				Subject       string   `json:"subject"`
				BodyMD        string   `json:"body_md"`
				ThreadID      string   `json:"thread_id"`
				Importance    string   `json:"importance"`
				AckRequired   bool     `json:"ack_required"`
				AckDeadlineMs int64    `json:"ack_deadline_ms"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			env, err := deps.Mail.Send(ctx, mail.SendInput{
				ProjectKey: in.ProjectKey, SenderName: in.SenderName, To: in.To,
				Subject: in.Subject, BodyMD: in.BodyMD, ThreadID: in.ThreadID,
				Importance: model.Importance(in.Importance), AckRequired: in.AckRequired,
				AckDeadlineMs: in.AckDeadlineMs,
			})
			if err != nil {
				return nil, err
			}
			return env, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "fetch_inbox",
		Description: "List an agent's deliveries ordered by message creation time descending.",
		InputSchema: objectSchema(map[string]any{
			"project_key":    stringProp("project human key"),
			"agent_name":     stringProp("agent name"),
			"limit":          intProp("max rows, default 50"),
			"before_ms":      intProp("pagination cursor"),
			"include_bodies": boolProp("join and return message bodies"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey    string `json:"project_key"`
				AgentName     string `json:"agent_name"`
				Limit         int    `json:"limit"`
				BeforeMs      int64  `json:"before_ms"`
				IncludeBodies bool   `json:"include_bodies"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			entries, err := deps.Mail.FetchInbox(ctx, in.ProjectKey, in.AgentName, in.Limit, in.BeforeMs, in.IncludeBodies)
			if err != nil {
				return nil, err
			}
			return entries, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "search_messages",
		Description: "Full-text search over message subject and body, scoped to a project.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"query":       stringProp("FTS5 match query"),
			"limit":       intProp("max rows, default 25"),
		}, "project_key", "query"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				Query      string `json:"query"`
				Limit      int    `json:"limit"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			results, err := deps.Mail.SearchMessages(ctx, in.ProjectKey, in.Query, in.Limit)
			if err != nil {
				return nil, err
			}
			return results, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "acknowledge_message",
		Description: "Acknowledge a delivered message; idempotent.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("recipient agent name"),
			"message_id":  intProp("message row id"),
			"note":        stringProp("optional acknowledgement note"),
		}, "project_key", "agent_name", "message_id"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
				MessageID  int64  `json:"message_id"`
				Note       string `json:"note"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			if err := deps.Mail.AcknowledgeMessage(ctx, in.ProjectKey, in.AgentName, in.MessageID, in.Note); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "mark_read",
		Description: "Mark deliveries as read; no effect on already-acknowledged deliveries.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("recipient agent name"),
			"message_ids": intArrayProp("message row ids to mark read"),
		}, "project_key", "agent_name", "message_ids"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string  `json:"project_key"`
				AgentName  string  `json:"agent_name"`
				MessageIDs []int64 `json:"message_ids"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			if err := deps.Mail.MarkRead(ctx, in.ProjectKey, in.AgentName, in.MessageIDs); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		},
	})
}

// --- C5: Acknowledgement Engine --------------------------------------------

func registerAckTools(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "acks_pending",
		Description: "List an agent's pending acknowledgement obligations.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("recipient agent name"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Ack.AcksPending(ctx, in.ProjectKey, in.AgentName)
		},
	})

	d.Register(ToolSpec{
		Name:        "acks_overdue",
		Description: "List (and flip to overdue) an agent's acknowledgements past deadline.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("recipient agent name"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Ack.AcksOverdue(ctx, in.ProjectKey, in.AgentName)
		},
	})
}

// --- C6: Reservation Engine --------------------------------------------------

func registerReservationTools(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "file_reservation_paths",
		Description: "Grant an exclusive or shared, time-bounded claim over one or more paths.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("claiming agent name"),
			"paths":       stringArrayProp("paths to claim"),
			"ttl_seconds": intProp("seconds until the claim expires"),
			"exclusive":   boolProp("true for exclusive, false for shared"),
			"reason":      stringProp("optional reason"),
		}, "project_key", "agent_name", "paths", "ttl_seconds", "exclusive"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string   `json:"project_key"`
				AgentName  string   `json:"agent_name"`
				Paths      []string `json:"paths"`
				TTLSeconds int64    `json:"ttl_seconds"`
				Exclusive  bool     `json:"exclusive"`
				Reason     string   `json:"reason"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Reservation.FileReservationPaths(ctx, in.ProjectKey, in.AgentName, in.Paths, in.TTLSeconds, in.Exclusive, in.Reason)
		},
	})

	d.Register(ToolSpec{
		Name:        "renew_file_reservations",
		Description: "Extend expiry of all of the caller's active reservations.",
		InputSchema: objectSchema(map[string]any{
			"project_key": stringProp("project human key"),
			"agent_name":  stringProp("holder agent name"),
			"ttl_seconds": intProp("new seconds-from-now expiry"),
		}, "project_key", "agent_name", "ttl_seconds"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
				AgentName  string `json:"agent_name"`
				TTLSeconds int64  `json:"ttl_seconds"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Reservation.Renew(ctx, in.ProjectKey, in.AgentName, in.TTLSeconds)
		},
	})

	d.Register(ToolSpec{
		Name:        "release_file_reservations",
		Description: "Release one or all of the caller's active reservations.",
		InputSchema: objectSchema(map[string]any{
			"project_key":    stringProp("project human key"),
			"agent_name":     stringProp("holder agent name"),
			"reservation_id": intProp("specific reservation id, omit to release all"),
		}, "project_key", "agent_name"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey    string `json:"project_key"`
				AgentName     string `json:"agent_name"`
				ReservationID *int64 `json:"reservation_id"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			if err := deps.Reservation.Release(ctx, in.ProjectKey, in.AgentName, in.ReservationID); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "force_release_file_reservation",
		Description: "Administratively release a reservation, refused within the holder's activity grace window.",
		InputSchema: objectSchema(map[string]any{
			"project_key":            stringProp("project human key"),
			"agent_name":             stringProp("calling (administrative) agent name"),
			"file_reservation_id":    intProp("reservation row id to force-release"),
		}, "project_key", "agent_name", "file_reservation_id"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey        string `json:"project_key"`
				AgentName         string `json:"agent_name"`
				FileReservationID int64  `json:"file_reservation_id"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			if err := deps.Reservation.ForceRelease(ctx, in.ProjectKey, in.AgentName, in.FileReservationID); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		},
	})

	d.Register(ToolSpec{
		Name:        "list_file_reservations",
		Description: "List every reservation in a project, active or not.",
		InputSchema: objectSchema(map[string]any{"project_key": stringProp("project human key")}, "project_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Reservation.List(ctx, in.ProjectKey)
		},
	})

	d.Register(ToolSpec{
		Name:        "active_file_reservations",
		Description: "List a project's currently-active reservations.",
		InputSchema: objectSchema(map[string]any{"project_key": stringProp("project human key")}, "project_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey string `json:"project_key"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			return deps.Reservation.Active(ctx, in.ProjectKey)
		},
	})

	d.Register(ToolSpec{
		Name:        "soon_file_reservations",
		Description: "List a project's active reservations expiring within a window.",
		InputSchema: objectSchema(map[string]any{
			"project_key":      stringProp("project human key"),
			"window_seconds":   intProp("horizon in seconds from now, default 60"),
		}, "project_key"),
		Handler: func(ctx context.Context, call Call) (any, error) {
			var in struct {
				ProjectKey    string `json:"project_key"`
				WindowSeconds int64  `json:"window_seconds"`
			}
			if err := decodeArgs(call.Args, &in); err != nil {
				return nil, err
			}
			if in.WindowSeconds <= 0 {
				in.WindowSeconds = 60
			}
			return deps.Reservation.Soon(ctx, in.ProjectKey, time.Duration(in.WindowSeconds)*time.Second)
		},
	})
}
