// Command am is the operator-facing client for the agentmail kernel: it
// wires the same engines as agentmaild in-process and drives them through
// the tool dispatcher directly, the way the teacher's cmd/agentflow folds
// server, migrate, and health commands into one CLI rather than shipping a
// separate client binary per concern.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentmaild/agentmail/internal/ack"
	"github.com/agentmaild/agentmail/internal/config"
	"github.com/agentmaild/agentmail/internal/contacts"
	"github.com/agentmaild/agentmail/internal/dispatcher"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/mail"
	"github.com/agentmaild/agentmail/internal/registry"
	"github.com/agentmaild/agentmail/internal/reservation"
	"github.com/agentmaild/agentmail/internal/store"
	"github.com/agentmaild/agentmail/internal/store/model"
	"github.com/agentmaild/agentmail/internal/transport"
)

// exit codes per the operator CLI contract: 0 success, 1 operational
// failure (a tool call returned an error envelope, or I/O failed), 2 usage
// error (bad flags, unknown subcommand).
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printTopUsage()
		return exitUsage
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "serve", "start":
		return cmdServe(rest)
	case "migrate":
		return cmdMigrate(rest)
	case "list-projects":
		return cmdListProjects(rest)
	case "agents":
		return cmdAgents(rest)
	case "mail":
		return cmdMail(rest)
	case "file_reservations":
		return cmdFileReservations(rest)
	case "acks":
		return cmdAcks(rest)
	case "guard":
		return cmdGuard(rest)
	case "doctor":
		return cmdDoctor(rest)
	case "config":
		return cmdConfig(rest)
	case "help", "-h", "--help":
		printTopUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "am: unknown command %q\n", cmd)
		printTopUsage()
		return exitUsage
	}
}

func printTopUsage() {
	fmt.Println(`Usage: am <command> [arguments]

Commands:
  serve, start                 Launch agentmaild in the foreground (exec's agentmaild)
  migrate                      Apply pending schema migrations
  list-projects                List every known project
  agents register|list         Manage agent registrations
  mail send|inbox|status|search  Send and inspect messages
  file_reservations list|active|soon  Inspect path claims
  acks pending|overdue          Inspect acknowledgement obligations
  guard status                  Show the liveness/fingerprint of a running kernel
  doctor check                  Run local environment diagnostics
  config show-port|set-port     Inspect or rewrite the configured HTTP port

Every subcommand except serve/start accepts --json to print the raw tool
envelope instead of a formatted table, and --config <path> to point at a
non-default config file; serve and start hand their arguments to
agentmaild serve, which takes only --config. Exit codes: 0 success, 1 operational failure, 2 usage error.`)
}

// --- shared plumbing -------------------------------------------------------

// kernel bundles everything needed to run a tool call in-process, wired
// identically to agentmaild's own startup but without opening a listener.
type kernel struct {
	cfg    *config.Config
	store  *store.Store
	bus    *eventbus.Bus
	d      *dispatcher.Dispatcher
	logger *zap.Logger
}

func openKernel(configPath string) (*kernel, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := config.NewLogger(cfg.Log)

	s, err := store.Open(store.Config{
		DatabaseURL:         cfg.DatabaseURL,
		MaxRetries:          cfg.DBMaxRetries,
		RetryBaseDelay:      cfg.DBRetryBaseDelay,
		PoolMaxOpenConns:    cfg.DBPoolMaxOpenConns,
		PoolMaxIdleConns:    cfg.DBPoolMaxIdleConns,
		PoolConnMaxLifetime: cfg.DBPoolConnMaxLifetime,
		PoolConnMaxIdleTime: cfg.DBPoolConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	bus := eventbus.New()

	reg, err := registry.New(s, nil)
	if err != nil {
		s.Close()
		bus.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}

	d := dispatcher.Build(dispatcher.Deps{
		Registry:    reg,
		Contacts:    contacts.New(s, bus),
		Mail:        mail.New(s, bus),
		Ack:         ack.New(s, bus),
		Reservation: reservation.New(s, bus, cfg.ReservationForceReleaseGrace),
	}, dispatcher.WithLogger(logger))

	return &kernel{cfg: cfg, store: s, bus: bus, d: d, logger: logger}, nil
}

func (k *kernel) close() {
	k.bus.Close()
	k.store.Close()
	k.logger.Sync()
}

// call runs one tool through the dispatcher and prints its envelope,
// returning the process exit code: 0 on success, 1 if the envelope
// reports an error.
func (k *kernel) call(tool string, args any, asJSON bool) int {
	payload, err := json.Marshal(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: encode arguments: %v\n", err)
		return exitFail
	}
	env := k.d.Call(context.Background(), tool, payload)
	return renderEnvelope(env, asJSON)
}

func renderEnvelope(env *dispatcher.Envelope, asJSON bool) int {
	if asJSON {
		out, _ := json.MarshalIndent(env, "", "  ")
		fmt.Println(string(out))
		if env.IsError {
			return exitFail
		}
		return exitOK
	}

	if env.IsError {
		fmt.Fprintf(os.Stderr, "am: %s: %s\n", env.Error.Code, env.Error.Message)
		switch env.Error.Code {
		case errs.Timeout, errs.StoreUnavailable, errs.RateLimited:
			fmt.Fprintln(os.Stderr, "am: this error is transient; retry the command")
		}
		return exitFail
	}
	for _, item := range env.Content {
		fmt.Println(item.Text)
	}
	return exitOK
}

// flagSet builds a FlagSet sharing the two flags every subcommand accepts.
func flagSet(name string) (*flag.FlagSet, *bool, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the raw tool envelope as JSON")
	configPath := fs.String("config", "", "path to a YAML config file")
	return fs, asJSON, configPath
}

// --- serve / migrate --------------------------------------------------------

// cmdServe execs agentmaild rather than duplicating its listener lifecycle
// here: the CLI and the daemon must share one process's worth of HTTP/stdio
// wiring, or two processes race to bind the same port.
func cmdServe(args []string) int {
	binary, err := exec.LookPath("agentmaild")
	if err != nil {
		fmt.Fprintln(os.Stderr, "am: agentmaild binary not found on PATH")
		return exitFail
	}
	cmd := exec.Command(binary, append([]string{"serve"}, args...)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	return exitOK
}

func cmdMigrate(args []string) int {
	fs, _, configPath := flagSet("migrate")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	fmt.Println("migrations applied")
	return exitOK
}

// --- list-projects -----------------------------------------------------------

func cmdListProjects(args []string) int {
	fs, asJSON, configPath := flagSet("list-projects")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	var projects []model.Project
	if err := k.store.DB().Order("created_at_ms asc").Find(&projects).Error; err != nil {
		fmt.Fprintf(os.Stderr, "am: list projects: %v\n", err)
		return exitFail
	}

	if *asJSON {
		out, _ := json.MarshalIndent(projects, "", "  ")
		fmt.Println(string(out))
		return exitOK
	}
	for _, p := range projects {
		identity := ""
		if p.IsIdentity {
			identity = " (identity)"
		}
		fmt.Printf("%-6d %-30s %s%s\n", p.ID, p.HumanKey, p.DisplayName, identity)
	}
	return exitOK
}

// --- agents -------------------------------------------------------------------

func cmdAgents(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "am: agents requires a subcommand: register, list")
		return exitUsage
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "register":
		return cmdAgentsRegister(rest)
	case "list":
		return cmdAgentsList(rest)
	default:
		fmt.Fprintf(os.Stderr, "am: unknown agents subcommand %q\n", sub)
		return exitUsage
	}
}

func cmdAgentsRegister(args []string) int {
	fs, asJSON, configPath := flagSet("agents register")
	projectKey := fs.String("project", "", "project human key")
	program := fs.String("program", "", "calling program identifier")
	model_ := fs.String("model", "", "model identifier")
	name := fs.String("name", "", "explicit agent name, optional")
	task := fs.String("task", "", "optional task description")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *program == "" || *model_ == "" {
		fmt.Fprintln(os.Stderr, "am: agents register requires --project, --program, and --model")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	return k.call("register_agent", map[string]any{
		"project_key":      *projectKey,
		"program":          *program,
		"model":            *model_,
		"name":             *name,
		"task_description": *task,
	}, *asJSON)
}

func cmdAgentsList(args []string) int {
	fs, asJSON, configPath := flagSet("agents list")
	projectKey := fs.String("project", "", "project human key")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" {
		fmt.Fprintln(os.Stderr, "am: agents list requires --project")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	return k.call("list_agents", map[string]any{"project_key": *projectKey}, *asJSON)
}

// --- mail ----------------------------------------------------------------

func cmdMail(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "am: mail requires a subcommand: send, inbox, status, search")
		return exitUsage
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "send":
		return cmdMailSend(rest)
	case "inbox":
		return cmdMailInbox(rest)
	case "status":
		return cmdMailStatus(rest)
	case "search":
		return cmdMailSearch(rest)
	default:
		fmt.Fprintf(os.Stderr, "am: unknown mail subcommand %q\n", sub)
		return exitUsage
	}
}

func cmdMailSend(args []string) int {
	fs, asJSON, configPath := flagSet("mail send")
	projectKey := fs.String("project", "", "project human key")
	from := fs.String("from", "", "sender agent name")
	to := fs.String("to", "", "comma-separated recipient agent names")
	subject := fs.String("subject", "", "message subject")
	body := fs.String("body", "", "message body, markdown")
	importance := fs.String("importance", "normal", "one of low, normal, high")
	ackRequired := fs.Bool("ack-required", false, "require recipient acknowledgement")
	ackDeadline := fs.Duration("ack-deadline", 0, "ack deadline, relative to now, e.g. 1h")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *from == "" || *to == "" || *subject == "" {
		fmt.Fprintln(os.Stderr, "am: mail send requires --project, --from, --to, and --subject")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	in := map[string]any{
		"project_key":  *projectKey,
		"sender_name":  *from,
		"to":           splitCSV(*to),
		"subject":      *subject,
		"body_md":      *body,
		"importance":   *importance,
		"ack_required": *ackRequired,
	}
	if *ackDeadline > 0 {
		in["ack_deadline_ms"] = time.Now().Add(*ackDeadline).UnixMilli()
	}
	return k.call("send_message", in, *asJSON)
}

func cmdMailInbox(args []string) int {
	fs, asJSON, configPath := flagSet("mail inbox")
	projectKey := fs.String("project", "", "project human key")
	agentName := fs.String("agent", "", "agent name")
	limit := fs.Int("limit", 50, "max rows")
	includeBodies := fs.Bool("bodies", false, "include message bodies")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *agentName == "" {
		fmt.Fprintln(os.Stderr, "am: mail inbox requires --project and --agent")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	return k.call("fetch_inbox", map[string]any{
		"project_key":    *projectKey,
		"agent_name":     *agentName,
		"limit":          *limit,
		"include_bodies": *includeBodies,
	}, *asJSON)
}

// cmdMailStatus has no dedicated tool of its own; it reuses fetch_inbox
// with a tight limit so "status" reads as a quick at-a-glance check
// rather than a full inbox dump.
func cmdMailStatus(args []string) int {
	fs, asJSON, configPath := flagSet("mail status")
	projectKey := fs.String("project", "", "project human key")
	agentName := fs.String("agent", "", "agent name")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *agentName == "" {
		fmt.Fprintln(os.Stderr, "am: mail status requires --project and --agent")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	return k.call("fetch_inbox", map[string]any{
		"project_key": *projectKey,
		"agent_name":  *agentName,
		"limit":       5,
	}, *asJSON)
}

func cmdMailSearch(args []string) int {
	fs, asJSON, configPath := flagSet("mail search")
	projectKey := fs.String("project", "", "project human key")
	query := fs.String("query", "", "FTS5 match query")
	limit := fs.Int("limit", 20, "max rows")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "am: mail search requires --project and --query")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	return k.call("search_messages", map[string]any{
		"project_key": *projectKey,
		"query":       *query,
		"limit":       *limit,
	}, *asJSON)
}

// --- file_reservations ------------------------------------------------------

func cmdFileReservations(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "am: file_reservations requires a subcommand: list, active, soon")
		return exitUsage
	}
	sub, rest := args[0], args[1:]

	fs, asJSON, configPath := flagSet("file_reservations " + sub)
	projectKey := fs.String("project", "", "project human key")
	window := fs.Duration("window", 60*time.Second, "horizon for 'soon', e.g. 90s")
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if *projectKey == "" {
		fmt.Fprintln(os.Stderr, "am: file_reservations requires --project")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	switch sub {
	case "list":
		return k.call("list_file_reservations", map[string]any{"project_key": *projectKey}, *asJSON)
	case "active":
		return k.call("active_file_reservations", map[string]any{"project_key": *projectKey}, *asJSON)
	case "soon":
		return k.call("soon_file_reservations", map[string]any{
			"project_key":    *projectKey,
			"window_seconds": int64(window.Seconds()),
		}, *asJSON)
	default:
		fmt.Fprintf(os.Stderr, "am: unknown file_reservations subcommand %q\n", sub)
		return exitUsage
	}
}

// --- acks ------------------------------------------------------------------

func cmdAcks(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "am: acks requires a subcommand: pending, overdue")
		return exitUsage
	}
	sub, rest := args[0], args[1:]

	fs, asJSON, configPath := flagSet("acks " + sub)
	projectKey := fs.String("project", "", "project human key")
	agentName := fs.String("agent", "", "recipient agent name")
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if *projectKey == "" || *agentName == "" {
		fmt.Fprintln(os.Stderr, "am: acks requires --project and --agent")
		return exitUsage
	}

	k, err := openKernel(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	defer k.close()

	in := map[string]any{"project_key": *projectKey, "agent_name": *agentName}
	switch sub {
	case "pending":
		return k.call("acks_pending", in, *asJSON)
	case "overdue":
		return k.call("acks_overdue", in, *asJSON)
	default:
		fmt.Fprintf(os.Stderr, "am: unknown acks subcommand %q\n", sub)
		return exitUsage
	}
}

// --- guard -------------------------------------------------------------------

// cmdGuard asks a running kernel's liveness endpoint for its fingerprint,
// the same check agentmaild itself runs before deciding whether a bound
// port belongs to an equivalent instance (spec §4.8, §9).
func cmdGuard(args []string) int {
	if len(args) == 0 || args[0] != "status" {
		fmt.Fprintln(os.Stderr, "am: guard requires a subcommand: status")
		return exitUsage
	}
	fs, asJSON, configPath := flagSet("guard status")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	cfg, err := loadConfigOnly(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	status, err := transport.CheckLiveness(addr, 3*time.Second)
	if err != nil {
		if *asJSON {
			out, _ := json.Marshal(map[string]string{"status": "unreachable", "addr": addr, "error": err.Error()})
			fmt.Println(string(out))
		} else {
			fmt.Printf("no agentmail kernel reachable at %s: %v\n", addr, err)
		}
		return exitFail
	}

	if *asJSON {
		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		return exitOK
	}
	fmt.Printf("agentmail kernel alive at %s (fingerprint %s)\n", addr, status.Fingerprint)
	return exitOK
}

// --- doctor ------------------------------------------------------------------

// cmdDoctor runs a handful of local checks a human is likely to reach for
// when something in the collaboration bus looks wrong: can the configured
// database be opened, does the storage root exist and is it writable, and
// does the configured HTTP port already answer.
func cmdDoctor(args []string) int {
	if len(args) == 0 || args[0] != "check" {
		fmt.Fprintln(os.Stderr, "am: doctor requires a subcommand: check")
		return exitUsage
	}
	fs, asJSON, configPath := flagSet("doctor check")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	cfg, err := loadConfigOnly(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}

	type checkResult struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Note string `json:"note,omitempty"`
	}
	var results []checkResult
	healthy := true

	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	if s, err := store.Open(store.Config{DatabaseURL: cfg.DatabaseURL, MaxRetries: 1, RetryBaseDelay: cfg.DBRetryBaseDelay}, logger); err != nil {
		results = append(results, checkResult{Name: "database", OK: false, Note: err.Error()})
		healthy = false
	} else {
		if err := s.Ping(context.Background()); err != nil {
			results = append(results, checkResult{Name: "database", OK: false, Note: err.Error()})
			healthy = false
		} else {
			results = append(results, checkResult{Name: "database", OK: true})
		}
		s.Close()
	}

	if info, err := os.Stat(cfg.StorageRoot); err != nil {
		results = append(results, checkResult{Name: "storage_root", OK: false, Note: err.Error()})
		healthy = false
	} else if !info.IsDir() {
		results = append(results, checkResult{Name: "storage_root", OK: false, Note: "exists but is not a directory"})
		healthy = false
	} else {
		results = append(results, checkResult{Name: "storage_root", OK: true})
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	if status, err := transport.CheckLiveness(addr, 2*time.Second); err != nil {
		results = append(results, checkResult{Name: "http_listener", OK: false, Note: "nothing reachable at " + addr})
	} else {
		results = append(results, checkResult{Name: "http_listener", OK: true, Note: "fingerprint " + status.Fingerprint})
	}

	if err := cfg.Validate(); err != nil {
		results = append(results, checkResult{Name: "config", OK: false, Note: err.Error()})
		healthy = false
	} else {
		results = append(results, checkResult{Name: "config", OK: true})
	}

	if *asJSON {
		out, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(out))
	} else {
		for _, r := range results {
			mark := "ok"
			if !r.OK {
				mark = "FAIL"
			}
			if r.Note != "" {
				fmt.Printf("%-16s %-4s %s\n", r.Name, mark, r.Note)
			} else {
				fmt.Printf("%-16s %-4s\n", r.Name, mark)
			}
		}
	}

	if !healthy {
		return exitFail
	}
	return exitOK
}

// --- config ------------------------------------------------------------------

func cmdConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "am: config requires a subcommand: show-port, set-port")
		return exitUsage
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "show-port":
		return cmdConfigShowPort(rest)
	case "set-port":
		return cmdConfigSetPort(rest)
	default:
		fmt.Fprintf(os.Stderr, "am: unknown config subcommand %q\n", sub)
		return exitUsage
	}
}

func cmdConfigShowPort(args []string) int {
	fs, asJSON, configPath := flagSet("config show-port")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfigOnly(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}

	if *asJSON {
		out, _ := json.Marshal(map[string]int{"http_port": cfg.HTTPPort})
		fmt.Println(string(out))
		return exitOK
	}
	fmt.Println(cfg.HTTPPort)
	return exitOK
}

// cmdConfigSetPort rewrites the http_port key of a YAML config file,
// creating the file with the rest of the defaults if it does not exist
// yet. It edits the file directly rather than going through a tool call,
// since port configuration is operator-side state, not kernel state.
func cmdConfigSetPort(args []string) int {
	fs := flag.NewFlagSet("config set-port", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (required)")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "am: config set-port requires exactly one argument: the new port number")
		return exitUsage
	}
	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "am: invalid port %q\n", fs.Arg(0))
		return exitUsage
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "am: config set-port requires --config")
		return exitUsage
	}

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "am: %v\n", err)
		return exitFail
	}
	cfg.HTTPPort = port

	if err := config.WriteFile(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "am: write config: %v\n", err)
		return exitFail
	}
	if *asJSON {
		out, _ := json.Marshal(map[string]any{"http_port": port, "config": *configPath})
		fmt.Println(string(out))
		return exitOK
	}
	fmt.Printf("http_port set to %d in %s\n", port, *configPath)
	return exitOK
}

// --- helpers -----------------------------------------------------------------

func loadConfigOnly(configPath string) (*config.Config, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	return loader.Load()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
