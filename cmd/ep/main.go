package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"enviroplan/internal/app"
	"enviroplan/internal/authz"
	"enviroplan/internal/cloud"
	"enviroplan/internal/config"
	"enviroplan/internal/db"
	"enviroplan/internal/domain"
	"enviroplan/internal/engine"
	"enviroplan/internal/repo"
	"enviroplan/internal/report"
	"enviroplan/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ep",
	Short: "EnviroPlan CLI",
	Long: `EnviroPlan tracks daily field activities against a catalog of
operational processes and tasks. Activities move through planned,
executed, cancelled, and rescheduled; evidence uploads force executed
and open a pending audit; supervisors approve or flag the evidence.
The report command aggregates compliance per process and can ask the
configured AI model for an executive summary.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ENVIROPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "acting username")
	rootCmd.PersistentFlags().String("role", "admin", "acting role (admin|supervisor|operator)")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(cloudCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var siteID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default enviroplan.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(siteID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&siteID, "site", "main", "site identifier")
	return cmd
}

// --- activity ---

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "activity", Short: "Plan and track activities"}
	cmd.AddCommand(activityPlanCmd())
	cmd.AddCommand(activityListCmd())
	cmd.AddCommand(activityShowCmd())
	cmd.AddCommand(activityStatusCmd())
	cmd.AddCommand(activityEvidenceCmd())
	cmd.AddCommand(activityAuditCmd())
	cmd.AddCommand(activityDeleteCmd())
	return cmd
}

func activityPlanCmd() *cobra.Command {
	var opts engine.ActivityCreateOptions
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				a, err := e.CreateActivity(ctx, opts, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "activity date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.ProcessID, "process", "", "process id")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	cmd.Flags().StringVar(&opts.Resources, "resources", "", "resources description")
	cmd.Flags().IntVar(&opts.PersonCount, "people", 1, "number of people")
	cmd.Flags().StringVar(&opts.AssignedPersonnel, "personnel", "", "assigned personnel")
	return cmd
}

func activityListCmd() *cobra.Command {
	var date, processID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListActivities(ctx, activityFilters(date, processID, status))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Date", "Process", "Task", "Status", "Audit"})
				for _, a := range items {
					audit := ""
					if a.Audit != nil {
						audit = string(a.Audit.Status)
					}
					tw.AppendRow(table.Row{a.ID, a.Date, a.ProcessID, a.TaskID, a.Status, audit})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date filter")
	cmd.Flags().StringVar(&processID, "process", "", "process filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func activityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetActivity(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <planned|executed|cancelled|rescheduled>",
		Short: "Set execution status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				a, err := e.SetStatus(ctx, args[0], domain.ActivityStatus(args[1]), actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityEvidenceCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "evidence <id>",
		Short: "Record evidence, forcing executed status and a pending audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				payload = string(data)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				a, err := e.RecordEvidence(ctx, args[0], payload, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "evidence file to attach")
	return cmd
}

func activityAuditCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "audit <id> <approved|flagged|pending>",
		Short: "Submit an audit decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				a, err := e.SubmitAudit(ctx, args[0], domain.AuditStatus(args[1]), comment, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "audit comment")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				return e.DeleteActivity(ctx, args[0], actor)
			})
		},
	}
	return cmd
}

// --- catalog ---

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Manage the process/task catalog"}
	cmd.AddCommand(catalogShowCmd())
	cmd.AddCommand(catalogProcessCmd())
	cmd.AddCommand(catalogTaskCmd())
	cmd.AddCommand(catalogImportCmd())
	return cmd
}

func catalogShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show processes and tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				procs, err := e.Repo.ListProcesses(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := make([]map[string]any, 0, len(procs))
					for _, p := range procs {
						tasks, err := e.Repo.ListTasks(ctx, p.ID)
						if err != nil {
							return err
						}
						out = append(out, map[string]any{"id": p.ID, "name": p.Name, "tasks": tasks})
					}
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Process", "Name", "Task", "Task name"})
				for _, p := range procs {
					tasks, err := e.Repo.ListTasks(ctx, p.ID)
					if err != nil {
						return err
					}
					if len(tasks) == 0 {
						tw.AppendRow(table.Row{p.ID, p.Name, "", ""})
					}
					for _, t := range tasks {
						tw.AppendRow(table.Row{p.ID, p.Name, t.ID, t.Name})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func catalogProcessCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "process", Short: "Manage processes"}

	var id string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				p, err := e.AddProcess(ctx, id, args[0], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "process id (generated when empty)")

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				p, err := e.RenameProcess(ctx, args[0], args[1], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a process and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				return e.RemoveProcess(ctx, args[0], actor)
			})
		},
	}

	cmd.AddCommand(add, rename, remove)
	return cmd
}

func catalogTaskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}

	add := &cobra.Command{
		Use:   "add <process-id> <name>",
		Short: "Add a task to a process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				t, err := e.AddTask(ctx, args[0], args[1], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				return e.RemoveTask(ctx, args[0], actor)
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func catalogImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import process,task lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := actorFromFlags()
				if err != nil {
					return err
				}
				procs, tasks, err := e.BulkImportCatalog(ctx, string(data), actor)
				if err != nil {
					return err
				}
				fmt.Printf("imported %d processes, %d tasks\n", procs, tasks)
				return nil
			})
		},
	}
	return cmd
}

// --- report ---

func reportCmd() *cobra.Command {
	var date string
	var summary bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compliance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				activities, err := e.Repo.ListActivities(ctx, activityFilters(date, "", ""))
				if err != nil {
					return err
				}
				procs, err := e.Repo.ListProcesses(ctx)
				if err != nil {
					return err
				}
				stats := report.Compute(activities, procs)
				text := ""
				if summary {
					gen := generatorFromConfig(ctx, e.Config)
					text = report.Summarize(ctx, gen, stats, e.Logger)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"stats": stats, "summary": text})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Process", "Executed", "Total", "Rate"})
				for _, pr := range stats.PerProcess {
					tw.AppendRow(table.Row{pr.Name, pr.Executed, pr.Total, fmt.Sprintf("%.1f%%", pr.Rate)})
				}
				tw.Render()
				if stats.Total == 0 {
					fmt.Println("overall compliance: n/a (no activities)")
				} else {
					fmt.Printf("overall compliance: %.1f%% (%d/%d)\n", stats.Compliance, stats.Executed, stats.Total)
				}
				if text != "" {
					fmt.Println()
					fmt.Println(text)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date filter")
	cmd.Flags().BoolVar(&summary, "summary", false, "include AI executive summary")
	return cmd
}

func generatorFromConfig(ctx context.Context, cfg *config.Config) report.Generator {
	if cfg == nil || cfg.Report.APIKey == "" {
		return nil
	}
	gen, err := report.NewGenAIGenerator(ctx, cfg.Report.APIKey, cfg.Report.Model)
	if err != nil {
		return nil
	}
	return gen
}

// --- notifications ---

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Activity notifications"}

	var unread bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListNotifications(ctx, unread)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Activity", "Status", "When", "Read"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.ActivityName, n.Status, n.TS, n.Read})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread")

	read := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.MarkNotificationRead(ctx, args[0])
			})
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.MarkAllNotificationsRead(ctx)
			})
		},
	}

	cmd.AddCommand(list, read, readAll)
	return cmd
}

// --- log ---

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Change log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- cloud ---

func cloudCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cloud", Short: "Remote persistence"}
	cmd.AddCommand(cloudLoginCmd())
	cmd.AddCommand(cloudRegisterCmd())
	cmd.AddCommand(cloudPushCmd())
	cmd.AddCommand(cloudPullCmd())
	return cmd
}

func cloudClientFromConfig(cfg *config.Config) (*cloud.Client, error) {
	if cfg == nil || !cfg.CloudEnabled() {
		return nil, fmt.Errorf("cloud sync is not configured; set cloud.url and cloud.key in enviroplan.yml")
	}
	return cloud.New(cfg.Cloud.URL, cfg.Cloud.Key), nil
}

func cloudLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in against the remote service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				client, err := cloudClientFromConfig(e.Config)
				if err != nil {
					return err
				}
				session, err := client.SignIn(ctx, args[0], password)
				if err != nil {
					return err
				}
				return printJSONOrTable(session)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func cloudRegisterCmd() *cobra.Command {
	var password, displayName, role string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a user with the remote service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := authz.ParseRole(role); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				client, err := cloudClientFromConfig(e.Config)
				if err != nil {
					return err
				}
				session, err := client.SignUp(ctx, args[0], password, displayName, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(session)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "operator", "role to register with")
	return cmd
}

func cloudPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push pending local changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				client, err := cloudClientFromConfig(e.Config)
				if err != nil {
					return err
				}
				s := cloud.NewSyncer(e.DB, client, e.Logger)
				n, err := s.PushPending(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("pushed %d records\n", n)
				return nil
			})
		},
	}
	return cmd
}

func cloudPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull remote activities, overwriting local rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				client, err := cloudClientFromConfig(e.Config)
				if err != nil {
					return err
				}
				s := cloud.NewSyncer(e.DB, client, e.Logger)
				n, err := s.PullAll(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("pulled %d records\n", n)
				return nil
			})
		},
	}
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()
			conn, cfg, e, err := app.Bootstrap(cmd.Context(), workspace, logger)
			if err != nil {
				return err
			}
			defer conn.Close()
			secret := cfg.Auth.JWTSecret
			if secret == "" {
				secret = os.Getenv("ENVIROPLAN_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("jwt secret is required for bearer auth; set auth.jwt_secret or ENVIROPLAN_JWT_SECRET")
			}
			handler, err := server.New(server.Config{
				Engine:    e,
				BasePath:  basePath,
				Auth:      server.AuthConfig{JWTSecret: secret, Logger: logger},
				Generator: generatorFromConfig(cmd.Context(), cfg),
			})
			if err != nil {
				return err
			}
			if cfg.CloudEnabled() {
				syncer := cloud.NewSyncer(conn, cloud.New(cfg.Cloud.URL, cfg.Cloud.Key), logger)
				go syncer.Run(cmd.Context())
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving EnviroPlan API",
				zap.String("addr", addr),
				zap.String("base_path", basePath))
			fmt.Printf("Serving EnviroPlan API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	conn, _, e, err := app.Bootstrap(ctx, workspace, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func activityFilters(date, processID, status string) repo.ActivityFilters {
	return repo.ActivityFilters{Date: date, ProcessID: processID, Status: domain.ActivityStatus(status)}
}

func actorFromFlags() (engine.Actor, error) {
	role, err := authz.ParseRole(viper.GetString("role"))
	if err != nil {
		return engine.Actor{}, err
	}
	return engine.Actor{Name: viper.GetString("user"), Role: role}, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
