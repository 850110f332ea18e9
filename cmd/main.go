package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/Jamolkhon5/pmagent/internal/ai/llm"
	agenthandler "github.com/Jamolkhon5/pmagent/internal/ai/project/handler"
	agentmodels "github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/prompts"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/service"
	"github.com/Jamolkhon5/pmagent/internal/config"
	"github.com/Jamolkhon5/pmagent/internal/handler"
	"github.com/Jamolkhon5/pmagent/internal/models"
	"github.com/Jamolkhon5/pmagent/internal/probe"
	"github.com/Jamolkhon5/pmagent/internal/repository"
	"github.com/Jamolkhon5/pmagent/internal/tokenizer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "pmagent",
		Short:        "Project management agent",
		Long:         "pmagent turns natural-language commands into project and task changes and reports team health.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "config", ".env", "path to env-format config file")

	root.AddCommand(
		newServeCmd(&envFile),
		newAskCmd(&envFile),
		newMigrateCmd(&envFile),
		newTeamCmd(&envFile),
	)
	return root
}

// app - зависимости процесса, общие для всех команд.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	repo   *repository.Repository
}

func setup(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.NewConfig(envFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)

	db, err := sqlx.ConnectContext(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// SQLite пишет в один поток
		db.SetMaxOpenConns(1)
	}

	repo, err := repository.NewRepository(db, cfg.ProjectCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db, repo: repo}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

func (a *app) assistant() (*service.ProjectAssistant, error) {
	opts := service.Options{
		PlanTemperature:      a.cfg.PlanTemperature,
		NarrationTemperature: a.cfg.NarrationTemperature,
		OverloadThreshold:    a.cfg.OverloadThreshold,
		PromptTokenBudget:    a.cfg.PromptTokenBudget,
		Status: agentmodels.AgentStatus{
			Enabled:  a.cfg.AgentEnabled(),
			Provider: a.cfg.LLMProvider,
			Model:    a.cfg.ModelName,
			Store:    a.cfg.DBDriver,
		},
	}

	var completer service.Completer
	if a.cfg.AgentEnabled() {
		provider, err := llm.NewProvider(a.cfg)
		if err != nil {
			return nil, err
		}
		completer = llm.NewClient(provider, llm.RetryFromConfig(a.cfg), a.logger, llm.WithSystemPrompt(prompts.SystemPersona))
	} else {
		a.logger.Warn("LLM_API_KEY is not set, agent commands that need the model will fail")
	}

	counter := tokenizer.ForModel(a.cfg.ModelName)
	if !counter.Precise() {
		a.logger.Info("tiktoken encoding unavailable, using heuristic token counts")
	}
	return service.NewProjectAssistant(completer, a.repo, counter, opts, a.logger), nil
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	assistant, err := a.assistant()
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(a.cfg)))

	handler.NewHandler(a.repo, a.logger).RegisterRoutes(r)
	agenthandler.NewProjectAssistantHandler(assistant, a.logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	health := probe.New(a.repo, 15*time.Second, a.logger)
	health.Register(grpcServer)
	go health.Run(ctx)

	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("grpc health listening", "addr", a.cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.HTTPAddr, "agent_enabled", a.cfg.AgentEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown server")
	case err = <-errCh:
		a.logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("http shutdown", "error", serr)
	}
	grpcServer.GracefulStop()
	a.logger.Info("server exiting")
	return err
}

// requestTimeout покрывает все попытки двух вызовов модели с паузами между ними.
func requestTimeout(cfg *config.Config) time.Duration {
	perCall := time.Duration(cfg.RetryAttempts)*cfg.LLMTimeout + time.Duration(cfg.RetryAttempts)*cfg.RetryMaxDelay
	return 2*perCall + 10*time.Second
}

func newAskCmd(envFile *string) *cobra.Command {
	var (
		projectID string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "ask <utterance>",
		Short: "Run a single command through the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			assistant, err := a.assistant()
			if err != nil {
				return err
			}
			resp := assistant.HandleMessage(cmd.Context(), models.AgentRequest{
				Utterance: strings.Join(args, " "),
				ProjectID: projectID,
			})
			if err := render(cmd.OutOrStdout(), resp, format); err != nil {
				return err
			}
			if !resp.Success {
				return errors.New(resp.Action + " failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "active project id")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			successColor.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", a.cfg.DBDriver)
			return nil
		},
	}
}

func newTeamCmd(envFile *string) *cobra.Command {
	team := &cobra.Command{
		Use:   "team",
		Short: "Manage team members",
	}

	var name, role, status string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a team member",
		RunE: func(cmd *cobra.Command, args []string) error {
			member := models.TeamMember{Name: strings.TrimSpace(name), Role: role}
			if member.Name == "" {
				return errors.New("--name is required")
			}
			s, ok := models.ParseMemberStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q, use online, busy or offline", status)
			}
			member.Status = s

			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.repo.CreateTeamMember(cmd.Context(), member)
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "added %s (%s) id=%s\n", created.Name, created.Initials(), created.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "member name")
	add.Flags().StringVar(&role, "role", "", "role or skill tag")
	add.Flags().StringVar(&status, "status", "online", "online, busy or offline")

	list := &cobra.Command{
		Use:   "list",
		Short: "List team members with active task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			members, err := a.repo.ListTeamMembers(cmd.Context())
			if err != nil {
				return err
			}
			renderTeam(cmd.OutOrStdout(), members)
			return nil
		},
	}

	team.AddCommand(add, list)
	return team
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
