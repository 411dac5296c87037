package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/groupbot-dev/groupbot/internal/api"
	"github.com/groupbot-dev/groupbot/internal/biz"
	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/conf"
	"github.com/groupbot-dev/groupbot/internal/data"
	"github.com/groupbot-dev/groupbot/internal/infra/feishu"
	"github.com/groupbot-dev/groupbot/internal/infra/wechat"
	"github.com/groupbot-dev/groupbot/internal/logging"
	"github.com/groupbot-dev/groupbot/internal/server"
	"github.com/groupbot-dev/groupbot/internal/service"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "groupbot",
	Short:         "Group chat assistant bot",
	Long:          `groupbot manages chat groups: it admits friends who know the group code, welcomes new members, answers FAQs and runs admin commands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and run the bot (default)",
	RunE:  runBot,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print a summary",
	RunE:  checkConfig,
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	rootCmd.AddCommand(runCmd, checkConfigCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*conf.Config, error) {
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func checkConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "platform:        %s\n", cfg.Platform)
	fmt.Fprintf(out, "admins:          %v\n", cfg.Bot.AdminIDs)
	fmt.Fprintf(out, "admin group:     %q\n", cfg.Bot.AdminGroup)
	fmt.Fprintf(out, "managed groups:  %v\n", cfg.Bot.ManagedGroups)
	fmt.Fprintf(out, "group code set:  %v\n", cfg.Invite.Code != "")
	fmt.Fprintf(out, "rate limit:      %d msgs / %ds\n", cfg.RateLimit.MaxMessages, cfg.RateLimit.PeriodSeconds)
	fmt.Fprintf(out, "keyword entries: %d\n", len(cfg.Tables.Keywords))
	fmt.Fprintf(out, "chatbot:         %v\n", cfg.Chatbot.APIKey != "")
	fmt.Fprintf(out, "session db:      %s\n", cfg.Session.DBPath)
	fmt.Fprintln(out, "config OK")
	return nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logging; warnings are forwarded to the primary admin once logged in
	baseLogger, logCloser, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	adminHook := logging.NewAdminHook(baseLogger)
	adminHook.Start()
	defer adminHook.Stop()
	logger := baseLogger.Hook(adminHook)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Session.DBPath, data.DefaultHistorySize, cfg.ToChatbotConfig())
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	logger.Info().Str("session_db", cfg.Session.DBPath).Msg("repositories ready")

	platform, err := newPlatform(cfg, repos, logger)
	if err != nil {
		return err
	}
	if err := platform.Login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	bc, err := buildContext(ctx, cfg, platform, repos, logger)
	if err != nil {
		return err
	}

	primary, _ := bc.UC.Auth.PrimaryAdmin()
	adminHook.SetSender(func(ctx context.Context, text string) error {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return platform.SendText(sendCtx, primary.ID, text)
	})

	// Initialize HTTP API server
	var apiServer *api.Server
	if cfg.API.Port > 0 {
		apiServer = api.NewServer(bc.UC.Status, bc.UC.Group, cfg.API.Port, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error: " + err.Error())
			}
		}()
	}

	reportTo := bc.AdminGroup.ID
	if reportTo == "" {
		reportTo = primary.ID
	}
	heartbeat := service.NewHeartbeat(platform, bc.UC.Status, reportTo, cfg.Admin.HeartbeatInterval, logger)
	srv := server.NewBotServer(bc, service.NewRouter(bc, service.NewRoutes(bc)), heartbeat, reportTo)

	err = srv.Start(ctx)

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apiServer.Stop(shutdownCtx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	logger.Info().Msg("shut down")
	return nil
}

func newPlatform(cfg *conf.Config, repos *data.Repositories, logger zerolog.Logger) (repo.PlatformRepo, error) {
	switch cfg.Platform {
	case conf.PlatformWeChat:
		storage := data.NewSessionStorage(repos.Login, conf.PlatformWeChat, cfg.Session.ToSessionConfig())
		return wechat.NewClient(storage, cfg.Bot.Name, logger), nil
	case conf.PlatformFeishu:
		return feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// buildContext resolves the configured identities and wires the usecases
func buildContext(ctx context.Context, cfg *conf.Config, platform repo.PlatformRepo, repos *data.Repositories, logger zerolog.Logger) (*service.Context, error) {
	self, err := platform.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("self: %w", err)
	}

	admins, err := resolveAdmins(ctx, platform, self, cfg.Bot.AdminIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve admins: %w", err)
	}

	managed, err := usecase.ResolveGroups(ctx, platform, cfg.Bot.ManagedGroups)
	if err != nil {
		return nil, fmt.Errorf("resolve managed groups: %w", err)
	}
	managedIDs := make([]string, len(managed))
	for i, g := range managed {
		managedIDs[i] = g.ID
	}

	var adminGroup domain.Group
	if cfg.Bot.AdminGroup != "" {
		groups, err := usecase.ResolveGroups(ctx, platform, []string{cfg.Bot.AdminGroup})
		if err != nil {
			return nil, fmt.Errorf("resolve admin group: %w", err)
		}
		adminGroup = groups[0]
	}

	// Initialize usecase layer
	authUC := usecase.NewAuthUsecase(self, admins)
	groupUC := usecase.NewGroupUsecase(platform, managedIDs)
	statusUC := usecase.NewStatusUsecase(repos.History)
	inviteUC := usecase.NewInviteUsecase(platform, groupUC, cfg.ToInviteConfig(), logger)

	deps := usecase.AdminDeps{
		Platform: platform,
		History:  repos.History,
		Groups:   groupUC,
		Invite:   inviteUC,
		Status:   statusUC,
		Restart:  restart,
	}

	uc := &biz.Usecases{
		Auth:      authUC,
		RateLimit: usecase.NewRateLimitUsecase(repos.History, cfg.ToRateLimitConfig()),
		Command: usecase.NewCommandUsecase(
			usecase.NewCommandTable(deps),
			usecase.NewAdminGrammar(deps),
			cfg.ToShellConfig(),
			logger,
		),
		Keyword:    usecase.NewKeywordUsecase(cfg.Tables.Keywords),
		Group:      groupUC,
		Invite:     inviteUC,
		Moderation: usecase.NewModerationUsecase(platform, authUC, groupUC, cfg.Tables.Welcome, logger),
		Filter:     usecase.NewFilterUsecase(),
		Chat:       usecase.NewChatUsecase(repos.Chat, self.Name),
		Status:     statusUC,
	}

	logger.Info().
		Str("self", self.Name).
		Int("admins", len(admins)).
		Int("managed_groups", len(managedIDs)).
		Str("admin_group", adminGroup.Name).
		Bool("chatbot", uc.Chat.IsEnabled()).
		Msg("bot configured")

	return &service.Context{
		Platform:   platform,
		History:    repos.History,
		UC:         uc,
		Self:       self,
		AdminGroup: adminGroup,
		Logger:     logger,
	}, nil
}

// resolveAdmins looks admins up among the bot's friends. Platforms without a
// friend list take the configured keys as user IDs.
func resolveAdmins(ctx context.Context, platform repo.PlatformRepo, self domain.User, keys []string) ([]domain.User, error) {
	friends, err := platform.Friends(ctx)
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		admins := make([]domain.User, len(keys))
		for i, key := range keys {
			admins[i] = domain.User{ID: key, Name: key}
		}
		return admins, nil
	}
	return usecase.ResolveUsers(append([]domain.User{self}, friends...), keys)
}

// restart replaces the process with a fresh copy of itself
func restart() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
