package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/api"
	configx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/config"
	logx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/logger"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/repl"
)

const version = "dev"

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "apple-agent",
		Short: "Apple customer-support assistant",
		Long: `Routes Apple customer questions to a support tool, a product tool
or a polite decline, and answers from web search or built-in data.

Run without a subcommand for the interactive chat.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env when present)")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.assistant.HandleQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default APP_ADDR or :8000)")
	return cmd
}

func runChat(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := sessionx.New(uuid.NewString())
	ctx = observe.WithSessionID(ctx, sess.ID())
	return repl.Run(ctx, a.assistant, sess, os.Stdin, os.Stdout)
}

func runServe(ctx context.Context, addr string) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	httpCfg, err := configx.New[api.Config]("APP")
	if err != nil {
		return err
	}
	if addr != "" {
		httpCfg.Addr = addr
	}

	if mem, ok := a.sessions.(*sessionx.MemoryStore); ok {
		go sweepSessions(ctx, mem, a.cfg.SessionTTL)
	}

	printBanner()
	srv := api.NewServer(a.assistant, a.sessions, logx.Component("api"), *httpCfg)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func printBanner() {
	tpl := "{{ .Title \"Apple Agent\" \"\" 0 }}\nVersion: " + version + "  Go: {{ .GoVersion }}\n"
	banner.Init(os.Stderr, true, true, bytes.NewBufferString(tpl))
}
