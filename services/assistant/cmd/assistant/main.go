package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"receiptai/internal/util"
	"receiptai/services/assistant/internal/config"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		util.Fatal("assistant failed", "err", err)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Receipt chat assistant",
		Long:          "Upload receipt images for OCR and chat about your purchase history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "path to config.yaml")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newExtractCmd(&configPath),
		newAskCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(*configPath)
		},
	}
}

func newExtractCmd(configPath *string) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "extract [IMAGE]",
		Short: "OCR a receipt image and store it for a user",
		Example: `  assistant extract ./lunch.jpg --username alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], username)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "owner of the receipt (default \"default\")")
	return cmd
}

func newAskCmd(configPath *string) *cobra.Command {
	var username, session, model string
	cmd := &cobra.Command{
		Use:   "ask [MESSAGE]",
		Short: "Ask the assistant one question",
		Example: `  assistant ask "How much did I spend on coffee?" --username alice --model gpt-4o-mini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), *configPath, askOptions{
				message:  args[0],
				username: username,
				session:  session,
				model:    model,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "who is asking (default \"default\")")
	cmd.Flags().StringVar(&session, "session", "", "session id to continue")
	cmd.Flags().StringVar(&model, "model", "", "model name (defaults to defaultModel / OPENAI_MODEL)")
	return cmd
}
