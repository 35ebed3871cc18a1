package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/sahara/internal/logger"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved matching sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent sessions of a user, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		userID, _ := cmd.Flags().GetString("user-id")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := withComponents(func(ctx context.Context, c *components) error {
			records, err := c.recorder.Recent(ctx, userID, limit)
			if err != nil {
				return err
			}
			return printJSON(records)
		}); err != nil {
			log.Fatal(err)
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print one session with its benefit interactions",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		if err := withComponents(func(ctx context.Context, c *components) error {
			record, err := c.recorder.Get(ctx, args[0])
			if err != nil {
				return err
			}
			interactions, err := c.recorder.Interactions(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"session": record, "interactions": interactions})
		}); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)

	sessionsListCmd.Flags().String("user-id", "", "user whose sessions to list")
	sessionsListCmd.Flags().Int("limit", 0, "number of sessions (default from sessions.recent-limit)")
	_ = sessionsListCmd.MarkFlagRequired("user-id")
}

func withComponents(fn func(ctx context.Context, c *components) error) error {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	if err := requirePersistentSessions(config); err != nil {
		return err
	}

	c, err := buildComponents(ctx, config, prometheus.NewRegistry(), logger)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	defer c.Close()

	return fn(ctx, c)
}

// requirePersistentSessions rejects the memory store: a fresh CLI process never sees
// sessions recorded by the server.
func requirePersistentSessions(config *Config) error {
	switch strings.ToLower(config.Sessions.Backend) {
	case "", backendMemory:
		return errors.New("sessions.backend is memory, saved sessions do not outlive the process; configure redis or sqlite")
	}
	return nil
}
