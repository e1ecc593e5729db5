package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leafsii/rediskit/internal/config"
	"github.com/leafsii/rediskit/internal/log"
	"github.com/leafsii/rediskit/pkg/rediskit"
)

const Version = "0.3.0"

// session is the state shared by the subcommands of one invocation.
type session struct {
	client *rediskit.Client
	logger *zap.SugaredLogger
}

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:   "rediskit",
		Short: "Partitioned Redis key/value tool",
		Long: fmt.Sprintf(`rediskit (v%s)

Reads and writes values in the sixteen logical databases of a Redis server,
applying the per-database lifetimes from configuration.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: s.open,
	}

	root.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")
	root.PersistentFlags().Int("db", 0, "database used by commands (overrides redis.default_db)")

	root.AddCommand(
		getCmd(s),
		setCmd(s),
		delCmd(s),
		ttlCmd(s),
		expireCmd(s),
		lifetimesCmd(s),
		versionCmd(),
	)
	return root, s
}

// run executes root and releases the session on every exit path.
func run(root *cobra.Command, s *session) error {
	err := root.Execute()
	return errors.Join(err, s.close())
}

func (s *session) open(cmd *cobra.Command, _ []string) error {
	v := config.New()
	if err := v.BindPFlag("redis.default_db", cmd.Flags().Lookup("db")); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInto(v, path)
	if err != nil {
		return err
	}

	// Keep the terminal quiet unless a level is configured
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	s.logger, err = log.NewSugar(cfg.Env, level)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Connection().ConnectTimeout)
	defer cancel()

	s.client, err = rediskit.New(ctx, rediskit.Options{
		Conn:      cfg.Connection(),
		Lifetimes: cfg.Lifetimes(),
		DefaultDB: cfg.DefaultDB(),
		Logger:    s.logger,
	})
	return err
}

func (s *session) close() error {
	if s.logger != nil {
		defer s.logger.Sync()
	}
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rediskit",
		// No store connection is needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rediskit v%s\n", Version)
		},
	}
}
