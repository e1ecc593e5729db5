package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
	"github.com/leafsii/rediskit/pkg/rediskit"
)

func getCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the string value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := rediskit.StringGet[any](cmd.Context(), s.client, args[0], partition.Default)
			if err != nil {
				return err
			}
			if value == nil {
				return fmt.Errorf("key %q not found in %s", args[0], s.client.DefaultDB())
			}
			return printJSON(cmd, value)
		},
	}
}

func setCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Writes a value with the lifetime of the selected database",
		Long: `Writes a value with the lifetime of the selected database.
Values that parse as JSON are stored as such, anything else as a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := parseValue(args[1])
			swap, _ := cmd.Flags().GetBool("swap")
			if swap {
				previous, err := rediskit.StringSetAndGet[any](cmd.Context(), s.client, args[0], value, partition.Default)
				if err != nil {
					return err
				}
				return printJSON(cmd, previous)
			}

			ok, err := s.client.StringSet(cmd.Context(), args[0], value, partition.Default)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written=%v\n", ok)
			return nil
		},
	}
	cmd.Flags().Bool("swap", false, "print the previous value")
	return cmd
}

func delCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := s.client.KeyDelete(cmd.Context(), args[0], partition.Default)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%v\n", ok)
			return nil
		},
	}
}

func ttlCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining lifetime of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := s.client.KeyTimeToLive(cmd.Context(), args[0], partition.Default)
			if err != nil {
				return err
			}
			if ttl == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no expiry")
				return nil
			}
			at, err := s.client.KeyExpireTime(cmd.Context(), args[0], partition.Default)
			if err != nil {
				return err
			}
			out := fmt.Sprintf("ttl=%s", lifetime.FormatLifetime(*ttl))
			if at != nil {
				out += " expires=" + at.UTC().Format(time.RFC3339)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func expireCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "expire [key] [lifetime]",
		Short: "Sets the expiration of a key",
		Long: `Sets the expiration of a key. The lifetime is either dd.hh:mm:ss
or a Go duration such as 90s.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := parseDuration(args[1])
			if err != nil {
				return err
			}
			ok, err := s.client.KeyExpire(cmd.Context(), args[0], ttl, partition.Default)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set=%v\n", ok)
			return nil
		},
	}
}

func lifetimesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "lifetimes",
		Short: "Prints the lifetime table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := s.client.Lifetimes()
			def := s.client.DefaultDB()
			for _, db := range partition.All() {
				i, _ := db.Index()
				marker := " "
				if db == def {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-4s %s\n", marker, db.Name(), lifetime.FormatLifetime(table[i]))
			}
			return nil
		},
	}
}

func parseValue(arg string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return arg
	}
	return v
}

func parseDuration(arg string) (time.Duration, error) {
	if d, err := lifetime.ParseLifetime(arg); err == nil {
		return d, nil
	}
	d, err := cast.ToDurationE(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime %q: %w", arg, err)
	}
	return d, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}
