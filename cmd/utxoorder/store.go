// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/utxoorder/database"
	"github.com/blinklabs-io/utxoorder/internal/config"
	"github.com/spf13/cobra"
)

func openStore(
	cfg *config.Config,
	logger *slog.Logger,
) (*database.Store, error) {
	opts := []database.StoreOptionFunc{
		database.WithLogger(logger),
		// No background GC for one-shot commands
		database.WithGc(false),
	}
	if !cfg.InMemory {
		opts = append(opts, database.WithDataDir(cfg.DatabasePath))
	}
	store, err := database.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

func storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the persistent UTxO ref store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add [ref...]",
			Short: "Add UTxO refs to the store",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := configFromCmd(cmd)
				if err != nil {
					return err
				}
				logger := commonRun()
				refs, err := readRefs(args, cmd.InOrStdin())
				if err != nil {
					return err
				}
				store, err := openStore(cfg, logger)
				if err != nil {
					return err
				}
				defer store.Close()
				added, err := store.Add(cmd.Context(), refs...)
				if err != nil {
					return err
				}
				logger.Info(
					fmt.Sprintf("added %d UTxO refs", added),
					"component", programName,
				)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove [ref...]",
			Short: "Remove UTxO refs from the store",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := configFromCmd(cmd)
				if err != nil {
					return err
				}
				logger := commonRun()
				refs, err := readRefs(args, cmd.InOrStdin())
				if err != nil {
					return err
				}
				store, err := openStore(cfg, logger)
				if err != nil {
					return err
				}
				defer store.Close()
				removed, err := store.Remove(cmd.Context(), refs...)
				if err != nil {
					return err
				}
				logger.Info(
					fmt.Sprintf("removed %d UTxO refs", removed),
					"component", programName,
				)
				return nil
			},
		},
		storeListCommand(),
	)
	return cmd
}

func storeListCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored UTxO refs in canonical order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCmd(cmd)
			if err != nil {
				return err
			}
			logger := commonRun()
			format := cfg.OutputFormat
			if output != "" {
				format = config.OutputFormat(output)
			}
			if !format.Valid() {
				return fmt.Errorf("invalid output format: %q", output)
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			refs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeRefs(cmd.OutOrStdout(), refs, format)
		},
	}
	cmd.Flags().
		StringVarP(&output, "output", "o", "", "output format: text, json, or cbor")
	return cmd
}
