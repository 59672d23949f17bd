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
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blinklabs-io/utxoorder/internal/config"
	"github.com/blinklabs-io/utxoorder/txsort"
	"github.com/blinklabs-io/utxoorder/utxoref"
	"github.com/spf13/cobra"
)

// errNotSorted is returned by the check command for non-canonical input
var errNotSorted = errors.New("refs are not in canonical order")

// readRefs parses refs from args, or from one ref per line of r when no args
// are given. Blank lines are skipped.
func readRefs(args []string, r io.Reader) ([]utxoref.Ref, error) {
	if len(args) > 0 {
		return utxoref.ParseAll(args)
	}
	var ret []utxoref.Ref
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ref, err := utxoref.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		ret = append(ret, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return ret, nil
}

func writeRefs(
	w io.Writer,
	refs []utxoref.Ref,
	format config.OutputFormat,
) error {
	switch format {
	case config.OutputFormatJson:
		if refs == nil {
			refs = []utxoref.Ref{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	case config.OutputFormatCbor:
		cborData, err := txsort.EncodeInputSet(refs)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, hex.EncodeToString(cborData))
		return err
	default:
		for _, ref := range refs {
			if _, err := fmt.Fprintln(w, ref.String()); err != nil {
				return err
			}
		}
		return nil
	}
}

func sortCommand() *cobra.Command {
	var dedup bool
	var output string
	cmd := &cobra.Command{
		Use:   "sort [ref...]",
		Short: "Print UTxO refs (<txid>#<index>) in canonical order",
		Long: "Print UTxO refs (<txid>#<index>) in canonical order. Refs are " +
			"read from the arguments, or one per line from stdin.",
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
			refs, err := readRefs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var sorted []utxoref.Ref
			if dedup {
				sorted = utxoref.Dedup(refs)
			} else {
				sorted = utxoref.Sorted(refs)
			}
			logger.Debug(
				fmt.Sprintf("sorted %d UTxO refs", len(sorted)),
				"component", programName,
			)
			return writeRefs(cmd.OutOrStdout(), sorted, format)
		},
	}
	cmd.Flags().BoolVar(&dedup, "dedup", false, "remove duplicate refs")
	cmd.Flags().
		StringVarP(&output, "output", "o", "", "output format: text, json, or cbor")
	return cmd
}

func checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [ref...]",
		Short: "Check that UTxO refs are in canonical order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := configFromCmd(cmd); err != nil {
				return err
			}
			commonRun()
			refs, err := readRefs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			for i := 1; i < len(refs); i++ {
				if utxoref.Compare(refs[i-1], refs[i]) > 0 {
					return fmt.Errorf(
						"%w: %s sorts before %s",
						errNotSorted,
						refs[i],
						refs[i-1],
					)
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "sorted")
			return err
		},
	}
	return cmd
}

func encodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [ref...]",
		Short: "Print the hex CBOR encoding of the canonical input set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := configFromCmd(cmd); err != nil {
				return err
			}
			commonRun()
			refs, err := readRefs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return writeRefs(cmd.OutOrStdout(), refs, config.OutputFormatCbor)
		},
	}
	return cmd
}
