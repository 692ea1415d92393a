// Copyright 2026 Blink Labs Software
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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/coffer/database"
	"github.com/blinklabs-io/coffer/database/models"
	"github.com/blinklabs-io/coffer/internal/config"
)

func journalRun(cfg *config.Config, after uint64, count int, asJSON bool) error {
	metadata, err := database.OpenMetadata(cfg.DatabasePath, nil)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer metadata.Close()
	entries, err := metadata.GetJournal(after, count)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	}
	return writeJournal(os.Stdout, entries, cfg.Genesis.Decimals)
}

func writeJournal(w io.Writer, entries []models.JournalEntry, decimals int32) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tOPERATION\tCALLER\tCOUNTERPARTY\tAMOUNT\tDETAIL")
	for _, e := range entries {
		amount := decimal.NewFromBigInt(
			new(big.Int).SetUint64(e.Amount),
			-decimals,
		).StringFixed(decimals)
		fmt.Fprintf(
			tw,
			"%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Sequence,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Operation,
			e.Caller,
			e.Counterparty,
			amount,
			e.Detail,
		)
	}
	return tw.Flush()
}

func journalCommand() *cobra.Command {
	var after uint64
	var count int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List applied operations from the journal",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			if err := journalRun(cfg, after, count, asJSON); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		Uint64Var(&after, "after", 0, "only show entries after this sequence")
	cmd.Flags().
		IntVar(&count, "count", 100, "maximum number of entries, 0 for all")
	cmd.Flags().
		BoolVar(&asJSON, "json", false, "print one JSON object per line")
	return cmd
}
