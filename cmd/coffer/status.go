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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/coffer/internal/config"
)

// apiURL builds the base URL of the local API from the config. A wildcard
// bind address is reached through loopback.
func apiURL(cfg *config.Config) string {
	host := cfg.BindAddr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(
		host,
		strconv.FormatUint(uint64(cfg.ApiPort), 10),
	)
}

func fetchJSON(url string, w io.Writer) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url) //nolint:noctx
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s: %s", url, resp.Status, bytes.TrimSpace(body))
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}

func statusCommand() *cobra.Command {
	var url string
	var discovery bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running vault",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configFromCommand(cmd)
			if url == "" {
				url = apiURL(cfg)
			}
			path := "/v1/status"
			if discovery {
				path = "/v1/discovery"
			}
			if err := fetchJSON(url+path, os.Stdout); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().
		StringVar(&url, "api", "", "base URL of the vault API (default from config)")
	cmd.Flags().
		BoolVar(&discovery, "discovery", false, "show the discovery record instead")
	return cmd
}
