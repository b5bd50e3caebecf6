package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/events"
	"github.com/smazurov/dropzone/internal/logging"
)

// CreateLogsCmd creates the logs command, which prints the log history
// buffered by a running `dropzone` server.
func CreateLogsCmd() *cobra.Command {
	var (
		serverURL, module, level string
		username, password       string
		limit                    int
		asJSON                   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent logs of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if module != "" {
				q.Set("module", module)
			}
			if level != "" {
				q.Set("level", level)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			endpoint := strings.TrimRight(serverURL, "/") + "/api/logs"
			if len(q) > 0 {
				endpoint += "?" + q.Encode()
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}
			if username != "" {
				req.SetBasicAuth(username, password)
			}
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch logs: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch logs: %s", resp.Status)
			}

			var body struct {
				Entries []events.LogEntryEvent `json:"entries"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode logs: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), body.Entries)
			}
			for _, e := range body.Entries {
				ts, _ := time.Parse(time.RFC3339Nano, e.Timestamp)
				fmt.Fprintln(cmd.OutOrStdout(), logging.FormatLogLine(logging.LogEntry{
					Seq:        e.Seq,
					Timestamp:  ts,
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				}))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://127.0.0.1:8090", "Base URL of the dropzone API")
	cmd.Flags().StringVar(&module, "module", "", "Only this logger module")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Newest N entries")
	cmd.Flags().StringVar(&username, "user", "", "Basic auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic auth password")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
