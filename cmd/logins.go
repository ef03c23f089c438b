package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/spf13/cobra"
)

var loginsCmd = &cobra.Command{
	Use:   "logins",
	Short: "Show the recent successful logins, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLogins,
}

func init() {
	rootCmd.AddCommand(loginsCmd)

	loginsCmd.Flags().Int("limit", database.AuditLogCapacity, "Maximum number of entries to show")
	loginsCmd.Flags().Bool("json", false, "Output as JSON")
}

// LoginInfo is one row of the logins output.
type LoginInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

func runLogins(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	limit := mustGetInt(cmd, "limit")

	st, err := openStores(ctx, config.Load())
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.logins.Recent(ctx)
	if err != nil {
		return fmt.Errorf("reading login history: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	if jsonOutput {
		infos := make([]LoginInfo, len(entries))
		for i, e := range entries {
			infos[i] = LoginInfo{ID: e.ID, Name: e.Name, Timestamp: e.Timestamp}
		}
		return outputJSON(infos)
	}

	if len(entries) == 0 {
		fmt.Println("No logins recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("  %s  %-30s %s ago\n", e.Timestamp.Format(time.RFC3339), e.Name, formatDuration(time.Since(e.Timestamp)))
	}
	return nil
}
