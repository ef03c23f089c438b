package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities in enrollment order",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesSimilarCmd = &cobra.Command{
	Use:   "similar NAME",
	Short: "Show the enrolled identities whose faces are closest to NAME",
	Long: `Show the enrolled identities whose faces are closest to NAME.

Pairs that are close together are likely to be confused at login; a
distance below the accept threshold means one person could log in as
the other.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentitiesSimilar,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesSimilarCmd)

	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")

	identitiesSimilarCmd.Flags().Int("limit", 5, "Maximum number of identities to show")
	identitiesSimilarCmd.Flags().Bool("exact", false, "Compare against every identity instead of using the HNSW index")
	identitiesSimilarCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentityInfo is one row of the identities list output.
type IdentityInfo struct {
	Name       string    `json:"name"`
	Dim        int       `json:"dim"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	st, err := openStores(ctx, config.Load())
	if err != nil {
		return err
	}
	defer st.Close()

	identities, err := st.identities.LookupAll(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	infos := make([]IdentityInfo, len(identities))
	for i, id := range identities {
		infos[i] = IdentityInfo{Name: id.Name, Dim: id.Dim(), EnrolledAt: id.EnrolledAt}
	}

	if jsonOutput {
		return outputJSON(infos)
	}

	if len(infos) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("  %-30s %4d-dim  %s\n", info.Name, info.Dim, info.EnrolledAt.Format(time.RFC3339))
	}
	fmt.Printf("\n%d identities\n", len(infos))
	return nil
}

// SimilarOutput is the JSON output of the similar command.
type SimilarOutput struct {
	Name      string            `json:"name"`
	Metric    facematch.Metric  `json:"metric"`
	Threshold float64           `json:"threshold"`
	Similar   []facematch.Match `json:"similar"`
}

// similarIdentities returns up to limit identities closest to name, excluding
// name itself. The exact mode scans the whole snapshot; otherwise the HNSW
// index answers.
func similarIdentities(identities []database.Identity, name string, metric facematch.Metric, limit int, exact bool) ([]facematch.Match, error) {
	if !exact {
		index := facematch.NewIndex(metric)
		index.Sync(identities)
		return index.Similar(name, limit)
	}

	i := slices.IndexFunc(identities, func(id database.Identity) bool {
		return database.EqualFold(id.Name, name)
	})
	if i < 0 {
		return nil, fmt.Errorf("identity %q not enrolled", name)
	}
	others := slices.Delete(slices.Clone(identities), i, i+1)
	return facematch.NewMatcher(metric).Nearest(identities[i].Embedding, others, limit), nil
}

func runIdentitiesSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	limit := mustGetInt(cmd, "limit")
	if limit <= 0 {
		return errors.New("--limit must be positive")
	}

	cfg := config.Load()
	metric, err := facematch.ParseMetric(cfg.Matcher.Metric)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	target, err := st.identities.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("looking up %q: %w", args[0], err)
	}
	if target == nil {
		return fmt.Errorf("identity %q is not enrolled", args[0])
	}

	identities, err := st.identities.LookupAll(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	matches, err := similarIdentities(identities, target.Name, metric, limit, mustGetBool(cmd, "exact"))
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(SimilarOutput{
			Name:      target.Name,
			Metric:    metric,
			Threshold: cfg.Matcher.AcceptThreshold,
			Similar:   matches,
		})
	}

	if len(matches) == 0 {
		fmt.Printf("No other identities enrolled\n")
		return nil
	}
	fmt.Printf("Closest to %s (%s distance, accept threshold %.2f):\n", target.Name, metric, cfg.Matcher.AcceptThreshold)
	for _, m := range matches {
		marker := ""
		if m.Distance < cfg.Matcher.AcceptThreshold {
			marker = "  <- would be accepted"
		}
		fmt.Printf("  %-30s %.4f%s\n", m.Name, m.Distance, marker)
	}
	return nil
}
