package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/store"
)

// cacheBuckets hold re-fetchable data. Saved reports are not cache and are
// only cleared when named.
var cacheBuckets = []string{"series", "geocode"}

var bucketPurpose = map[string]string{
	"series":  "NASA POWER daily series (zstd)",
	"geocode": "place name → coordinates",
	"reports": "saved analyses",
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and trim the local NASA POWER and geocoding cache",
	Long: `atmosight keeps every fetched POWER series and every resolved place in a
local bbolt file so repeated analyses of the same place run offline.
Entries never expire; pass --refresh on a command to re-fetch one, or clear
buckets here.`,
}

// ─── cache stats ──────────────────────────────────────────────────────────────

var cacheStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show what the cache holds",
	Example: `  atmosight cache stats`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cache file: %s\n\n", deps.Store.Path())
		var rows int
		var size int64
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "HOLDS", "ENTRIES", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				rows += s.Count
				size += s.Bytes
				add(s.Name, bucketPurpose[s.Name], fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
			add("total", "", fmt.Sprintf("%d", rows), humanBytes(size))
		})
		return nil
	},
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var cacheClearAll bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear [BUCKET...]",
	Short: "Drop cached series, places or saved reports",
	Long: `Drop the named buckets, or with --all every cache bucket (series and
geocode). Saved reports survive --all; name "reports" to remove them too.

The file keeps its size until 'atmosight cache compact' runs.`,
	Example: `  atmosight cache clear --all
  atmosight cache clear series
  atmosight cache clear geocode reports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := clearTargets(args, cacheClearAll)
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		for _, name := range targets {
			if err := deps.Store.ClearBucket(name); err != nil {
				return fmt.Errorf("clearing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "  Run 'atmosight cache compact' to shrink the file.")
		return nil
	},
}

// clearTargets resolves the buckets a clear should drop, in AllBuckets order.
func clearTargets(args []string, all bool) ([]string, error) {
	want := map[string]bool{}
	if all {
		for _, b := range cacheBuckets {
			want[b] = true
		}
	}
	for _, a := range args {
		name := strings.ToLower(strings.TrimSpace(a))
		if _, ok := bucketPurpose[name]; !ok {
			return nil, fmt.Errorf("unknown bucket %q (valid: %s)", a, strings.Join(store.AllBuckets, ", "))
		}
		want[name] = true
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("name a bucket or pass --all\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
	}
	var out []string
	for _, b := range store.AllBuckets {
		if want[b] {
			out = append(out, b)
		}
	}
	return out, nil
}

// ─── cache compact ────────────────────────────────────────────────────────────

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Shrink the cache file after clears or refreshes",
	Long: `Copy every live entry into a fresh bbolt file and swap it in. Refreshed
series leave their old pages behind, so long-lived caches grow until this runs.`,
	Example: `  atmosight cache compact`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		res, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compacting %s: %w", deps.Store.Path(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), compactSummary(res))
		return nil
	},
}

func compactSummary(res store.CompactResult) string {
	if saved := res.BeforeBytes - res.AfterBytes; saved > 0 {
		return fmt.Sprintf("✓ Compacted %s → %s (freed %s)",
			humanBytes(res.BeforeBytes), humanBytes(res.AfterBytes), humanBytes(saved))
	}
	return fmt.Sprintf("✓ Already compact at %s", humanBytes(res.AfterBytes))
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCompactCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear series and geocode (reports are kept)")
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
