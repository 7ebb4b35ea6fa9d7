package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tarkovtracker.org/internal/persistence/cachedb"
)

func cacheCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the persistent payload cache",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "./data/cache.db", "Cache database path")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cachedb.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()
			entries, err := db.Entries(cmd.Context())
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println(dim("cache is empty"))
				return nil
			}
			for _, e := range entries {
				state := green("live")
				if e.Expired {
					state = red("expired")
				}
				fmt.Printf("%-16s %-8s %-6s %8d bytes  stored %s  %s\n",
					e.Type, e.Key, e.Lang, e.RawSize, e.StoredAt.Format(time.RFC3339), state)
			}
			return nil
		},
	})

	var typ string
	var expiredOnly bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cachedb.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()
			var n int64
			if expiredOnly {
				n, err = db.PurgeExpired(cmd.Context())
			} else {
				n, err = db.Purge(cmd.Context(), typ)
			}
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(map[string]int64{"deleted": n})
			}
			fmt.Printf("%s %d entries\n", yellow("deleted"), n)
			return nil
		},
	}
	purge.Flags().StringVar(&typ, "type", "", "Only purge this payload type (default: all)")
	purge.Flags().BoolVar(&expiredOnly, "expired", false, "Only purge expired entries")
	cmd.AddCommand(purge)
	return cmd
}
