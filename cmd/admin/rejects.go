package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	persistlog "tarkovtracker.org/internal/persistence/log"
)

func rejectsCmd() *cobra.Command {
	var (
		dir  string
		body bool
	)
	cmd := &cobra.Command{
		Use:   "rejects",
		Short: "Show overlay payloads the server refused",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := persistlog.RejectFiles(dir)
			if err != nil {
				return err
			}
			var all []persistlog.RejectedOverlay
			for _, f := range files {
				recs, err := persistlog.ReadRejected(f)
				if err != nil {
					return err
				}
				if !flagJSON {
					fmt.Println(bold(filepath.Base(f)))
				}
				for _, r := range recs {
					if flagJSON {
						all = append(all, r)
						continue
					}
					trunc := ""
					if r.Truncated {
						trunc = yellow(" (truncated)")
					}
					fmt.Printf("  %s %s %s: %s, %d bytes%s\n", dim(r.At), r.ID, r.Source, red(r.Reason), r.Size, trunc)
					if body {
						fmt.Println(r.Body)
					}
				}
			}
			if flagJSON {
				return outputJSON(all)
			}
			if len(files) == 0 {
				fmt.Println(dim("no rejected overlays"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "data", "./data", "Reject log directory (the server's overlay.reject_dir)")
	cmd.Flags().BoolVar(&body, "body", false, "Print the rejected payload bodies")
	return cmd
}
