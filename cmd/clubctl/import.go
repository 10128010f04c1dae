package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"clubhub/internal/app"
	"clubhub/internal/audit"
	"clubhub/internal/csvimport"
)

var (
	importDryRun bool
	importStrict bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import roster data",
}

// importRidersCmd represents the import riders command
var importRidersCmd = &cobra.Command{
	Use:   "riders [file.csv]",
	Short: "Import riders from a CSV file",
	Long: `Validate a rider CSV against the current roster and insert the valid rows.
Use --dry-run to only print the per-row report, and --strict to refuse the whole file when any row is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withApp(cmd.Context(), false, func(a *app.App) error {
			ctx := cmd.Context()
			dir, err := csvimport.LoadDirectory(ctx, a.DB)
			if err != nil {
				return err
			}
			preview, err := csvimport.Parse(f, dir, time.Now())
			if err != nil {
				return err
			}

			for _, row := range preview.Rows {
				cmd.Printf("line %d: %s %s %s", row.Line, row.Status, row.FirstName, row.LastName)
				for _, e := range row.Errors {
					cmd.Printf(" [error: %s]", e)
				}
				for _, w := range row.Warnings {
					cmd.Printf(" [warning: %s]", w)
				}
				cmd.Println()
			}
			for _, w := range preview.Warnings {
				cmd.Println("warning:", w)
			}
			s := preview.Summary
			cmd.Printf("total %d, valid %d, invalid %d, with warnings %d\n", s.Total, s.Valid, s.Invalid, s.WithWarnings)

			if importDryRun {
				return nil
			}

			res, err := csvimport.Commit(ctx, a.DB, preview, importStrict)
			if err != nil {
				return err
			}
			if err := audit.RecordSystem(ctx, a.DB, "clubctl", audit.Entry{
				Action:       "riders.import",
				ResourceType: "rider",
				Metadata: map[string]interface{}{
					"file":          args[0],
					"created":       res.Created,
					"skipped":       res.Skipped,
					"parent_links":  res.ParentLinks,
					"pending_links": res.PendingLinks,
				},
			}); err != nil {
				a.Log.Warn("failed to write audit entry: ", err)
			}
			cmd.Printf("✅ created %d riders, skipped %d, linked %d parents, %d links pending\n",
				res.Created, res.Skipped, res.ParentLinks, res.PendingLinks)
			return nil
		})
	},
}

func init() {
	importRidersCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate only, write nothing")
	importRidersCmd.Flags().BoolVar(&importStrict, "strict", false, "reject the file if any row is invalid")
	importCmd.AddCommand(importRidersCmd)
}
