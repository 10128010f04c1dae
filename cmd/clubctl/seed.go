package main

import (
	"github.com/spf13/cobra"

	"clubhub/internal/app"
	"clubhub/internal/seed"
)

var (
	seedEmail    string
	seedPassword string
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create default groups and the first administrator",
	Long: `Create the default rider groups and make sure an administrator exists.
Running it again is safe; existing groups are kept and an existing profile is promoted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app.App) error {
			settings := a.Config.Seed
			if seedEmail != "" {
				settings.AdminEmail = seedEmail
			}
			if seedPassword != "" {
				settings.AdminPassword = seedPassword
			}

			res, err := seed.FirstSetup(cmd.Context(), a.DB, settings)
			if err != nil {
				return err
			}
			cmd.Printf("groups created: %d\n", res.GroupsCreated)
			switch {
			case res.AdminEmail == "":
				cmd.Println("no admin email given, skipped administrator")
			case res.AdminCreated:
				cmd.Printf("administrator %s created\n", res.AdminEmail)
			default:
				cmd.Printf("administrator %s promoted\n", res.AdminEmail)
			}
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "admin-email", "", "administrator email (defaults to SEED_ADMIN_EMAIL)")
	seedCmd.Flags().StringVar(&seedPassword, "admin-password", "", "administrator password (defaults to SEED_ADMIN_PASSWORD)")
}
