package main

import (
	"time"

	"github.com/spf13/cobra"

	"clubhub/internal/app"
)

// notificationsCmd represents the notifications command
var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Manage scheduled notifications",
}

// dispatchCmd represents the notifications dispatch command
var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send every notification that is due",
	Long:  `Run one delivery pass over pending notifications whose send time has passed. Useful from cron when the API runs with NOTIFICATIONS_ENABLED=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			n, err := a.Dispatcher.RunOnce(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("dispatched %d notifications\n", n)
			return nil
		})
	},
}

func init() {
	notificationsCmd.AddCommand(dispatchCmd)
}
