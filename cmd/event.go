package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/schooladmin/school-admin/internal/auth"
	"github.com/schooladmin/school-admin/internal/core/events"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish events through the in-process bus with the server's subscribers attached`,
}

var publishAuthenticatedCmd = &cobra.Command{
	Use:   "authenticated [user-id]",
	Short: "Publish a user.authenticated event",
	Long:  `Publish a user.authenticated event so the last-login subscriber stamps the user`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer a.Close()

		auth.SubscribeLastLogin(a.Events, a.Users, a.Logger)

		evt := events.NewUserAuthenticatedEvent(args[0])
		a.Logger.Info("publishing event", "event_type", evt.EventType(), "event_id", evt.EventID())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Events.Publish(ctx, evt); err != nil {
			a.Logger.Error("failed to publish event", "error", err)
			return
		}
		if err := a.Events.Wait(ctx); err != nil {
			a.Logger.Error("event handlers did not finish", "error", err)
			return
		}
		a.Logger.Info("event handled", "event_id", evt.EventID())
	},
}

func init() {
	eventCmd.AddCommand(publishAuthenticatedCmd)
	rootCmd.AddCommand(eventCmd)
}
