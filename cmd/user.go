package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/schooladmin/school-admin/internal/user"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var (
	newUsername string
	newEmail    string
	newPassword string
	newFullName string
	newRole     string
)

var createUserCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := user.ParseRole(newRole)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer a.Close()

		created, err := a.Users.Create(context.Background(), user.NewUser{
			Username: newUsername,
			Email:    newEmail,
			Password: newPassword,
			FullName: newFullName,
			Role:     role,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s) with role %s\n", created.Username, created.ID, created.Role)
		return nil
	},
}

var toggleUserCmd = &cobra.Command{
	Use:   "toggle [user-id]",
	Short: "Activate or deactivate a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer a.Close()

		updated, err := a.Users.ToggleStatus(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s is_active=%t\n", updated.Username, updated.IsActive)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&newUsername, "username", "", "login name")
	createUserCmd.Flags().StringVar(&newEmail, "email", "", "email address")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "initial password")
	createUserCmd.Flags().StringVar(&newFullName, "name", "", "full name")
	createUserCmd.Flags().StringVar(&newRole, "role", "teacher", "admin, head_teacher, teacher or accountant")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createUserCmd)
	userCmd.AddCommand(toggleUserCmd)
}
