package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/schooladmin/school-admin/internal/user"
)

var (
	seedAdminUsername string
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap administrator and default settings",
	Long: `Create the first admin account and the default school settings.
Existing rows are left untouched so the command can run on every deploy.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer a.Close()

		if err := seed(cmd.Context(), a); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

var defaultSettings = []map[string]any{
	{"key": "school_name", "value": "My School"},
	{"key": "academic_year", "value": "2025/2026"},
	{"key": "currency", "value": "USD"},
}

func seed(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}

	password := seedAdminPassword
	if password == "" {
		password = os.Getenv("SEED_ADMIN_PASSWORD")
	}

	exists, err := a.Users.UsernameExists(ctx, seedAdminUsername, "")
	if err != nil {
		return err
	}
	if exists {
		fmt.Println("admin user already exists:", seedAdminUsername)
	} else {
		if password == "" {
			return fmt.Errorf("an admin password is required: pass --password or set SEED_ADMIN_PASSWORD")
		}
		admin, err := a.Users.Create(ctx, user.NewUser{
			Username: seedAdminUsername,
			Email:    seedAdminEmail,
			Password: password,
			FullName: "School Administrator",
			Role:     user.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		fmt.Println("Seeded admin user:", admin.Username, admin.ID)
	}

	var missing []map[string]any
	for _, s := range defaultSettings {
		found, err := a.Records.Exists(ctx, "settings", map[string]any{"key": s["key"]})
		if err != nil {
			return err
		}
		if !found {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		fmt.Println("default settings already present")
		return nil
	}

	rows, err := a.Records.BulkInsert(ctx, "settings", missing, nil)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	fmt.Printf("Seeded %d settings\n", len(rows))
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminUsername, "username", "admin", "bootstrap admin username")
	seedCmd.Flags().StringVar(&seedAdminEmail, "email", "admin@school.local", "bootstrap admin email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "password", "", "bootstrap admin password (or SEED_ADMIN_PASSWORD)")
}
