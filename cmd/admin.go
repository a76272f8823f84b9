package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"huntzen-care/models"
	"huntzen-care/services"
)

func newCreateAdminCmd() *cobra.Command {
	var in services.PlatformAdminInput
	var role string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a platform administrator",
		Long: `create-admin provisions an ADMIN_HUNTZEN or SUPER_ADMIN account.
The password is read from HUNTZEN_ADMIN_PASSWORD when --password is omitted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("HUNTZEN_ADMIN_PASSWORD")
			}
			if in.Password == "" {
				return errors.New("a password is required (--password or HUNTZEN_ADMIN_PASSWORD)")
			}
			in.Role = models.Role(role)

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer models.CloseDatabase(db)

			rt := &infra{cfg: cfg, log: log, db: db}
			ctx, cancel := withTimeout(30 * time.Second)
			defer cancel()

			user, err := rt.buildServices().Auth.CreatePlatformAdmin(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Platform", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "Admin", "last name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleSuperAdmin), "ADMIN_HUNTZEN or SUPER_ADMIN")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
