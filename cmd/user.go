package cmd

import (
	"context"
	"fmt"

	"room-booking/internal/dto/request"
	"room-booking/internal/wire"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var req request.CreateUserRequest
	var admin bool

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			app, err := wire.Wiring(rt.repo, rt.config, rt.logger)
			if err != nil {
				return err
			}

			req.Role = "user"
			if admin {
				req.Role = "admin"
			}

			user, err := app.Service.Auth.CreateUser(context.Background(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id=%d)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	c.Flags().StringVar(&req.Username, "username", "", "username")
	c.Flags().StringVar(&req.Email, "email", "", "email")
	c.Flags().StringVar(&req.Password, "password", "", "password")
	c.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}
