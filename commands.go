package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vehicle_parking/internal/config"
	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/service"
)

// systemActor performs CLI maintenance with admin rights.
var systemActor = domain.Actor{Role: domain.RoleAdmin}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE=%s", config.StoragePostgres)
			}
			return a.migrate(cmd.Context())
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var dto domain.RegisterUserDTO
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			auth := service.NewAuthService(a.store.Users(), a.cfg.JWTSecret, a.cfg.JWTExpiration())
			user, err := auth.CreateAdmin(cmd.Context(), dto)
			if err != nil {
				return err
			}
			a.logger.Info("admin created", zap.Int("user_id", user.ID), zap.String("email", user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&dto.FullName, "name", "Administrator", "full name")
	cmd.Flags().StringVar(&dto.Email, "email", "", "login email")
	cmd.Flags().StringVar(&dto.Password, "password", "", "password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSeedSlotsCmd() *cobra.Command {
	var plotID, count int
	cmd := &cobra.Command{
		Use:   "seed-slots",
		Short: "Append vacant slots to an existing plot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			plots := service.NewPlotService(a.store, service.NewSlotAllocator(), a.logger)
			slots, err := plots.AddSlots(cmd.Context(), systemActor, plotID, count)
			if err != nil {
				return err
			}
			a.logger.Info("slots created",
				zap.Int("plot_id", plotID),
				zap.Int("count", len(slots)),
				zap.Int("first_number", slots[0].SlotNumber))
			return nil
		},
	}
	cmd.Flags().IntVar(&plotID, "plot-id", 0, "plot to extend")
	cmd.Flags().IntVar(&count, "count", 1, "number of slots to add")
	_ = cmd.MarkFlagRequired("plot-id")
	return cmd
}
