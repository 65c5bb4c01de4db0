package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/order-assistant/internal/auth"
	"github.com/frahmantamala/order-assistant/internal/menu"
	"github.com/frahmantamala/order-assistant/internal/user"
)

var (
	seedPassword    string
	seedAdminChatID string
	seedStaffChatID string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed staff users, their permissions and the menu for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configDir)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		deps, err := initializeDependencies(cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		ctx := context.Background()

		hash, err := deps.Auth.HashPassword(seedPassword)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		staff := []struct {
			user        user.User
			permissions []string
		}{
			{
				user: user.User{Email: "owner@catering.local", Name: "Owner", ChatID: seedAdminChatID, IsActive: true},
				permissions: []string{
					auth.PermissionAdmin,
					auth.PermissionManageOrders,
					auth.PermissionRecordPayments,
					auth.PermissionRunReminders,
					auth.PermissionReceiveReminders,
				},
			},
			{
				user: user.User{Email: "kasir@catering.local", Name: "Kasir", ChatID: seedStaffChatID, IsActive: true},
				permissions: []string{
					auth.PermissionManageOrders,
					auth.PermissionRecordPayments,
					auth.PermissionReceiveReminders,
				},
			},
		}

		for _, s := range staff {
			u := s.user
			u.PasswordHash = hash
			if _, err := deps.Users.Register(ctx, &u, s.permissions); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					fmt.Println("user already exists:", u.Email)
					continue
				}
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email, s.permissions)
		}

		items := []menu.Item{
			{Name: "Nasi Box Ayam Bakar", Description: "nasi, ayam bakar, lalapan, sambal", Price: 35000},
			{Name: "Nasi Box Rendang", Description: "nasi, rendang sapi, sayur, kerupuk", Price: 45000},
			{Name: "Nasi Kuning Tumpeng Mini", Description: "porsi satu orang", Price: 30000},
			{Name: "Snack Box", Description: "tiga kue dan air mineral", Price: 15000},
			{Name: "Es Teh Manis", Description: "gelas 350ml", Price: 5000},
		}
		for i := range items {
			items[i].IsActive = true
			if err := deps.Menu.Save(ctx, &items[i]); err != nil {
				log.Fatalf("failed to seed menu item %s: %v", items[i].Name, err)
			}
		}

		fmt.Println("Menu seeded successfully")
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "password for the seeded staff users")
	seedCmd.Flags().StringVar(&seedAdminChatID, "admin-chat-id", "", "chat id of the owner account")
	seedCmd.Flags().StringVar(&seedStaffChatID, "staff-chat-id", "", "chat id of the cashier account")
}
