package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	"github.com/spf13/cobra"
)

var (
	clearData   bool
	onboardSeed bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with sample employees",
	Long:  `Seed the configured store with sample employees for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := initLogger(cfg)

		stores, err := openStores(ctx, cfg, lg)
		if err != nil {
			log.Fatalf("failed to open storage: %v", err)
		}
		defer stores.Close()

		employees, authService := newServices(cfg, stores, nil, lg)
		if generated, err := authService.EnsureAdmin(ctx, cfg.Security.AdminPassword); err != nil {
			log.Fatalf("failed to provision admin: %v", err)
		} else if generated != "" {
			log.Printf("Seeded admin %q with password %s", "admin", generated)
		}

		if clearData {
			if err := clearEmployees(ctx, employees); err != nil {
				log.Fatalf("failed to clear employees: %v", err)
			}
			log.Println("Cleared existing employees")
		}

		for _, dto := range sampleEmployees() {
			e, err := employees.Create(ctx, dto)
			if errors.Is(err, internal.ErrEmployeeAlreadyExists) {
				log.Printf("%s %s already exists; skipping", dto.FirstName, dto.LastName)
				continue
			}
			if err != nil {
				log.Fatalf("failed to seed %s %s: %v", dto.FirstName, dto.LastName, err)
			}
			log.Printf("Seeded employee %s %s (%s)", e.FirstName, e.LastName, e.ID)

			if onboardSeed {
				onboarded, err := employees.Onboard(ctx, e.ID)
				if err != nil {
					log.Fatalf("failed to onboard %s: %v", e.ID, err)
				}
				log.Printf("Onboarded %s as %s", onboarded.ID, *onboarded.Handle)
			}
		}
	},
}

func clearEmployees(ctx context.Context, employees *employee.Service) error {
	for {
		page, err := employees.List(ctx, employee.ListQuery{Page: 1, Limit: employee.MaxLimit})
		if err != nil {
			return err
		}
		if len(page.Employees) == 0 {
			return nil
		}
		for _, e := range page.Employees {
			if err := employees.Delete(ctx, e.ID); err != nil {
				return err
			}
		}
	}
}

func sampleEmployees() []employee.CreateEmployeeDTO {
	email := func(s string) *string { return &s }
	return []employee.CreateEmployeeDTO{
		{FirstName: "Jane", LastName: "Doe", PersonalEmail: email("jane.doe@example.com"), Age: 29, Diploma: "BSc Computer Science"},
		{FirstName: "John", LastName: "Doe", Age: 34, Diploma: "MSc Electrical Engineering"},
		{FirstName: "Fadhil", LastName: "Rahman", PersonalEmail: email("fadhil@example.com"), Age: 26, Diploma: "BA Economics"},
		{FirstName: "Maria", LastName: "Garcia", Age: 41, Diploma: "MBA"},
	}
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing employees before seeding")
	seedCmd.Flags().BoolVar(&onboardSeed, "onboard", false, "Onboard every seeded employee")
}
