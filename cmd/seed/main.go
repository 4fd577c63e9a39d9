// seed loads or removes the dev user fixtures.
// Run: go run ./cmd/seed --import | --delete
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/tourbook/internal/password"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Every seeded account shares this password.
const seedPassword = "test1234"

type userSpec struct {
	name  string
	email string
	role  domain.Role
}

var users = []userSpec{
	{"Admin", "admin@tourbook.local", domain.RoleAdmin},
	{"Lead Guide", "lead@tourbook.local", domain.RoleLeadGuide},
	{"Guide", "guide@tourbook.local", domain.RoleGuide},
	{"Laura Wilson", "laura@tourbook.local", domain.RoleUser},
	{"Jonas Schmedtmann", "jonas@tourbook.local", domain.RoleUser},
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var doImport, doDelete bool

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Load or remove the dev user fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			dbURL := os.Getenv("DATABASE_URL")
			if dbURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			if doDelete {
				return runDelete(cmd.Context(), dbURL)
			}
			return runImport(cmd.Context(), dbURL)
		},
	}

	cmd.Flags().BoolVar(&doImport, "import", false, "Insert the fixture users, skipping existing ones")
	cmd.Flags().BoolVar(&doDelete, "delete", false, "Hard-delete the fixture users")
	cmd.MarkFlagsMutuallyExclusive("import", "delete")
	cmd.MarkFlagsOneRequired("import", "delete")

	return cmd
}

func openRepo(ctx context.Context, dbURL string) (*postgres.UserRepository, func(), error) {
	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return postgres.NewUserRepository(pool), pool.Close, nil
}

func runDelete(ctx context.Context, dbURL string) error {
	repo, closeDB, err := openRepo(ctx, dbURL)
	if err != nil {
		return err
	}
	defer closeDB()

	emails := make([]string, 0, len(users))
	for _, spec := range users {
		emails = append(emails, spec.email)
	}
	deleted, err := repo.DeleteByEmails(ctx, emails)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d fixture users\n", deleted)
	return nil
}

func runImport(ctx context.Context, dbURL string) error {
	repo, closeDB, err := openRepo(ctx, dbURL)
	if err != nil {
		return err
	}
	defer closeDB()

	hash, err := password.NewHasher(password.DefaultCost).Hash(seedPassword)
	if err != nil {
		return err
	}

	// Rows go straight to the repository; signup validation does not apply.
	var inserted, skipped int
	for _, spec := range users {
		u := &domain.User{Name: spec.name, Email: spec.email, Role: spec.role, Active: true}
		u.SetPassword(hash, time.Now())

		_, err := repo.Create(ctx, u)
		var dup *apperr.DuplicateKeyError
		switch {
		case err == nil:
			inserted++
		case errors.As(err, &dup):
			skipped++
		default:
			return fmt.Errorf("insert %s: %w", spec.email, err)
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Users created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  Password:      %s\n", seedPassword)
	fmt.Println()
	for _, spec := range users {
		fmt.Printf("    %-11s %s\n", spec.role, spec.email)
	}
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: log in as the admin:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/api/v1/users/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", users[0].email, seedPassword)
	fmt.Println()
	fmt.Println("  Step 2: list every user:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/api/v1/users -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 3: ask for a reset link (printed in the server log outside production):")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/api/v1/users/forgotPassword \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' -d '{\"email\":\"%s\"}'\n", users[3].email)
	fmt.Println()
	fmt.Println("  Remove the fixtures again with: go run ./cmd/seed --delete")
	return nil
}
