package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/telehealth/clinic/internal/config"
	"github.com/telehealth/clinic/internal/domain/clinical"
	"github.com/telehealth/clinic/internal/domain/identity"
	"github.com/telehealth/clinic/internal/domain/portal"
	"github.com/telehealth/clinic/internal/domain/referral"
	"github.com/telehealth/clinic/internal/domain/scheduling"
	"github.com/telehealth/clinic/internal/platform/db"
	"github.com/telehealth/clinic/internal/platform/sandbox"
	"github.com/telehealth/clinic/migrations"
	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Telehealth clinic API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := context.Background()

			if cfg.DatabaseDriver == config.DriverMySQL {
				gdb, err := db.OpenMySQL(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, logger)
				if err != nil {
					return err
				}
				if err := db.AutoMigrate(gdb, models()...); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("Schema migrated with AutoMigrate.")
				return nil
			}

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator(pool, dir, cfg.MigrationsDir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded set)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseDriver != config.DriverPostgres {
				return fmt.Errorf("migrate status is only available for the %s driver", config.DriverPostgres)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator(pool, dir, cfg.MigrationsDir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with any role",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			roleFlag, _ := cmd.Flags().GetString("role")
			if strings.TrimSpace(username) == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			role, err := identity.ParseRole(roleFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, closeFn, err := openStores(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer closeFn()

			svc := identity.NewService(st.users, nil)
			u, err := svc.CreateUser(ctx, name, username, password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d).\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name records are filed under")
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("role", "PATIENT", "PATIENT, DOCTOR, STAFF or ADMIN")
	_ = createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cfg := defaults
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with reproducible demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}
			if conf.IsProduction() {
				return fmt.Errorf("refusing to seed demo data with ENV=production")
			}
			logger := newLogger(conf)
			ctx := context.Background()
			st, closeFn, err := openStores(ctx, conf, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			obs := lifecycle.LogObserver(logger)
			accounts := identity.NewService(st.users, nil)
			portalSvc := portal.NewService(st.vitals, st.refills, obs)
			portalSvc.SetPatientDirectory(accounts)
			targets := sandbox.Targets{
				Accounts:  accounts,
				Bookings:  scheduling.NewService(st.appointments, obs),
				Diagnoses: clinical.NewService(st.diagnoses, obs),
				Referrals: referral.NewService(st.referrals, obs),
				Portal:    portalSvc,
			}
			res, err := sandbox.NewSeeder(cfg, targets, dates.Today(), logger).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d account(s), %d appointment(s), %d diagnos(es), %d referral(s), %d vitals, %d refill(s).\n",
				res.Users, res.Appointments, res.Diagnoses, res.Referrals, res.Vitals, res.Refills)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.DoctorCount, "doctors", defaults.DoctorCount, "Doctor accounts to create")
	f.IntVar(&cfg.StaffCount, "staff", defaults.StaffCount, "Staff accounts to create")
	f.IntVar(&cfg.PatientCount, "patients", defaults.PatientCount, "Patient accounts to create")
	f.IntVar(&cfg.AppointmentsPerPatient, "appointments", defaults.AppointmentsPerPatient, "Appointments per patient")
	f.IntVar(&cfg.DiagnosesPerPatient, "diagnoses", defaults.DiagnosesPerPatient, "Diagnoses per patient")
	f.IntVar(&cfg.ReferralsPerPatient, "referrals", defaults.ReferralsPerPatient, "Referrals per patient")
	f.IntVar(&cfg.VitalsPerPatient, "vitals", defaults.VitalsPerPatient, "Vitals submissions per patient")
	f.IntVar(&cfg.RefillsPerPatient, "refills", defaults.RefillsPerPatient, "Refill requests per patient")
	f.StringVar(&cfg.Password, "password", defaults.Password, "Password for every generated account")
	f.Int64Var(&cfg.Seed, "seed", defaults.Seed, "Random seed")
	return cmd
}

// migrator reads from dir when set, then MIGRATIONS_DIR, then the set
// embedded in the binary.
func migrator(pool *pgxpool.Pool, dir, configured string) *db.Migrator {
	if dir == "" {
		dir = configured
	}
	if dir == "" {
		return db.NewMigrator(pool, migrations.FS)
	}
	return db.NewDirMigrator(pool, dir)
}
