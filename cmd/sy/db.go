package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/db"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		adminEmail string
		adminName  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Sprintyard database",
		Long:  "Creates the database (MySQL), migrates all tables, and optionally seeds a first user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, adminEmail, adminName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "seed a user with this email")
	cmd.Flags().StringVar(&adminName, "admin-name", "", "display name for the seeded user")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath, adminEmail, adminName string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %s config from %s\n", cfg.Database.Driver, configPath)

	gormDB, err := prepareDatabase(out, cfg.Database)
	if err != nil {
		return err
	}
	if err := migrate(out, gormDB); err != nil {
		return err
	}

	if adminEmail != "" {
		u, err := db.SeedUser(gormDB, adminName, adminEmail)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded user %d <%s>\n", u.ID, u.Email)
	}

	fmt.Fprintln(out, "\nSprintyard database initialized successfully.")
	return nil
}

// prepareDatabase creates the MySQL database if needed and connects to it.
func prepareDatabase(out io.Writer, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.CreateDatabase(adminDB, cfg.Name); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Database %s ready on %s:%d\n", cfg.Name, cfg.Host, cfg.Port)
	}
	return db.Connect(cfg)
}

func migrate(out io.Writer, gormDB *gorm.DB) error {
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Sprintyard database",
		Long: `Drops every Sprintyard table (or the whole MySQL database) and migrates
again from scratch. Prompts for confirmation unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := cfg.Database.Name
	if cfg.Database.Driver == "sqlite" {
		target = cfg.Database.Path
	}

	if !skipConfirm {
		if f, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("refusing to reset %s without a terminal; pass --yes", target)
		}
		if !confirmReset(cmd, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var gormDB *gorm.DB
	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Name)
		if gormDB, err = prepareDatabase(out, cfg.Database); err != nil {
			return err
		}
	} else {
		if gormDB, err = db.Connect(cfg.Database); err != nil {
			return err
		}
		if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
			return fmt.Errorf("drop tables in %s: %w", target, err)
		}
		fmt.Fprintf(out, "Dropped tables in %s\n", target)
	}

	if err := migrate(out, gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nSprintyard database reset successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
