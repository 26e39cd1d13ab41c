package db

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}
	if err := runMigrate(args, dbPath, os.Stdout); err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
}

func runMigrate(args []string, dbPath string, out io.Writer) error {
	action := args[0]
	if action == "help" {
		printMigrateHelp(out)
		return nil
	}

	// Get migrations filesystem (uses embedded FS in production, local files in dev)
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}

	// Open database connection without running schema initialization
	// (migrations will manage the schema)
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		log.Println("✓ All migrations applied successfully")
		return printMigrateStatus(database, migrationsFS, out)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		log.Println("✓ Migration rolled back successfully")
		return printMigrateStatus(database, migrationsFS, out)

	case "status":
		return printMigrateStatus(database, migrationsFS, out)

	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: fieldkit migrate version <version_number>")
		}
		target, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		log.Printf("Migrating to version %d...", target)
		if err := database.MigrateTo(migrationsFS, uint(target)); err != nil {
			return err
		}
		log.Printf("✓ Migrated to version %d successfully", target)
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: fieldkit migrate force <version_number>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateForce(migrationsFS, version); err != nil {
			return err
		}
		log.Printf("✓ Migration version forced to %d", version)
		return nil

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		printMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func printMigrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	if status.Pending() {
		fmt.Fprintf(out, "Pending migrations: %d\n", status.LatestVersion-status.CurrentVersion)
	}

	if status.Dirty {
		fmt.Fprintln(out, "\nWARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  fieldkit migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	printMigrateHelp(os.Stdout)
}

func printMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: fieldkit migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show current and latest schema versions
  version <n>        Migrate up or down to version n
  force <n>          Set the version without running migrations (recovery only)
  help               Show this help

Flags:
  --db-path <path>   Database file (default: fieldkit.db)
`)
}
