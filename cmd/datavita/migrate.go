package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kirito034/DataVita/internal/migration"
)

// =============================================================================
// 🗄️ 元数据库迁移命令
// =============================================================================

func newMigrateCmd(configPath *string) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Metadata database migration commands",
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrationCLI(configPath, func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
			return cli.RunDown(cmd.Context(), steps)
		}),
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrationCLI(configPath, func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				return cli.RunUp(cmd.Context())
			}),
		},
		downCmd,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			Args:  cobra.NoArgs,
			RunE: withMigrationCLI(configPath, func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				return cli.RunStatus(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			Args:  cobra.NoArgs,
			RunE: withMigrationCLI(configPath, func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				return cli.RunVersion(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set migration version (clears the dirty flag)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrationCLI(configPath, func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunForce(cmd.Context(), version)
			}),
		},
	)
	return migrateCmd
}

type migrationRunE func(cmd *cobra.Command, cli *migration.CLI, args []string) error

// withMigrationCLI 加载配置并创建迁移器，命令结束后关闭
func withMigrationCLI(configPath *string, run migrationRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Log)
		defer logger.Sync()

		migrator, err := migration.NewMigratorFromConfig(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer migrator.Close()

		return run(cmd, migration.NewCLI(migrator, cmd.OutOrStdout()), args)
	}
}
