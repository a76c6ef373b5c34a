package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/spf13/cobra"

	"crudadmin/internal/config"
	"crudadmin/internal/crudconfig"
	"crudadmin/internal/fieldtype"
	"crudadmin/internal/memstore"
	"crudadmin/internal/records"
	"crudadmin/internal/reference"
	"crudadmin/internal/schema"
	"crudadmin/internal/sqlstore"
	"crudadmin/internal/validation"
)

func mustFlagBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
	return val
}

func newLogger(cmd *cobra.Command) logger.Logger {
	if mustFlagBool(cmd, "verbose") {
		return logger.NewConsoleLogger(logger.LevelTrace)
	}
	return logger.NewConsoleLogger(logger.LevelInfo)
}

// loadConfig: файл/.env/окружение, затем явно заданные флаги.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envPath, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(path, envPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type app struct {
	cfg      config.Config
	log      logger.Logger
	configs  *crudconfig.Service
	catalogs *reference.Catalogs
	heur     *fieldtype.Heuristics
}

func newApp(cmd *cobra.Command) (*app, error) {
	log := newLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	heur := fieldtype.DefaultHeuristics()
	if cfg.HeuristicsPath != "" {
		if heur, err = fieldtype.LoadHeuristics(cfg.HeuristicsPath); err != nil {
			return nil, err
		}
	}
	catalogs, err := reference.Load(cfg.CatalogsDir)
	if err != nil {
		return nil, err
	}
	log.Debug("catalogs loaded: %d", catalogs.Len())

	store := crudconfig.NewFileStore(cfg.ModelsDir, cfg.CrudDir, log)
	configs := crudconfig.NewService(store, schema.NewFileSource(cfg.SchemaPath), log, crudconfig.Options{
		Prefix:      cfg.CrudPrefix,
		PruneDetail: cfg.PruneDetail,
		Heuristics:  heur,
	})
	return &app{cfg: cfg, log: log, configs: configs, catalogs: catalogs, heur: heur}, nil
}

// records открывает хранилище записей; close освобождает соединение.
func (a *app) records() (*records.Registry, func() error, error) {
	opts := []validation.Option{validation.WithHeuristics(a.heur), validation.WithCatalogs(a.catalogs)}
	driver := strings.ToLower(a.cfg.StoreDriver)
	if driver == "memory" {
		a.log.Warn("memory record store: data is lost on restart")
		return records.NewRegistry(a.configs, memstore.New(), a.log, opts...), func() error { return nil }, nil
	}
	db, d, err := sqlstore.Open(driver, a.cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("record store: %s", d.Name)
	return records.NewRegistry(a.configs, sqlstore.New(db, d, a.log), a.log, opts...), db.Close, nil
}

var rootCmd = &cobra.Command{
	Use:           "crudadmin",
	Short:         "Config-driven CRUD administration server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, cancel := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "crudadmin.json", "JSON configuration file")
	rootCmd.PersistentFlags().String("env", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().Bool("verbose", false, "turn on verbose logging")
	config.BindFlags(rootCmd.PersistentFlags())
}
