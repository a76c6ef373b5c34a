package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"crudadmin/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if !mustFlagBool(cmd, "verbose") {
			gin.SetMode(gin.ReleaseMode)
		}
		if ok, _ := cmd.Flags().GetBool("discover"); ok {
			entries, err := a.configs.RunDiscovery(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("discovered %d models", len(entries))
		}
		reg, closeStore, err := a.records()
		if err != nil {
			return err
		}
		defer closeStore()

		return api.RunServer(cmd.Context(), a.cfg.Addr(), api.Deps{
			Configs:  a.configs,
			Records:  reg,
			Catalogs: a.catalogs,
			Logger:   a.log,
		})
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the schema and reconcile model configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		entries, err := a.configs.RunDiscovery(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%-32s %-14s %s\n", e.Model, e.Status, e.Title)
		}
		a.log.Info("%d models written to %s", len(entries), a.cfg.CrudDir)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <model>",
	Short: "Write a model's column config back into the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		res, err := a.configs.SyncSchemaFromConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		switch {
		case !res.Changed:
			a.log.Info("%s: schema already up to date", res.Model)
		case res.Appended:
			a.log.Info("%s: model block appended to %s", res.Model, a.cfg.SchemaPath)
		default:
			a.log.Info("%s: model block updated in %s", res.Model, a.cfg.SchemaPath)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("discover", true, "run discovery before serving")
	rootCmd.AddCommand(serveCmd, discoverCmd, syncCmd)
}

// signalContext отменяется по SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
