package main

import (
	"errors"

	"docqa/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var snapshotFile string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export or import the chromem collection",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the collection to a snapshot file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChromem(func(app *App, path string) error {
			if err := app.chromem.Export(cmd.Context(), cfg.Collection, path); err != nil {
				return err
			}
			log.Info().Str("file", path).Msg("Collection exported")
			return nil
		})
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the collection from a snapshot file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChromem(func(app *App, path string) error {
			if err := app.chromem.Import(cmd.Context(), cfg.Collection, path); err != nil {
				return err
			}
			log.Info().Str("file", path).Msg("Collection imported")
			return nil
		})
	},
}

func init() {
	snapshotCmd.PersistentFlags().StringVar(&snapshotFile, "file", "", "snapshot file (default from config)")
	snapshotCmd.AddCommand(snapshotExportCmd, snapshotImportCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func withChromem(fn func(app *App, path string) error) error {
	if cfg.VectorIndex.Backend != config.BackendChromem {
		return errors.New("snapshots are only supported by the chromem backend")
	}
	path := snapshotFile
	if path == "" {
		path = cfg.VectorIndex.Chromem.SnapshotPath
	}

	app, err := buildApp(cfg, true)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app, path)
}
