package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catengine/cat/internal/engine"
	"github.com/catengine/cat/internal/infra/config"
	"github.com/catengine/cat/internal/infra/modelstore"
	"github.com/catengine/cat/internal/infra/sqlite"
)

// openDB opens the database named by --db and applies migrations.
func openDB(cmd *cobra.Command) (*sqlite.DB, error) {
	path, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return db, nil
}

// openEngine opens the database and wires a production Engine against it,
// loading the layered config snapshot from --config if given.
func openEngine(cmd *cobra.Command) (*engine.Engine, *sqlite.DB, error) {
	db, err := openDB(cmd)
	if err != nil {
		return nil, nil, err
	}

	tomlPath, _ := cmd.Flags().GetString("config")
	snapshot, err := config.Load(tomlPath)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store := config.NewStore(snapshot)
	models := modelstore.New(db, modelstore.DefaultCapacity)

	e := engine.New(db, db, db, models, db, db, store)
	return e, db, nil
}
