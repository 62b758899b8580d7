package pg

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/agentgate/internal/observability/logger"
)

// Formato de archivo de migración: {version}_{name}.sql (ej: 0001_init.sql)
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

type migration struct {
	version int
	name    string
	sql     string
}

// Migrate aplica las migraciones pendientes del FS embebido, en orden de
// versión, cada una dentro de su propia transacción junto con el insert
// en _migrations.
func (s *Store) Migrate(ctx context.Context, migrationsFS embed.FS) error {
	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS _migrations (
		   version INT PRIMARY KEY,
		   name TEXT NOT NULL,
		   applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		 )`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	migrations, err := parseMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("parsing migrations: %w", err)
	}

	log := logger.Named("migrate")
	for _, mig := range migrations {
		if applied[mig.version] {
			continue
		}
		if err := s.applyMigration(ctx, mig); err != nil {
			return fmt.Errorf("applying migration %d_%s: %w", mig.version, mig.name, err)
		}
		log.Info("migration applied",
			logger.Int("version", mig.version),
			logger.String("name", mig.name),
		)
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, mig migration) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.sql); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO _migrations (version, name) VALUES ($1, $2)`,
			mig.version, mig.name)
		return err
	})
}

func parseMigrations(migrationsFS embed.FS) ([]migration, error) {
	var migrations []migration
	err := fs.WalkDir(migrationsFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matches := migrationFilePattern.FindStringSubmatch(filepath.Base(path))
		if matches == nil {
			return nil // ignorar archivos que no coinciden
		}
		version, _ := strconv.Atoi(matches[1])
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		migrations = append(migrations, migration{
			version: version,
			name:    matches[2],
			sql:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
