package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-books/internal/common"
	"github.com/Veraticus/spice-books/internal/config"
	"github.com/Veraticus/spice-books/internal/engine"
	"github.com/Veraticus/spice-books/internal/storage"
)

const dateLayout = "2006-01-02"

// BOOKS_DATABASE_PATH maps to database.path.
var envKeyReplacer = strings.NewReplacer(".", "_")

// openStorage loads the configuration and opens the migrated database.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, *config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// openEngine opens storage and builds an engine over it. The returned cleanup
// closes the database.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	store, cfg, err := openStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	eng, err := engine.New(ctx, store, cfg.Policy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, common.NewUserError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s), err)
	}
	return t, nil
}

// dateFlag returns the parsed value of a date flag, or nil when unset.
func dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// asOf returns the --as-of flag, defaulting to today.
func asOf(cmd *cobra.Command) (time.Time, error) {
	t, err := dateFlag(cmd, "as-of")
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return *t, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("invalid id %q", s), err)
	}
	return id, nil
}

// expandFiles resolves glob patterns and directories into statement files.
func expandFiles(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", path, err)
			}
			if !info.IsDir() {
				add(path)
				continue
			}
			for _, ext := range []string{"*.ofx", "*.qfx", "*.OFX", "*.QFX"} {
				found, _ := filepath.Glob(filepath.Join(path, ext))
				for _, f := range found {
					add(f)
				}
			}
		}
	}

	if len(files) == 0 {
		return nil, common.NewUserError("no statement files found", nil)
	}
	return files, nil
}
