// Filename: cmd/analyze.go
package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
	"github.com/xkilldash9x/lancet-sast/internal/analysis/summary"
	"github.com/xkilldash9x/lancet-sast/internal/engine"
	"github.com/xkilldash9x/lancet-sast/internal/observability"
	"github.com/xkilldash9x/lancet-sast/internal/results"
	"github.com/xkilldash9x/lancet-sast/internal/store"
)

// jsExtensions are the file suffixes collected when walking target paths.
var jsExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
}

func newAnalyzeCommand() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Run compile-time taint analysis over JavaScript files.",
		Long: `Analyze collects JavaScript files from the given paths (files or
directories, walked recursively), runs the taint inference engine over
them, and reports any flows from untrusted sources into sinks.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
				appConfig.SetEngineWorkers(workers)
			}
			if timeout, _ := cmd.Flags().GetDuration("unit-timeout"); timeout > 0 {
				appConfig.SetEngineUnitTimeout(timeout)
			}
			return nil
		},
		RunE: runAnalyze,
	}

	analyzeCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().StringP("format", "f", "text", "report format: text, json, or markdown")
	analyzeCmd.Flags().IntP("workers", "j", 0, "number of parallel analysis workers (0 = one per CPU)")
	analyzeCmd.Flags().Duration("unit-timeout", 0, "per-unit analysis timeout (0 = 5s default)")
	analyzeCmd.Flags().Bool("save", false, "persist the run to the configured database")

	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger().Named("cli")

	units, err := collectUnits(args)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return fmt.Errorf("no JavaScript files found under %s", strings.Join(args, ", "))
	}
	logger.Info("Collected analysis units.", zap.Int("count", len(units)))

	var cache summary.Cache
	if cc := appConfig.Cache(); cc.Enabled {
		sc, err := store.OpenSummaryCache(cc.Path)
		if err != nil {
			return fmt.Errorf("opening summary cache: %w", err)
		}
		defer sc.Close()
		cache = sc
		logger.Debug("Summary cache enabled.", zap.String("path", cc.Path))
	}

	eng, err := engine.New(logger, appConfig, cache)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	result, err := eng.AnalyzeAtCompileTime(ctx, units)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	reporter, err := results.New(format, outputPath)
	if err != nil {
		return err
	}
	if err := reporter.Write(result); err != nil {
		reporter.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := persistRun(cmd, result); err != nil {
			return err
		}
	}

	logger.Info("Analysis complete.",
		zap.Int("issues", len(result.Issues)),
		zap.Int64("elapsed_ms", result.ExecutionTimeMs))
	return nil
}

// collectUnits walks the given paths and builds one analysis unit per
// JavaScript file. Each file becomes a single top-level block unit named by
// its path relative to the walk root.
func collectUnits(paths []string) ([]schemas.UnitSource, error) {
	var units []schemas.UnitSource
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			unit, err := unitFromFile(root, root)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if name := d.Name(); name == "node_modules" || strings.HasPrefix(name, ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !jsExtensions[filepath.Ext(path)] {
				return nil
			}
			unit, err := unitFromFile(root, path)
			if err != nil {
				return err
			}
			units = append(units, unit)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return units, nil
}

func unitFromFile(root, path string) (schemas.UnitSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return schemas.UnitSource{}, fmt.Errorf("reading %s: %w", path, err)
	}
	name, relErr := filepath.Rel(filepath.Dir(root), path)
	if relErr != nil {
		name = path
	}
	name = strings.TrimSuffix(filepath.ToSlash(name), filepath.Ext(name))

	var modified time.Time
	if info, statErr := os.Stat(path); statErr == nil {
		modified = info.ModTime()
	}

	return schemas.UnitSource{
		Name:     name,
		FilePath: path,
		Content:  string(content),
		Metadata: schemas.UnitMetadata{
			Language:     "javascript",
			LastModified: modified,
		},
	}, nil
}

// persistRun saves the analysis result to the configured Postgres database.
func persistRun(cmd *cobra.Command, result *schemas.AnalysisResult) error {
	ctx := cmd.Context()
	dbCfg := appConfig.Database()
	if !dbCfg.Enabled || dbCfg.URL == "" {
		return fmt.Errorf("--save requires database.enabled and database.url in config")
	}

	pool, err := pgxpool.New(ctx, dbCfg.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, observability.GetLogger())
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	runID := uuid.NewString()
	if err := st.SaveRun(ctx, runID, result); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run saved as %s\n", runID)
	return nil
}
