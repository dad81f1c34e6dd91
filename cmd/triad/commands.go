package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alucardeht/triad/internal/config"
	"github.com/alucardeht/triad/internal/daemon"
	"github.com/alucardeht/triad/internal/seed"
	"github.com/alucardeht/triad/internal/store"
	"github.com/alucardeht/triad/internal/types"
	"github.com/alucardeht/triad/pkg/protocol"
)

const rpcTimeout = 5 * time.Minute

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}
	return cfg, nil
}

func dial(cmd *cobra.Command) (*daemon.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	c, err := daemon.Dial(ctx, cfg.Daemon.SocketPath)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("%w (is triad-daemon running?)", err)
	}
	return c, ctx, cancel, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := dial(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.Close()

	res, err := c.Execute(ctx, protocol.ExecuteParams{
		AIType: aiType,
		Prompt: strings.Join(args, " "),
		Mode:   mode,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}
	renderResult(cmd.OutOrStdout(), res, verbose)
	return nil
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	c, ctx, cancel, err := dial(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.Close()

	res, err := c.Refresh(ctx)
	if err != nil {
		return err
	}
	if !res.Refreshed {
		return fmt.Errorf("refresh incomplete: %s", res.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "caches refreshed")
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	c, ctx, cancel, err := dial(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.Close()

	st, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "catalog: %d nodes, %d stacks, %d domains (loaded %s, ttl %s)\n",
		st.Catalog.Nodes, st.Catalog.Stacks, st.Catalog.Domains,
		st.Catalog.LoadedAt.Format(time.RFC3339), st.CatalogTTL)
	for _, t := range types.AITypes {
		fmt.Fprintf(out, "models[%s]: %d\n", t, st.ModelConfigs[t])
	}
	if st.Store != nil {
		fmt.Fprintf(out, "store: %d memories, %d responses logged\n", st.Store.Memories, st.Store.ResponseLogs)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Catalog.SeedDir
	if len(args) == 1 {
		dir = args[0]
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	res, files, err := importDir(cmd.Context(), cfg.Database.Path, dir, cfg.Catalog.SeedPatterns, cfg.Catalog.IgnorePatterns)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d files: %d nodes, %d stacks, %d domains, %d memories, %d models, %d retired\n",
		len(files), res.Nodes, res.Stacks, res.Domains, res.Memories, res.Models, res.Retired)
	fmt.Fprintln(cmd.OutOrStdout(), "run `triad refresh` to apply it to a running daemon")
	return nil
}

func importDir(ctx context.Context, dbPath, dir string, include, ignore []string) (*store.ImportResult, []string, error) {
	bundle, files, err := seed.LoadDir(dir, include, ignore)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	res, err := st.Import(ctx, bundle, prune)
	if err != nil {
		return nil, nil, err
	}
	return res, files, nil
}

func renderResult(w io.Writer, res *types.AISystemResult, verbose bool) {
	fmt.Fprintln(w, res.Response)
	fmt.Fprintf(w, "\n[%s/%s] quality %.2f, confidence %.2f, primary slot %d, %dms\n",
		res.AIType, res.Mode, res.QualityScore, res.Confidence, res.Fusion.SelectedPrimary, res.LatencyMS)
	if res.Fusion.Degraded {
		fmt.Fprintln(w, "degraded: no model answered")
	}
	if !verbose {
		return
	}
	for _, m := range res.Models {
		status := "ok"
		if !m.Success {
			status = "failed: " + m.Error
		}
		fmt.Fprintf(w, "  slot %d %s/%s %dms %s\n", m.Slot, m.Provider, m.Model, m.LatencyMS, status)
		for _, p := range m.Routing.Path() {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
