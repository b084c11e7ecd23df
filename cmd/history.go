package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	historyapi "github.com/kilianp07/essim/api/history"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/infra/history"
	"github.com/kilianp07/essim/infra/logger"
	"github.com/kilianp07/essim/pkg/export"
)

var exportOpts struct {
	store     string
	path      string
	format    string
	out       string
	siteID    string
	batteryID string
	phase     string
	fromTick  int
	toTick    int
}

var serveOpts struct {
	store string
	path  string
	addr  string
	token string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded battery snapshots",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded snapshots as CSV or JSON",
	RunE:  exportHistory,
}

var historyServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded snapshots over HTTP",
	RunE:  serveHistory,
}

func init() {
	sf := historyServeCmd.Flags()
	sf.StringVar(&serveOpts.store, "store", "jsonl", "history store kind (jsonl or sqlite)")
	sf.StringVar(&serveOpts.path, "path", "", "history store path")
	sf.StringVar(&serveOpts.addr, "addr", ":8080", "listen address")
	sf.StringVar(&serveOpts.token, "token", "", "bearer token required from clients")
	_ = historyServeCmd.MarkFlagRequired("path")
	historyCmd.AddCommand(historyServeCmd)

	f := historyExportCmd.Flags()
	f.StringVar(&exportOpts.store, "store", "jsonl", "history store kind (jsonl or sqlite)")
	f.StringVar(&exportOpts.path, "path", "", "history store path")
	f.StringVar(&exportOpts.format, "format", "csv", "output format (csv or json)")
	f.StringVarP(&exportOpts.out, "output", "o", "", "output file (default stdout)")
	f.StringVar(&exportOpts.siteID, "site", "", "only this site")
	f.StringVar(&exportOpts.batteryID, "battery", "", "only this battery")
	f.StringVar(&exportOpts.phase, "phase", "", "only this phase (update, decide, final)")
	f.IntVar(&exportOpts.fromTick, "from", 0, "first tick")
	f.IntVar(&exportOpts.toTick, "to", 0, "tick after the last one (0 for no bound)")
	_ = historyExportCmd.MarkFlagRequired("path")
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func exportHistory(cmd *cobra.Command, args []string) (err error) {
	store, err := history.Open(exportOpts.store, exportOpts.path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	snaps, err := store.Query(context.Background(), history.Query{
		SiteID:    exportOpts.siteID,
		BatteryID: exportOpts.batteryID,
		Phase:     model.Phase(exportOpts.phase),
		FromTick:  exportOpts.fromTick,
		ToTick:    exportOpts.toTick,
	})
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	var w io.Writer = cmd.OutOrStdout()
	if exportOpts.out != "" {
		f, err := os.Create(exportOpts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.Write(w, exportOpts.format, snaps)
}

func serveHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(serveOpts.store, serveOpts.path)
	if err != nil {
		return err
	}
	defer store.Close()

	log := logger.New("history-api")
	mux := http.NewServeMux()
	mux.Handle(historyapi.Path, historyapi.NewHandler(store, serveOpts.token))
	srv := &http.Server{Addr: serveOpts.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("history server shutdown: %v", err)
		}
	}()
	log.Infof("serving history on %s%s", serveOpts.addr, historyapi.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
