// Package cmd implements the command-line interface for animexin-ctl.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/history"
	"github.com/Atik203/animexin-player-controller-extension/icon"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/network"
	"github.com/Atik203/animexin-player-controller-extension/prefs"
	"github.com/Atik203/animexin-player-controller-extension/server"
	"github.com/Atik203/animexin-player-controller-extension/session"
	"github.com/Atik203/animexin-player-controller-extension/where"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("page", "p", "", "URL of the watch page to control")
	lo.Must0(serveCmd.MarkFlagRequired("page"))

	serveCmd.Flags().StringP("listen", "l", "", "Listen address for the control API (overrides config)")
}

// serveCmd runs the playback session and the local control API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback session and the local control API for a watch page",
	Long: `Run the playback session and the local control API for a watch page.

The page is fetched once for inspection; playback control flows through
in-page agents that connect to the /ws endpoint of the control API.`,
	Run: func(cmd *cobra.Command, args []string) {
		pageURL := lo.Must(cmd.Flags().GetString("page"))
		if listen := lo.Must(cmd.Flags().GetString("listen")); listen != "" {
			viper.Set(key.ServerListen, listen)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		doc, err := network.FetchDocument(ctx, pageURL)
		handleErr(err)

		var hist *history.Store
		if viper.GetBool(key.HistorySaveOnAdvance) {
			hist, err = history.New(where.HistoryDB())
			handleErr(err)
		}

		hub := newAgentHub()
		sess := &session.Session{
			Doc:      doc,
			Store:    prefs.NewStore(),
			OpenPort: hub.Open,
		}
		sess.OnAdvance = func(seriesID string, next mo.Option[string]) {
			if hist == nil {
				return
			}
			state := sess.State()
			err := hist.Record(&history.Entry{
				SeriesID:    seriesID,
				FromURL:     pageURL,
				ToURL:       next.OrElse(""),
				PositionSec: state.Position,
				DurationSec: state.Duration,
			})
			if err != nil {
				log.Warnf("serve: recording advance: %v", err)
			}
		}

		handleErr(sess.Start(ctx))
		defer sess.Stop()

		srv := server.NewServer(sess, hist)
		srv.OnAgentPort = hub.Offer

		fmt.Printf("%s controlling %s\n", icon.Get(icon.Progress), pageURL)
		handleErr(srv.Run(ctx))

		if hist != nil {
			_ = hist.Close()
		}
	},
}

// agentOpenTimeout bounds how long an attachment waits for an in-page agent
// to connect before the attempt fails.
const agentOpenTimeout = 30 * time.Second

// errNoAgent indicates no in-page agent connected within the open window.
var errNoAgent = errors.New("no in-page agent connected")

// agentHub bridges agent connections arriving on the control API's websocket
// endpoint to the session's port opener. Each attachment consumes the most
// recently connected agent; a reconnect after a page rebuild supersedes any
// stale port still waiting.
type agentHub struct {
	mu      sync.Mutex
	pending chan dom.MessagePort
}

func newAgentHub() *agentHub {
	return &agentHub{pending: make(chan dom.MessagePort, 1)}
}

// Offer registers a freshly connected agent port, displacing any earlier
// port that no attachment has claimed yet.
func (h *agentHub) Offer(port dom.MessagePort) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case stale := <-h.pending:
		_ = stale.Close()
	default:
	}
	h.pending <- port
	log.Debug("serve: agent port registered")
}

// Open hands the next agent port to an attachment, waiting for a connection
// when none is available yet.
func (h *agentHub) Open(dom.Element) (dom.MessagePort, error) {
	select {
	case port := <-h.pending:
		return port, nil
	case <-time.After(agentOpenTimeout):
		return nil, errNoAgent
	}
}
