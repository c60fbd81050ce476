package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/axiomex/clobengine/internal/engine"
	"github.com/axiomex/clobengine/internal/feed"
	"github.com/axiomex/clobengine/internal/idgen"
	"github.com/axiomex/clobengine/internal/server"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// symbols lists the instruments this process matches, one engine and one
// market-data hub each, dispatched to by a single server.Server.
var symbols = []string{"AAPL", "MSFT", "GOOG"}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	idGen := idgen.UUIDGenerator{}

	engines := make([]server.Engine, 0, len(symbols))
	hubs := make(map[string]*feed.Hub, len(symbols))
	for _, symbol := range symbols {
		eng := engine.New(engine.Config{Symbol: symbol, IDGen: idGen})
		engines = append(engines, eng)
		hubs[symbol] = feed.NewHub(eng)
	}

	srv := server.New("0.0.0.0", 9001, idGen, engines...)

	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		srv.Run(ctx)
		return nil
	})
	for symbol, hub := range hubs {
		hub := hub
		log.Info().Str("symbol", symbol).Msg("starting market data hub")
		t.Go(func() error { return hub.Run(t) })
	}
	t.Go(func() error { return runFeedGateway(t, hubs) })

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}

// runFeedGateway serves one WebSocket endpoint per symbol
// (/feed/{SYMBOL}) for dashboards to subscribe to trade and book-snapshot
// updates.
func runFeedGateway(t *tomb.Tomb, hubs map[string]*feed.Hub) error {
	mux := http.NewServeMux()
	for symbol, hub := range hubs {
		hub := hub
		mux.HandleFunc("/feed/"+symbol, func(w http.ResponseWriter, r *http.Request) {
			if err := feed.ServeWS(hub, w, r); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("feed websocket session ended with error")
			}
		})
	}

	srv := &http.Server{Addr: "0.0.0.0:9002", Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-t.Dying():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
