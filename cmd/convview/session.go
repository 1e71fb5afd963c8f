package main

import (
	"log"

	"github.com/ajramos/convview/internal/bridge"
	"github.com/ajramos/convview/internal/config"
	"github.com/ajramos/convview/internal/content"
	"github.com/ajramos/convview/internal/conversation"
	"github.com/ajramos/convview/internal/db"
	"github.com/ajramos/convview/internal/eventloop"
	"github.com/ajramos/convview/internal/host"
	"github.com/ajramos/convview/internal/imageload"
)

// session wires one conversation view: the host harness over the store, the view on its own
// loop, and an image loader that serves cid: parts from the store.
type session struct {
	harness *host.Harness
	bridge  *bridge.Bridge
	loop    *eventloop.Loop
	loader  *imageload.Loader
}

func newSession(cfg *config.Config, conv content.Conventions, store *db.Store, logger *log.Logger) *session {
	conversations := db.NewConversationStore(store)
	h := host.New(conversations, host.Options{
		Conventions: conv,
		Heights:     cfg.Heights,
		Logger:      logger,
	})

	loader := imageload.New(cfg.LoaderConfig(), logger)
	if cfg.Images.CacheSizes {
		loader.SetCache(db.NewImageSizeStore(store))
	}
	loader.Register("cid", h.OpenInline)

	loop := eventloop.New(logger)
	loop.Start()
	view := conversation.New(h, conversation.Options{
		Conventions: conv,
		Metrics:     cfg.Layout,
		Policy:      cfg.Policy,
		Dispatcher:  loop,
		Loader:      loader,
		Logger:      logger,
	})
	b := bridge.New(loop, view, logger)
	h.Attach(b)

	return &session{harness: h, bridge: b, loop: loop, loader: loader}
}

// Close stops image fetches first so no completion is posted to a closed loop
func (s *session) Close() {
	s.loader.Close()
	s.loop.Close()
}
