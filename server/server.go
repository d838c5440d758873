// Package server exposes run progress and prometheus metrics over http
// while a generation run is in flight.
package server

import (
	"context"
	"encoding/json"
	stdlog "log"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/geodataset/gridmaker/queue"
)

// Run serves /status, /queue and /metrics on address until ctx is done.
// tracker and q may be nil, the matching endpoints then report empty
// data.
func Run(ctx context.Context, address string, tracker *Tracker, q *queue.Queue) error {
	log := slog.Default()

	s := &server{tracker: tracker, queue: q}

	r := router.New()
	r.GET("/status", s.StatusHandler)
	r.GET("/queue", s.QueueHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	server := &fasthttp.Server{
		ReadTimeout: time.Second,
		Handler:     r.Handler,
	}

	go func() {
		log.Info("status server listening", "address", address)
		if err := server.ListenAndServe(address); err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	tracker *Tracker
	queue   *queue.Queue
}

func (s *server) StatusHandler(ctx *fasthttp.RequestCtx) {
	var snap Snapshot
	if s.tracker != nil {
		snap = s.tracker.Snapshot()
	}
	writeJSON(ctx, snap)
}

type queueResponse struct {
	Pending int          `json:"pending"`
	Items   []queue.Item `json:"items"`
}

func (s *server) QueueHandler(ctx *fasthttp.RequestCtx) {
	var resp queueResponse
	if s.queue != nil {
		items, err := s.queue.AllPending()
		if err != nil {
			ctx.Response.SetStatusCode(http.StatusInternalServerError)
			ctx.Response.SetBodyString(err.Error())
			return
		}
		resp = queueResponse{Pending: len(items), Items: items}
	}
	writeJSON(ctx, resp)
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	out, err := json.Marshal(v)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(out)
}
