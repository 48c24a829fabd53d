// Package api wires the node's shared state to spec.md §6's HTTP route
// table via chi. Routes under /bincode/* (except, by the source's own
// quirk, /bincode/transact) exchange RLP; everything else exchanges
// JSON. Unknown routes fall through to chi's default 404 handler.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazukachain/bazuka/node"
)

// NewRouter builds the node's HTTP surface. registry is used to serve
// /metrics; pass the same registry NewMetrics registered against. The
// /miner/* routes are only mounted when nodeCtx already has a Miner
// attached (SetMiner before calling NewRouter), matching spec.md's "(PoW)"
// annotation on those three routes.
func NewRouter(nodeCtx *node.Context, registry prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stats", handleStats(nodeCtx))
	r.Get("/peers", handleGetPeers(nodeCtx))
	r.Post("/peers", handlePostPeers(nodeCtx))
	r.Post("/bincode/transact", handleTransact(nodeCtx))
	r.Get("/bincode/headers", handleGetHeaders(nodeCtx))
	r.Get("/bincode/blocks", handleGetBlocks(nodeCtx))
	r.Post("/bincode/blocks", handlePostBlock(nodeCtx))

	if nodeCtx.Miner() != nil {
		r.Get("/miner/puzzle", handleMinerPuzzle(nodeCtx))
		r.Post("/miner/solution", handleMinerSolution(nodeCtx))
		r.Post("/miner", handleMinerWebhook(nodeCtx))
	}

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}
