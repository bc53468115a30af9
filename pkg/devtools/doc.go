// Package devtools serves an HTTP inspection API for a reactor runtime and
// streams scheduler steps to websocket clients.
//
// The Feed is a reactor.Middleware, so it must be installed when the
// runtime is created; the Server is attached afterwards:
//
//	feed := devtools.NewFeed()
//	rt := reactor.New(reactor.WithMiddleware(feed))
//	srv := devtools.New(rt, devtools.WithFeed(feed))
//	go srv.ListenAndServe(ctx, "localhost:7070")
//
// Routes:
//
//	GET /healthz          runtime ID, instance and client counts
//	GET /instances        rt.Snapshot()
//	GET /instances/{id}   one instance
//	GET /portals          portal bindings with reference counts
//	GET /metrics          Prometheus exposition
//	GET /events           websocket feed of StepEvent JSON messages
package devtools
