package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"gopkg.in/tucnak/telebot.v2"

	"github.com/otcdesk/exchange-desk-bot/bot"
	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/logger"
)

const handleTimeout = 25 * time.Second

// Server exposes the bot over HTTP: Telegram webhooks for both channels,
// a status page and Prometheus metrics.
type Server struct {
	store        *db.Store
	router       *bot.Router
	notification *bot.NotificationRouter

	srv *fasthttp.Server
}

func NewServer(store *db.Store, r *bot.Router, n *bot.NotificationRouter) *Server {
	s := &Server{store: store, router: r, notification: n}

	rt := router.New()
	rt.GET("/", s.handleStatus)
	rt.POST("/webhook", s.handleWebhook(func(ctx context.Context, upd bot.Update) {
		r.HandleUpdate(ctx, upd)
	}))
	rt.POST("/notification-webhook", s.handleWebhook(func(ctx context.Context, upd bot.Update) {
		n.HandleUpdate(ctx, upd)
	}))
	rt.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	s.srv = &fasthttp.Server{
		Handler:         rt.Handler,
		ReadBufferSize:  1024 * 16,
		WriteBufferSize: 1024 * 16,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	logger.Info("http server listening", "addr", addr)
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

type statusResponse struct {
	Status   string   `json:"status"`
	Service  string   `json:"service"`
	Features []string `json:"features"`
	Stats    *stats   `json:"stats,omitempty"`
}

type stats struct {
	Users  int64 `json:"users"`
	Orders int64 `json:"orders"`
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	resp := statusResponse{
		Status:  "ok",
		Service: "exchange-desk-bot",
		Features: []string{
			"orders",
			"support-chat",
			"staff-notifications",
		},
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stats are best effort: the page stays up even when the store is down.
	users, uerr := s.store.CountUsers(reqCtx)
	orders, oerr := s.store.CountOrders(reqCtx)
	if uerr == nil && oerr == nil {
		resp.Stats = &stats{Users: users, Orders: orders}
	} else {
		logger.Warn("status stats unavailable", "users_err", uerr, "orders_err", oerr)
	}

	writeJSON(ctx, fasthttp.StatusOK, resp)
}

// handleWebhook decodes a Telegram update and hands it to the given channel
// router. Telegram retries non-2xx responses, so everything short of a
// transport failure answers 200; an undecodable body is acknowledged with
// ok:false instead of being re-delivered forever.
func (s *Server) handleWebhook(handle func(context.Context, bot.Update)) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var u telebot.Update
		if err := json.Unmarshal(ctx.PostBody(), &u); err != nil {
			logger.Warn("webhook body undecodable", "error", err)
			writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"ok": false})
			return
		}

		upd, ok := bot.FromTelebotUpdate(u)
		if ok {
			reqCtx, cancel := context.WithTimeout(context.Background(), handleTimeout)
			handle(reqCtx, upd)
			cancel()
		}

		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"ok": true})
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(body)
}
