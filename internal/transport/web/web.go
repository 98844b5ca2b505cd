package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/logger"
)

type Server struct {
	srv      *http.Server
	router   chi.Router
	l        *logger.Logger
	conf     Conf
	bManager *booking.Manager
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
	// Lang selects how amounts are rendered in responses; zero means English.
	Lang language.Tag
}

func New(ctx context.Context, conf Conf, bookingManager *booking.Manager) (*Server, error) {
	router := chi.NewRouter()

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           router,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	if conf.LivenessEndpoint == "" {
		conf.LivenessEndpoint = "/liveness"
	}

	if conf.Lang == language.Und {
		conf.Lang = language.English
	}

	server := &Server{
		srv:      srv,
		router:   router,
		l:        conf.L,
		conf:     conf,
		bManager: bookingManager,
	}

	server.addRoutes(router)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}
