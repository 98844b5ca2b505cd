package web

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/avstrong/staybook/internal/wizard"
)

func (s *Server) addRoutes(r chi.Router) {
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, s.loggerMiddleware(), s.recoverMiddleware())

	r.Get(s.conf.LivenessEndpoint, s.livenessHandler)
	r.Get("/api/rooms/v1", s.listRoomsHandler)

	r.Route("/api/bookings/v1", func(r chi.Router) {
		r.Post("/", s.startHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getHandler)
			r.Delete("/", s.discardHandler)
			r.Put("/room", s.selectRoomHandler)
			r.Post("/dates", s.selectDateHandler)
			r.Post("/guests", s.adjustGuestsHandler)
			r.Post("/rooms/{index}/guests", s.adjustRoomGuestsHandler)
			r.Put("/times", s.selectTimesHandler)
			r.Post("/promo", s.requestPromoHandler)
			r.Delete("/promo", s.removePromoHandler)
			r.Post("/next", s.stepHandler(wizard.Next{}))
			r.Post("/back", s.stepHandler(wizard.Back{}))
			r.Post("/skip", s.stepHandler(wizard.Skip{}))
			r.Post("/payment", s.paymentHandler)
		})
	})
}
