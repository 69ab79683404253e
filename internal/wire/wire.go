// internal/wire/wire.go
package wire

import (
	"net/http"
	"time"

	"room-booking/internal/adaptor"
	"room-booking/internal/data/repository"
	"room-booking/internal/tasks"
	"room-booking/internal/usecase"
	"room-booking/pkg/clock"
	"room-booking/pkg/middleware"
	"room-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router   *chi.Mux
	Service  *usecase.Service
	Runner   *tasks.Runner
	Periodic []*tasks.Periodic
}

// Wiring menginisialisasi semua dependencies
func Wiring(repo *repository.Repository, config *utils.Config, logger *zap.Logger) (*App, error) {
	clk := clock.NewSystem()
	queue := tasks.NewQueue(repo.Task, clk, logger)

	// Initialize services dan handlers
	service, err := usecase.NewService(repo, queue, config, clk, logger)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(config.Booking.Timezone)
	if err != nil {
		return nil, err
	}
	handler := adaptor.NewHandler(service, loc, logger)

	runner, periodic := wireTasks(repo, queue, service, config, clk, logger)

	// Setup router
	router := setupRouter(handler, service, config, logger)

	return &App{
		Router:   router,
		Service:  service,
		Runner:   runner,
		Periodic: periodic,
	}, nil
}

// setupRouter konfigurasi Chi router
func setupRouter(
	handler *adaptor.Handler,
	service *usecase.Service,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))

	authMw := middleware.Auth(service.Auth, middleware.IsError(usecase.ErrUnauthenticated), logger)

	// Apply routes
	wireAuth(r, handler.Auth, authMw)
	wireRoom(r, handler.Room, authMw)
	wireReservation(r, handler.Reservation, authMw)
	wireAdmin(r, handler.Admin, authMw, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", nil)
	})

	return r
}
