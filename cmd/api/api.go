package api

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/service/auth"
	"github.com/mridulsharma03/snapnet-server/service/follow"
	"github.com/mridulsharma03/snapnet-server/service/mailer"
	"github.com/mridulsharma03/snapnet-server/service/payment"
	"github.com/mridulsharma03/snapnet-server/service/post"
	"github.com/mridulsharma03/snapnet-server/service/scheduler"
	"github.com/mridulsharma03/snapnet-server/service/user"
	"github.com/mridulsharma03/snapnet-server/storage"
)

type APIServer struct {
	address string
	db      *gorm.DB
	cfg     *config.Config
	store   storage.ObjectStore
	mail    mailer.Sender
}

func NewApiServer(address string, db *gorm.DB, cfg *config.Config, store storage.ObjectStore, mail mailer.Sender) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
		cfg:     cfg,
		store:   store,
		mail:    mail,
	}
}

func (s *APIServer) Run(ctx context.Context) error {
	router := mux.NewRouter()
	router.Use(utils.TrustedHostMiddleware(s.cfg.AllowedHosts))

	authenticator := utils.NewAuthenticator(s.cfg.JWTSecret)
	limiter := utils.NewRateLimiter(s.cfg.RateLimit, s.cfg.RateLimitWindow)
	validate := validator.New()
	tokens := auth.NewTokenService(s.cfg)
	jobs := scheduler.New(s.db, s.mail, s.cfg)

	authHandler := auth.NewHandler(s.db, s.cfg, tokens, s.mail, limiter, jobs, validate)
	authHandler.RegisterRoutes(router)

	userHandler := user.NewHandler(s.db, s.cfg, s.store, authenticator, validate)
	userHandler.RegisterRoutes(router)

	followHandler := follow.NewHandler(s.db, authenticator, validate)
	followHandler.RegisterRoutes(router)

	postHandler := post.NewHandler(s.db, s.cfg, s.store, s.mail, authenticator, validate)
	postHandler.RegisterRoutes(router)

	paymentHandler := payment.NewHandler(s.db, s.cfg, authenticator)
	paymentHandler.RegisterRoutes(router)

	jobs.StartDigest(ctx)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}
