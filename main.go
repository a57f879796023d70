package main

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/crownlabs/academy-idp/internal/audit"
	"github.com/crownlabs/academy-idp/internal/authcode"
	"github.com/crownlabs/academy-idp/internal/client"
	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/internal/discover"
	"github.com/crownlabs/academy-idp/internal/jwks"
	"github.com/crownlabs/academy-idp/internal/oauth"
	"github.com/crownlabs/academy-idp/internal/session"
	"github.com/crownlabs/academy-idp/internal/token"
	"github.com/crownlabs/academy-idp/internal/user"
	"github.com/crownlabs/academy-idp/pkg/kafka"
	"github.com/crownlabs/academy-idp/pkg/kp"
	"github.com/crownlabs/academy-idp/pkg/logger"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

func main() {
	godotenv.Load()
	cfg := config.NewConfig()

	db, err := database.NewDatabase(cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("mongodb: %v", err)
	}
	defer db.Close()

	cache, err := database.NewRedisClient(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer cache.Close()

	var producer kafka.Publisher
	if len(cfg.KafkaConfig.Brokers) > 0 {
		producer, err = kafka.New(&kafka.Config{Brokers: cfg.KafkaConfig.Brokers})
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer producer.Close()
	}

	keyRepo := jwks.NewSigningKeyRepository(db, cache)
	jwtSvc := jwks.NewJWTService(keyRepo)

	clientRepo := client.NewClientRepository(db, cache)
	clientSvc := client.NewClientService(clientRepo, cfg.Bootstrap)

	codeRepo := authcode.NewAuthCodeRepository(db)
	userRepo := user.NewUserRepository(db)
	sessions := session.NewManager(cfg.JWTSecret)
	auditor := audit.NewPublisher(producer, cfg.KafkaConfig.AuditTopic)

	oauthSvc := oauth.NewOAuthService(clientSvc, codeRepo, userRepo, token.NewIssuer(jwtSvc), jwtSvc, auditor)
	oauthHandler := oauth.NewOAuthHandler(cfg, oauthSvc, clientSvc, sessions)
	clientHandler := client.NewClientHandler(clientSvc)
	discoverHandler := discover.NewDiscoverHandler(cfg, jwtSvc)

	ms := kp.NewMicroservice(cfg.Port)
	ms.Use(loggingMiddleware(cfg))
	ms.Use(kp.RecoverMiddleware)

	ms.GET("/.well-known/openid-configuration", discoverHandler.OpenidConfigurationHandler)
	ms.GET("/jwks.json", discoverHandler.JwksHandler)

	ms.GET("/oauth/authorize", oauthHandler.AuthorizeHandler)
	ms.POST("/oauth/token", oauthHandler.TokenHandler)
	ms.GET("/oauth/userinfo", oauthHandler.UserinfoHandler)
	ms.POST("/auth/login", oauthHandler.LoginHandler)

	ms.POST("/clients", clientHandler.RegisterHandler)
	ms.GET("/clients/{clientId}", clientHandler.GetHandler)

	ms.Start()
}

// loggingMiddleware gives every request its own transaction-scoped logger.
func loggingMiddleware(cfg *config.AppConfig) kp.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.NewLoggerWithConfig(cfg.ServiceName, cfg.Version, &cfg.LoggerConfig)

			sessionID := r.Header.Get("X-Session-Id")
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			l.StartTransaction(uuid.NewString(), sessionID)

			next.ServeHTTP(w, r.WithContext(mlog.With(r.Context(), l)))
		})
	}
}
