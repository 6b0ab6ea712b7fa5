// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/libraryhub/internal/app/features/auditlog"
	borrowfeature "github.com/dalemusser/libraryhub/internal/app/features/borrow"
	healthfeature "github.com/dalemusser/libraryhub/internal/app/features/health"
	paymentfeature "github.com/dalemusser/libraryhub/internal/app/features/payment"
	userinfofeature "github.com/dalemusser/libraryhub/internal/app/features/userinfo"
	auditstore "github.com/dalemusser/libraryhub/internal/app/store/audit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. The engines built in Startup are mounted
// under /api; bearer tokens are resolved to users for every /api request.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("services not initialized; Startup must run first")
	}
	return newRouter(svc, appCfg, deps, logger), nil
}

func newRouter(s *services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, s.queue, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Receipt documents carry a random component in their names.
	r.Handle(appCfg.ReceiptsURL+"/*", fileserver.Handler(appCfg.ReceiptsURL, s.receipts.Dir()))

	r.Route("/api", func(api chi.Router) {
		api.Use(s.tokens.LoadUser)

		userinfofeature.MountRoutes(api, userinfofeature.NewHandler(s.users, logger))

		borrowHandler := borrowfeature.NewHandler(s.circulation, logger)
		api.Mount("/borrow", borrowfeature.Routes(borrowHandler))

		paymentHandler := paymentfeature.NewHandler(s.payments, s.limiter, logger)
		api.Mount("/payment", paymentfeature.Routes(paymentHandler))

		auditHandler := auditlogfeature.NewHandler(auditstore.New(deps.MongoDatabase), logger)
		api.Mount("/audit", auditlogfeature.Routes(auditHandler))
	})

	return r
}
