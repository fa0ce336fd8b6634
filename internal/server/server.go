// Package server assembles the stores, services, and middleware pipelines
// into the single entry proxy the HTTP listener serves.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/fundgateapp/fundgate/internal/auth"
	"github.com/fundgateapp/fundgate/internal/config"
	"github.com/fundgateapp/fundgate/internal/docstore"
	"github.com/fundgateapp/fundgate/internal/email"
	"github.com/fundgateapp/fundgate/internal/errorreport"
	"github.com/fundgateapp/fundgate/internal/handler"
	"github.com/fundgateapp/fundgate/internal/magiclink"
	"github.com/fundgateapp/fundgate/internal/middleware"
	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/payments"
	"github.com/fundgateapp/fundgate/internal/session"
	"github.com/fundgateapp/fundgate/internal/store"
	"github.com/fundgateapp/fundgate/internal/websocket"
)

// infraSuffixes are hosting-platform hosts that must never resolve as tenant
// custom domains.
var infraSuffixes = []string{".fly.dev", ".ngrok-free.app"}

type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Manager
	hub      *websocket.Hub
	counters *middleware.MemoryStore

	users *store.UserStore
	orgs  *store.OrganizationStore
	links *store.MagicLinkStore
	audit *store.AuditStore
	docs  *store.DocumentStore
	calls *store.CapitalCallStore

	authH     *handler.AuthHandler
	orgH      *handler.OrgHandler
	docH      *handler.DocumentHandler
	callH     *handler.CapitalCallHandler
	webhookH  *handler.WebhookHandler
	viewH     *handler.ViewHandler
	pages     *handler.Pages
	reporter  errorreport.Reporter
	magicLink *magiclink.Service
}

func New(
	cfg *config.Config,
	db *sql.DB,
	mailer *email.Client,
	pay *payments.Client,
	objects *docstore.Store,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(cfg.SessionSecret, cfg.Production()),
		hub:      websocket.NewHub(logger.With("component", "websocket")),
		counters: middleware.NewMemoryStore(),

		users: store.NewUserStore(db),
		orgs:  store.NewOrganizationStore(db),
		links: store.NewMagicLinkStore(db),
		audit: store.NewAuditStore(db),
		docs:  store.NewDocumentStore(db),
		calls: store.NewCapitalCallStore(db),
	}

	s.magicLink = magiclink.NewService(
		s.links, s.users, s.orgs, s.sessions,
		cfg.SessionSecret, cfg.BaseURL, cfg.AdminAllowlist(),
		logger.With("component", "magiclink"),
	)

	s.authH = handler.NewAuthHandler(s.magicLink, s.sessions, mailer, s.audit, logger)
	s.orgH = handler.NewOrgHandler(s.orgs, s.users, logger)
	s.docH = handler.NewDocumentHandler(s.docs, s.orgs, objects, s.audit, s.hub, logger)
	s.callH = handler.NewCapitalCallHandler(s.calls, s.orgs, s.users, pay, mailer, s.hub, logger)
	s.webhookH = handler.NewWebhookHandler(pay, s.calls, s.audit, s.hub, logger)
	s.viewH = handler.NewViewHandler(s.orgs, s.docs, logger)
	s.pages = handler.NewPages()
	s.reporter = &errorreport.LogReporter{Logger: logger.With("component", "errorreport")}

	return s
}

// Hub exposes the activity-feed hub for event publication outside HTTP.
func (s *Server) Hub() *websocket.Hub { return s.hub }

// MagicLinks exposes the link store for the expiry sweeper.
func (s *Server) MagicLinks() *store.MagicLinkStore { return s.links }

// Counters exposes the rate-limit counter store for the cleanup sweeper.
func (s *Server) Counters() *middleware.MemoryStore { return s.counters }

// Router builds the full middleware pipeline: request logging wraps the
// entry proxy, which dispatches to the webhook, domain, guarded-app, and
// passthrough pipelines.
func (s *Server) Router() http.Handler {
	limiterLog := s.logger.With("component", "ratelimit")
	authLimit := middleware.NewLimiter(s.counters, middleware.AuthLimits, s.audit, limiterLog)
	apiLimit := middleware.NewLimiter(s.counters, middleware.APILimits, s.audit, limiterLog)
	sigLimit := middleware.NewLimiter(s.counters, middleware.SignatureLimits, s.audit, limiterLog)
	strictLimit := middleware.NewLimiter(s.counters, middleware.StrictLimits, s.audit, limiterLog)

	passthrough := s.passthroughMux(authLimit)
	app := middleware.NewGuard(s.sessions, s.appMux(authLimit, apiLimit, sigLimit, strictLimit), s.logger.With("component", "guard"))

	domain := &middleware.Domain{
		Config: middleware.DomainConfig{
			SignupHost:   s.cfg.SignupHost(),
			LoginHost:    s.cfg.LoginHost(),
			MarketingURL: s.cfg.MarketingURL,
		},
		App:  app,
		View: passthrough,
	}

	entry := &middleware.Entry{
		Classifier: &middleware.Classifier{
			AppHost:       middleware.StripPort(s.cfg.AppHost()),
			RootDomain:    s.cfg.RootDomain,
			WebhookHost:   s.cfg.WebhookHost(),
			InfraSuffixes: infraSuffixes,
		},
		Analytics:   http.HandlerFunc(s.analytics),
		Webhook:     s.webhookMux(),
		Domain:      domain,
		App:         app,
		Passthrough: passthrough,
		Reporter:    s.reporter,
		Logger:      s.logger,
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(entry)
}

// appMux is the guarded application surface: pages plus the JSON API.
func (s *Server) appMux(authLimit, apiLimit, sigLimit, strictLimit *middleware.Limiter) *http.ServeMux {
	mux := http.NewServeMux()

	// Pages. The landing handler doubles as the 404 for unknown paths.
	mux.HandleFunc("GET /", s.pages.Landing)
	mux.HandleFunc("GET /login", s.pages.Login)
	mux.HandleFunc("GET /lp/login", s.pages.LPLogin)
	mux.HandleFunc("GET /admin/login", s.pages.AdminLogin)
	mux.HandleFunc("GET /signup", s.pages.Signup)
	mux.HandleFunc("GET /onboarding", s.pages.Onboarding)
	mux.HandleFunc("GET /welcome", s.pages.Welcome)
	mux.HandleFunc("GET /hub", s.pages.Hub)
	mux.HandleFunc("GET /admin", s.pages.AdminDashboard)
	mux.HandleFunc("GET /dashboard", s.pages.AdminDashboard)
	mux.HandleFunc("GET /viewer-portal", s.pages.ViewerPortal)
	mux.HandleFunc("GET /viewer-redirect", s.pages.ViewerRedirect)
	mux.HandleFunc("GET /health", s.pages.Health)

	// Auth flows.
	mux.Handle("POST /api/auth/admin-login", authLimit.Middleware(http.HandlerFunc(s.authH.AdminLogin)))
	mux.Handle("POST /api/auth/login", authLimit.Middleware(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// GP console: fund management.
	mux.Handle("POST /api/admin/orgs", apiLimit.Middleware(http.HandlerFunc(s.orgH.Create)))
	mux.Handle("POST /api/admin/orgs/{org_id}/domains", apiLimit.Middleware(http.HandlerFunc(s.orgH.AddDomain)))
	mux.Handle("POST /api/admin/orgs/{org_id}/members", apiLimit.Middleware(http.HandlerFunc(s.orgH.AddMember)))

	// Documents.
	mux.Handle("POST /api/orgs/{org_id}/documents", apiLimit.Middleware(http.HandlerFunc(s.docH.Upload)))
	mux.Handle("GET /api/orgs/{org_id}/documents", apiLimit.Middleware(http.HandlerFunc(s.docH.List)))
	mux.Handle("GET /api/orgs/{org_id}/documents/{id}", apiLimit.Middleware(http.HandlerFunc(s.docH.Download)))
	mux.Handle("DELETE /api/orgs/{org_id}/documents/{id}", apiLimit.Middleware(http.HandlerFunc(s.docH.Delete)))
	mux.Handle("POST /api/orgs/{org_id}/documents/{id}/signature", sigLimit.Middleware(http.HandlerFunc(s.docH.Sign)))

	// Capital calls.
	mux.Handle("POST /api/orgs/{org_id}/capital-calls", apiLimit.Middleware(http.HandlerFunc(s.callH.Create)))
	mux.Handle("GET /api/orgs/{org_id}/capital-calls", apiLimit.Middleware(http.HandlerFunc(s.callH.ListByOrg)))
	mux.Handle("GET /api/capital-calls", apiLimit.Middleware(http.HandlerFunc(s.callH.ListMine)))
	mux.Handle("POST /api/capital-calls/{id}/pay", strictLimit.Middleware(http.HandlerFunc(s.callH.Pay)))

	// GP dashboard activity feed.
	mux.Handle("GET /api/orgs/{org_id}/feed", websocket.HandleActivityFeed(s.hub, s.authorizeFeed, s.logger.With("component", "websocket")))

	return mux
}

// passthroughMux serves the guard-exempt surface: tenant document views,
// magic-link verification, and unsubscribe links.
func (s *Server) passthroughMux(authLimit *middleware.Limiter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /view/domains/{host}", s.viewH.Domain)
	mux.HandleFunc("GET /view/domains/{host}/{path...}", s.viewH.Domain)
	mux.Handle("GET /verify", authLimit.Middleware(http.HandlerFunc(s.authH.Verify)))
	mux.HandleFunc("GET /unsubscribe", s.viewH.Unsubscribe)
	return mux
}

// webhookMux is the vendor webhook surface on the dedicated hooks host.
func (s *Server) webhookMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/stripe", s.webhookH.Stripe)
	mux.HandleFunc("GET /health", s.pages.Health)
	return mux
}

// analytics accepts ingest traffic and drops it. The path exists so client
// beacons never 404; forwarding to a vendor collector slots in here.
func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusAccepted)
}

// authorizeFeed admits only GP members of the org to its activity feed.
func (s *Server) authorizeFeed(r *http.Request, orgID int64) bool {
	if !auth.IsGP(r.Context()) {
		return false
	}
	m, err := s.orgs.GetMember(orgID, auth.UserID(r.Context()))
	if err != nil || m == nil {
		return false
	}
	return m.Role == model.RoleGP
}
