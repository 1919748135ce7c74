package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/familyos/internal/auth"
	"github.com/dukerupert/familyos/internal/email"
	"github.com/dukerupert/familyos/internal/handler"
	"github.com/dukerupert/familyos/internal/media"
	"github.com/dukerupert/familyos/internal/middleware"
	"github.com/dukerupert/familyos/internal/push"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

// Config carries everything the server needs beyond its database.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	BaseURL   string

	Media media.Config

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	EmailClient *email.Client
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Tokens
	familyStore *store.FamilyStore
	authH       *handler.AuthHandler
	familyH     *handler.FamilyHandler
	messageH    *handler.MessageHandler
	mediaH      *handler.MediaHandler
	pushH       *handler.PushHandler
	shoppingH   *handler.ShoppingHandler
	taskH       *handler.TaskHandler
	calendarH   *handler.CalendarHandler
	billH       *handler.BillHandler
	routineH    *handler.RoutineHandler
	rateLimiter *middleware.RateLimiter
	notifier    *push.Notifier
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	userStore := store.NewUserStore(db)
	familyStore := store.NewFamilyStore(db)
	messageStore := store.NewMessageStore(db)
	shoppingStore := store.NewShoppingStore(db)
	taskStore := store.NewTaskStore(db)
	eventStore := store.NewEventStore(db)
	billStore := store.NewBillStore(db)
	routineStore := store.NewRoutineStore(db)
	pushStore := store.NewPushStore(db)

	if cfg.Media.ProxyURL == "" {
		cfg.Media.ProxyURL = cfg.BaseURL
	}
	mediaStore := media.New(cfg.Media)

	emailClient := cfg.EmailClient
	if emailClient == nil {
		emailClient = email.NewClient("", "", cfg.BaseURL)
	}

	// Push notifications for new messages
	var pushH *handler.PushHandler
	var notifier *push.Notifier
	var msgNotifier handler.MessageNotifier
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		notifier = push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))
		msgNotifier = notifier
		pushH = handler.NewPushHandler(pushStore, familyStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      tokens,
		familyStore: familyStore,
		authH:       handler.NewAuthHandler(userStore, tokens, logger.With("component", "auth")),
		familyH:     handler.NewFamilyHandler(familyStore, userStore, emailClient, hub, logger.With("component", "family")),
		messageH:    handler.NewMessageHandler(messageStore, familyStore, hub, msgNotifier, logger.With("component", "message")),
		mediaH:      handler.NewMediaHandler(mediaStore, familyStore, logger.With("component", "media")),
		pushH:       pushH,
		shoppingH:   handler.NewShoppingHandler(shoppingStore, familyStore, hub, logger.With("component", "shopping")),
		taskH:       handler.NewTaskHandler(taskStore, familyStore, hub, logger.With("component", "task")),
		calendarH:   handler.NewCalendarHandler(eventStore, familyStore, hub, logger.With("component", "calendar")),
		billH:       handler.NewBillHandler(billStore, familyStore, hub, logger.With("component", "bill")),
		routineH:    handler.NewRoutineHandler(routineStore, familyStore, hub, logger.With("component", "routine")),
		rateLimiter: middleware.NewRateLimiter(),
		notifier:    notifier,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the push notifier, or nil when push is not configured.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

// Hub returns the live channel hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/sign-up", s.rateLimited("auth", middleware.ByIP, authLimit, s.authH.SignUp))
	outerMux.HandleFunc("POST /api/auth/sign-in", s.rateLimited("auth", middleware.ByIP, authLimit, s.authH.SignIn))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "live_clients": s.hub.ClientCount()})
}

// Sign-up and sign-in share one budget per address.
var (
	authLimit    = middleware.Limit{Requests: 10, Window: time.Minute}
	messageLimit = middleware.Limit{Requests: 60, Window: time.Minute}
)

func (s *Server) rateLimited(scope string, key func(*http.Request) string, l middleware.Limit, h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, scope, key, l)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Families and memberships
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("PATCH /api/families/{family_id}", s.familyH.Rename)
	mux.HandleFunc("GET /api/memberships", s.familyH.Memberships)
	mux.HandleFunc("GET /api/invitations", s.familyH.Invitations)
	mux.HandleFunc("POST /api/invitations/{id}/accept", s.familyH.Accept)
	mux.HandleFunc("POST /api/invitations/{id}/decline", s.familyH.Decline)
	mux.HandleFunc("POST /api/families/{family_id}/invitations", s.familyH.Invite)
	mux.HandleFunc("GET /api/families/{family_id}/members", s.familyH.Members)
	mux.HandleFunc("DELETE /api/families/{family_id}/members/{member_id}", s.familyH.RemoveMember)

	// Chat
	mux.HandleFunc("GET /api/families/{family_id}/messages", s.messageH.List)
	mux.HandleFunc("POST /api/families/{family_id}/messages", s.rateLimited("messages", middleware.ByUser, messageLimit, s.messageH.Create))
	mux.HandleFunc("GET /api/families/{family_id}/messages/{id}", s.messageH.Get)
	mux.HandleFunc("DELETE /api/families/{family_id}/messages/{id}", s.messageH.Delete)
	mux.HandleFunc("POST /api/families/{family_id}/read", s.messageH.MarkRead)
	mux.HandleFunc("GET /api/families/{family_id}/unread", s.messageH.Unread)
	mux.HandleFunc("PUT /api/families/{family_id}/media/{name}", s.mediaH.Upload)
	mux.HandleFunc("GET /api/families/{family_id}/media/{name}", s.mediaH.Download)

	// Shopping list
	mux.HandleFunc("GET /api/families/{family_id}/shopping", s.shoppingH.List)
	mux.HandleFunc("POST /api/families/{family_id}/shopping", s.shoppingH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/shopping/{id}/check", s.shoppingH.ToggleChecked)
	mux.HandleFunc("DELETE /api/families/{family_id}/shopping/{id}", s.shoppingH.Delete)
	mux.HandleFunc("POST /api/families/{family_id}/shopping/clear-checked", s.shoppingH.ClearChecked)

	// Tasks
	mux.HandleFunc("GET /api/families/{family_id}/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/families/{family_id}/tasks", s.taskH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("DELETE /api/families/{family_id}/tasks/{id}", s.taskH.Delete)

	// Calendar
	mux.HandleFunc("GET /api/families/{family_id}/calendar", s.calendarH.List)
	mux.HandleFunc("POST /api/families/{family_id}/calendar", s.calendarH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/calendar/{id}", s.calendarH.Get)
	mux.HandleFunc("PUT /api/families/{family_id}/calendar/{id}", s.calendarH.Update)
	mux.HandleFunc("DELETE /api/families/{family_id}/calendar/{id}", s.calendarH.Delete)

	// Bills
	mux.HandleFunc("GET /api/families/{family_id}/bills", s.billH.List)
	mux.HandleFunc("POST /api/families/{family_id}/bills", s.billH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/bills/{id}/pay", s.billH.Pay)
	mux.HandleFunc("DELETE /api/families/{family_id}/bills/{id}", s.billH.Delete)

	// Routines
	mux.HandleFunc("GET /api/families/{family_id}/routines", s.routineH.List)
	mux.HandleFunc("POST /api/families/{family_id}/routines", s.routineH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/routines/{id}/complete", s.routineH.Complete)
	mux.HandleFunc("DELETE /api/families/{family_id}/routines/{id}", s.routineH.Delete)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	}

	// Live channel
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.familyStore, s.logger.With("component", "websocket")))
}
