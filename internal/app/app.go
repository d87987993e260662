package app

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"

	"github.com/abrezinsky/chronolap/internal/auth"
	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/handlers"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/repository"
	"github.com/abrezinsky/chronolap/internal/services"
	"github.com/abrezinsky/chronolap/internal/websocket"
)

// Config holds the runtime configuration
type Config struct {
	Addr    string
	DBPath  string
	BaseURL string
	// AllowedOrigins restricts CORS; empty means allow all, which suits
	// a LAN deployment at a race venue.
	AllowedOrigins []string
}

// App holds all application dependencies
type App struct {
	log      logger.Logger
	handlers *handlers.Handlers
	repo     *repository.Repository
	hub      *websocket.Hub
	cfg      Config
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg Config, adminAuth *auth.Auth) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	clock := clockwork.NewRealClock()
	broadcaster := broadcast.New(log)

	raceService := services.NewRaceService(log, repo, broadcaster, clock)
	categoryService := services.NewCategoryService(log, repo, raceService)
	participantService := services.NewParticipantService(log, repo, raceService, clock)
	tapService := services.NewTapService(log, repo, raceService, broadcaster, clock)

	hub := websocket.New(log, raceService, broadcaster)
	hub.Start()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		ip := getPreferredIP(realNetworkProvider{})
		baseURL = fmt.Sprintf("http://%s%s", ip, cfg.Addr)
	}

	h := handlers.New(
		raceService,
		categoryService,
		participantService,
		tapService,
		adminAuth,
		hub,
		log,
		baseURL,
	)

	return &App{
		log:      log,
		handlers: h,
		repo:     repo,
		hub:      hub,
		cfg:      cfg,
	}, nil
}

// Handler returns the configured HTTP handler with CORS applied
func (a *App) Handler() http.Handler {
	corsOptions := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}
	if len(a.cfg.AllowedOrigins) > 0 {
		corsOptions.AllowedOrigins = a.cfg.AllowedOrigins
	} else {
		corsOptions.AllowOriginFunc = func(origin string) bool { return true }
	}

	return cors.New(corsOptions).Handler(a.handlers.Router())
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Stop()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Run starts the HTTP server
func (a *App) Run() error {
	a.log.Info("Server starting", "addr", a.cfg.Addr)
	return http.ListenAndServe(a.cfg.Addr, a.Handler())
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.To4() == nil {
				continue
			}
			if ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
