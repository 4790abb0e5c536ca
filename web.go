package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/fuiz-us/fuiz/game"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second

	maxAddBodySize = 1 << 20
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func writeJSON(cfg *Config, w http.ResponseWriter, payload any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusOK)

	return json.NewEncoder(w).Encode(payload)
}

type addGameRequest struct {
	Config  game.FuizConfig `json:"config"`
	Options game.Options    `json:"options"`
}

type addGameResponse struct {
	GameId    game.GameId `json:"game_id"`
	WatcherId game.Id     `json:"watcher_id"`
}

// serveAddGame creates a game from a posted config and returns the game id
// plus the host's watcher id, which the host claims over the websocket.
func serveAddGame(cfg *Config, manager *game.Manager, stats *Stats, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req addGameRequest
		body := http.MaxBytesReader(w, r.Body, maxAddBodySize)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			httpError(cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		gid, g, err := manager.CreateGame(req.Config, req.Options)
		if err != nil {
			httpError(cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		hostId := game.NewId()
		if err := g.AddHost(hostId); err != nil {
			manager.Remove(gid)
			httpError(cfg, w, http.StatusInternalServerError, err.Error())
			return
		}

		stats.GameCreated()

		if err := writeJSON(cfg, w, addGameResponse{GameId: gid, WatcherId: hostId}); err != nil {
			errs <- err

			return
		}

		logf(cfg, "GAMES: Created game %s (%q) for %s in %s",
			gid,
			req.Config.Title,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveAlive(cfg *Config, manager *game.Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		alive := false
		if gid, err := game.ParseGameId(ps.ByName("gameid")); err == nil {
			alive = manager.Alive(gid)
		}

		if err := writeJSON(cfg, w, alive); err != nil {
			errs <- err
		}
	}
}

type countResponse struct {
	Current      int    `json:"current"`
	SinceRestart uint64 `json:"since_restart"`
	AllTime      uint64 `json:"all_time"`
}

func serveCount(cfg *Config, manager *game.Manager, stats *Stats, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		payload := countResponse{
			Current:      manager.Count(),
			SinceRestart: stats.SinceRestart(),
			AllTime:      stats.AllTime(),
		}

		if err := writeJSON(cfg, w, payload); err != nil {
			errs <- err
		}
	}
}

// serveJoinQR renders a PNG QR code pointing at the join URL for a game.
func serveJoinQR(cfg *Config, manager *game.Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gid, err := game.ParseGameId(ps.ByName("gameid"))
		if err != nil || !manager.Alive(gid) {
			httpError(cfg, w, http.StatusNotFound, "game not found")
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		path := strings.TrimSuffix(r.URL.Path, "/qr")
		url := scheme + "://" + r.Host + path

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			httpError(cfg, w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code for game %s (%s) to %s",
			gid,
			humanReadableSize(int64(written)),
			realIP(r),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("fuiz v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// reaperLoop periodically removes games that have been idle longer than the
// configured timeout.
func reaperLoop(ctx context.Context, cfg *Config, manager *game.Manager) {
	ticker := time.NewTicker(cfg.gameTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped := manager.Sweep(); reaped > 0 {
				logf(cfg, "GAMES: Reaped %d idle game(s)", reaped)
			}
		}
	}
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: fuiz v%s", releaseVersion)

	manager := game.NewManager(game.SystemClock(), cfg.gameTimeout)
	stats := newStats(cfg.statsFile)

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, `{"error":"internal server error"}`+"\n")
	}

	errs := make(chan error, 64)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.POST(cfg.prefix+"/add", serveAddGame(cfg, manager, stats, errs))

	mux.GET(cfg.prefix+"/alive/:gameid", serveAlive(cfg, manager, errs))

	mux.GET(cfg.prefix+"/count", serveCount(cfg, manager, stats, errs))

	mux.GET(cfg.prefix+"/watch/:gameid", serveWatch(cfg, manager))

	mux.GET(cfg.prefix+"/join/:gameid/qr", serveJoinQR(cfg, manager, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go reaperLoop(ctx, cfg, manager)

	go func() {
		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
