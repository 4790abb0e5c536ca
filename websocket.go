package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/fuiz-us/fuiz/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTunnel adapts a websocket connection to the game.Tunnel interface.
// Sends never block: a full queue means the consumer has stalled and the
// connection is cut instead of holding up the game.
type wsTunnel struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func newWSTunnel(conn *websocket.Conn) *wsTunnel {
	return &wsTunnel{
		conn: conn,
		send: make(chan any, 64),
		done: make(chan struct{}),
	}
}

func (t *wsTunnel) SendMessage(message game.UpdateMessage) {
	t.enqueue(message)
}

func (t *wsTunnel) SendState(state game.SyncMessage) {
	t.enqueue(state)
}

func (t *wsTunnel) enqueue(msg any) {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.send <- msg:
	default:
		t.Close()
	}
}

func (t *wsTunnel) Close() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (t *wsTunnel) writePump() {
	defer t.conn.Close()

	for {
		select {
		case <-t.done:
			// Flush frames queued before the close, such as a join
			// rejection.
			for {
				select {
				case msg := <-t.send:
					if err := t.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		case msg := <-t.send:
			if err := t.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// serveWatch upgrades a watcher connection and runs its read loop. The
// first frame identifies the watcher: claim_id with a known id resumes its
// session, anything else mints a fresh identity.
func serveWatch(cfg *Config, manager *game.Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gid, err := game.ParseGameId(ps.ByName("gameid"))
		if err != nil {
			httpError(cfg, w, http.StatusBadRequest, "invalid game id")
			return
		}

		g, ok := manager.Get(gid)
		if !ok || g.Done() {
			httpError(cfg, w, http.StatusNotFound, "game not found")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WATCH: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		tunnel := newWSTunnel(conn)
		go tunnel.writePump()

		var first game.IncomingMessage
		if err := conn.ReadJSON(&first); err != nil || !first.IsGhost() {
			tunnel.Close()
			_ = conn.Close()
			return
		}

		// On rejection the write pump flushes the queued error frame and
		// closes the connection itself.
		id, resumed := identifyWatcher(manager, g, tunnel, first)
		if !resumed {
			tunnel.Close()
			return
		}

		logf(cfg, "WATCH: Watcher %s connected to game %s from %s", id, gid, realIP(r))

		defer func() {
			manager.Tunnels().Remove(id)
			tunnel.Close()
			_ = conn.Close()
			logf(cfg, "WATCH: Watcher %s disconnected from game %s", id, gid)
		}()

		for {
			var msg game.IncomingMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.IsGhost() {
				continue
			}
			g.ReceiveMessage(id, msg)
		}
	}
}

// identifyWatcher resolves the first frame to a watcher id. A claim for an
// unknown id falls back to minting a new one, so stale clients recover.
func identifyWatcher(manager *game.Manager, g *game.Game, tunnel *wsTunnel, first game.IncomingMessage) (game.Id, bool) {
	if first.Type == game.MsgClaimId {
		if id, err := game.ParseId(first.Id); err == nil {
			manager.Tunnels().Set(id, tunnel)
			if g.Reconnect(id) {
				return id, true
			}
			manager.Tunnels().Remove(id)
		}
	}

	id := game.NewId()
	manager.Tunnels().Set(id, tunnel)
	tunnel.SendMessage(game.IdAssignMessage{Type: game.TypeIdAssign, Id: id})
	if err := g.AddWatcher(id); err != nil {
		tunnel.SendMessage(game.ErrorMessage{Type: game.TypeError, Error: err.Error()})
		manager.Tunnels().Remove(id)
		return game.Id{}, false
	}
	return id, true
}
