package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/twinkly-weather/internal/app"
	diag "github.com/coreman2200/twinkly-weather/internal/diagnostics"
	"github.com/coreman2200/twinkly-weather/internal/icon"
	"github.com/coreman2200/twinkly-weather/internal/intent"
	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/tests"
)

const writeWait = 200 * time.Millisecond

// Controller is the part of the control loop the server drives;
// *app.Conductor implements it.
type Controller interface {
	Wake()
	RequestReconnect()
	RunTest(plan tests.Plan) bool
	Status() app.Status
}

// Server streams preview frames and diagnostics to browsers and accepts
// display intent changes. It never talks to the device itself.
type Server struct {
	Layout    layout.Layout
	Intent    *intent.Store
	Control   Controller
	Icons     *icon.Set
	IconsPath string
	Driver    string
	// Throttle drops preview broadcasts closer together than this.
	Throttle time.Duration

	mu          sync.RWMutex
	rgb         []byte
	frameID     uint64
	lastEmit    time.Time
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool
}

// client serialises writes; a websocket connection allows one writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func NewServer(l layout.Layout, store *intent.Store, ctl Controller) *Server {
	return &Server{
		Layout:      l,
		Intent:      store,
		Control:     ctl,
		Throttle:    50 * time.Millisecond, // ~20 FPS to the UI
		rgb:         make([]byte, l.Count()*3),
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
}

// Handler routes every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("GET /api/status", s.HandleStatus)
	mux.HandleFunc("GET /api/intent", s.HandleIntent)
	mux.HandleFunc("POST /api/intent", s.HandleIntent)
	mux.HandleFunc("GET /api/icons", s.HandleIcons)
	mux.HandleFunc("PUT /api/icons", s.HandleIcons)
	mux.HandleFunc("DELETE /api/icons/{name}", s.HandleDeleteIcon)
	return mux
}

// Publish broadcasts c as the current preview frame. Register it with
// render.Engine.Observe.
func (s *Server) Publish(c *render.Canvas) {
	s.mu.Lock()
	if len(s.rgb) != 3*len(c.Pix) {
		s.rgb = make([]byte, 3*len(c.Pix))
	}
	for i, p := range c.Pix {
		s.rgb[3*i], s.rgb[3*i+1], s.rgb[3*i+2] = p.R, p.G, p.B
	}
	s.frameID++
	now := time.Now()
	if s.lastEmit.Add(s.Throttle).After(now) {
		s.mu.Unlock()
		return
	}
	s.lastEmit = now
	f := Frame{T: now.UnixNano(), FrameID: s.frameID, W: c.W, H: c.H, RGB: append([]byte(nil), s.rgb...)}
	s.mu.Unlock()
	s.broadcastFrame(f)
}

// PushDiag forwards d to every /diag client. It satisfies diagnostics.Sink.
func (s *Server) PushDiag(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	for _, c := range s.snapshot(s.diagClients) {
		if err := c.send(b); err != nil {
			log.Debug().Err(err).Msg("write diag")
		}
	}
}

// Frame is one preview message: row-major RGB, base64 encoded by JSON.
type Frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	RGB     []byte `json:"rgb"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	s.sendTopology(c)
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.diagClients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.diagClients)
}

// drain reads until the peer goes away, then forgets it.
func (s *Server) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Control is a change request. Absent fields are left alone.
type Control struct {
	Mode      *intent.Mode `json:"mode,omitempty"`
	Location  *string      `json:"location,omitempty"`
	Interval  *int         `json:"interval,omitempty"`
	ShowClock *bool        `json:"show_clock,omitempty"`
	Reconnect bool         `json:"reconnect,omitempty"`
	RunTest   string       `json:"runTest,omitempty"`
	Stride    int          `json:"stride,omitempty"`
}

type Reply struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Intent intent.Intent `json:"intent"`
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Control
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, Reply{Error: "bad message: " + err.Error(), Intent: s.Intent.Load()})
			continue
		}
		s.reply(c, s.Apply(msg))
	}
}

func (s *Server) reply(c *client, rep Reply) {
	b, _ := json.Marshal(rep)
	if err := c.send(b); err != nil {
		log.Debug().Err(err).Msg("write reply")
	}
}

// Apply performs msg. Intent fields are validated together and saved in one
// step; an invalid request leaves the stored intent as it was.
func (s *Server) Apply(msg Control) Reply {
	var errs []error
	if msg.Mode != nil || msg.Location != nil || msg.Interval != nil || msg.ShowClock != nil {
		_, err := s.Intent.Update(func(in *intent.Intent) {
			if msg.Mode != nil {
				in.Mode = *msg.Mode
			}
			if msg.Location != nil {
				in.Location = *msg.Location
			}
			if msg.Interval != nil {
				in.Interval = *msg.Interval
			}
			if msg.ShowClock != nil {
				in.ShowClock = *msg.ShowClock
			}
		})
		if err != nil {
			errs = append(errs, err)
		} else if s.Control != nil {
			s.Control.Wake()
		}
	}
	if msg.Reconnect && s.Control != nil {
		s.Control.RequestReconnect()
	}
	if msg.RunTest != "" {
		if err := s.runTest(msg.RunTest, msg.Stride); err != nil {
			errs = append(errs, err)
		}
	}

	rep := Reply{OK: len(errs) == 0, Intent: s.Intent.Load()}
	if err := errors.Join(errs...); err != nil {
		rep.Error = err.Error()
		log.Warn().Err(err).Msg("control request rejected")
	}
	return rep
}

var errTestBusy = errors.New("a panel check is already queued")

func (s *Server) runTest(name string, stride int) error {
	k, err := tests.Parse(name)
	if err != nil {
		s.PushDiag(diag.Diagnostic{
			Time: time.Now(), Severity: diag.Warn, Code: diag.CodeTestUnknown, Summary: "Unknown test name",
			Evidence: map[string]any{"name": name, "known": tests.Kinds},
		})
		return err
	}
	if s.Control == nil || !s.Control.RunTest(tests.Plan{Kind: k, Stride: stride}) {
		return errTestBusy
	}
	return nil
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"width":    s.Layout.Width(),
		"height":   s.Layout.Height(),
		"clients":  len(s.clients),
		"driver":   s.Driver,
	}
	s.mu.RUnlock()
	if s.Control != nil {
		st := s.Control.Status()
		resp["showing"] = st.Showing
		resp["exhausted"] = st.Exhausted
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Control == nil {
		http.Error(w, "no control loop", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.Control.Status())
}

func (s *Server) HandleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.Intent.Load())
		return
	}
	var msg Control
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rep := s.Apply(msg)
	code := http.StatusOK
	if !rep.OK {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, rep)
}

func (s *Server) HandleIcons(w http.ResponseWriter, r *http.Request) {
	if s.Icons == nil {
		http.Error(w, "icons not loaded", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.Icons.Entries())
		return
	}
	var e icon.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Icons.Put(e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.saveIcons(w) {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) HandleDeleteIcon(w http.ResponseWriter, r *http.Request) {
	if s.Icons == nil {
		http.Error(w, "icons not loaded", http.StatusServiceUnavailable)
		return
	}
	if !s.Icons.Delete(r.PathValue("name")) {
		http.NotFound(w, r)
		return
	}
	if s.saveIcons(w) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) saveIcons(w http.ResponseWriter) bool {
	if s.IconsPath == "" {
		return true
	}
	if err := s.Icons.Save(s.IconsPath); err != nil {
		log.Error().Err(err).Str("path", s.IconsPath).Msg("save icons")
		http.Error(w, "could not save icons", http.StatusInternalServerError)
		return false
	}
	return true
}

func (s *Server) sendTopology(c *client) {
	s.mu.RLock()
	top := map[string]any{
		"width":  s.Layout.Width(),
		"height": s.Layout.Height(),
		"panel":  map[string]int{"x": s.Layout.Panel.X, "y": s.Layout.Panel.Y},
		"grid":   map[string]int{"x": s.Layout.Grid.X, "y": s.Layout.Grid.Y},
		"order":  map[string]bool{"xFlipEveryRow": s.Layout.Order.XFlipEveryRow},
		"driver": s.Driver,
	}
	s.mu.RUnlock()
	b, _ := json.Marshal(top)
	_ = c.send(b)
}

func (s *Server) broadcastFrame(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	for _, c := range s.snapshot(s.clients) {
		if err := c.send(b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *Server) snapshot(set map[*client]bool) []*client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WithCORS lets a browser UI on another origin use the API.
func WithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
