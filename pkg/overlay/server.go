package overlay

import (
	"context"
	"html/template"
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/rovlink/pkg/framework"
)

var pageTemplate = template.Must(template.New("overlay").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title>
<style>body{background:#00B140;font:15px Arial;margin:0}span{display:inline-block;padding:5px;width:32%}</style>
</head><body>{{range .Labels}}<span>{{.}}</span>{{end}}
<script>
var spans = document.getElementsByTagName("span");
var ws = new WebSocket((location.protocol == "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function(ev) {
  var r = JSON.parse(ev.data);
  spans[0].textContent = "Humidity: " + r.humidity;
  spans[1].textContent = "Temperature: " + r.temperature;
  spans[2].textContent = "Input: " + r.power_in + "\tOut: " + r.power_out;
};
</script></body></html>
`))

// Server serves the overlay page, the readings as JSON on /status and
// live updates on the /ws websocket.
type Server struct {
	Addr    string
	Display *Display

	router chi.Router
}

// NewServer creates a Server.
func NewServer(addr string, display *Display) *Server {
	s := &Server{Addr: addr, Display: display, router: chi.NewRouter()}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/", s.handlePage)
	s.router.Get("/status", s.handleStatus)
	s.router.Handle("/ws", websocket.Handler(s.handleWebsocket))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Name implements Named.
func (s *Server) Name() string {
	return "overlay"
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	glog.Infof("overlay available at http://%s/", ln.Addr())
	srv := &http.Server{Handler: s.router}
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	latest := s.Display.Latest()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageTemplate.Execute(w, map[string]interface{}{
		"Title":  Title,
		"Labels": latest.Labels(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.Display.Latest())
}

func (s *Server) handleWebsocket(conn *websocket.Conn) {
	defer conn.Close()
	updates, cancel := s.Display.Watch()
	defer cancel()
	closedCh := make(chan struct{})
	go func() {
		// only used to notice the peer going away.
		var discard []byte
		for websocket.Message.Receive(conn, &discard) == nil {
		}
		close(closedCh)
	}()
	for {
		select {
		case <-closedCh:
			return
		case r := <-updates:
			if err := websocket.JSON.Send(conn, r); err != nil {
				glog.V(1).Infof("overlay websocket: %v", err)
				return
			}
		}
	}
}
