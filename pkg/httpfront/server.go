package httpfront

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/service"
)

// Server is the gin.Engine-backed public front end. It never mutates
// the Service Pool; every request is a pure lookup-lease-dispatch.
type Server struct {
	pool   *service.Pool
	engine *gin.Engine
}

// New builds a Server over pool. gin runs in release mode here;
// request logging goes through pkg/log instead of gin's own logger.
func New(pool *service.Pool) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{pool: pool, engine: engine}
	engine.NoRoute(s.handle)
	return s
}

// Engine exposes the underlying gin.Engine, e.g. for ListenAndServe
// or for mounting /metrics alongside it.
func (s *Server) Engine() *gin.Engine { return s.engine }

// resolve finds the first Running service with a path pattern
// matching path. Iteration order over List() is unspecified, matching
// the Service Pool's "no ordering guarantee across names" contract.
func (s *Server) resolve(path string) (service.Name, bool) {
	for _, v := range s.pool.List() {
		if !v.Running {
			continue
		}
		for _, m := range v.Record.Paths {
			if _, ok := m.Match(path); ok {
				return v.Record.Name, true
			}
		}
	}
	return "", false
}

func (s *Server) handle(c *gin.Context) {
	name, ok := s.resolve(c.Request.URL.Path)
	if !ok {
		err := hiveerr.New(hiveerr.ServiceNotFound, "no service mounted at this path")
		c.JSON(http.StatusNotFound, BodyForError(err))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		err = hiveerr.Wrap(hiveerr.IO, "failed reading request body", err)
		c.JSON(StatusForError(err), BodyForError(err))
		return
	}

	req := sandbox.Request{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Headers: map[string][]string(c.Request.Header),
		Body:    body,
	}

	timer := metrics.NewTimer()
	resp, err := s.pool.Dispatch(c.Request.Context(), name, req)
	timer.ObserveDurationVec(metrics.RequestDuration, string(name))

	if err != nil {
		status := StatusForError(err)
		metrics.RequestsTotal.WithLabelValues(string(name), http.StatusText(status)).Inc()
		log.WithService(string(name)).Warn().Err(err).Msg("request handler returned an error")
		c.JSON(status, BodyForError(err))
		return
	}

	metrics.RequestsTotal.WithLabelValues(string(name), http.StatusText(resp.Status)).Inc()
	for k, vs := range resp.Headers {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	if resp.Stream != nil {
		c.Status(resp.Status)
		_, _ = io.Copy(c.Writer, resp.Stream)
		return
	}
	c.Data(resp.Status, c.Writer.Header().Get("Content-Type"), resp.Body)
}
