package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/httpfront"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/service"
	"github.com/cuemby/hive/pkg/source"
)

// Server is the admin API: POST/DELETE/GET routes over a service.Pool,
// bearer-authenticated with a single shared signing key.
type Server struct {
	pool   *service.Pool
	engine *gin.Engine
}

// New builds a Server over pool, authenticating every route with
// signingKey.
func New(pool *service.Pool, signingKey string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{pool: pool, engine: engine}

	admin := engine.Group("/admin/services", authMiddleware(signingKey))
	admin.POST("", s.create)
	admin.GET("", s.list)
	admin.POST("/:name/start", s.start)
	admin.POST("/:name/stop", s.stop)
	admin.DELETE("/:name", s.remove)

	return s
}

// Engine exposes the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine { return s.engine }

func errorBody(err error) httpfront.ErrorBody { return httpfront.BodyForError(err) }

func respondErr(c *gin.Context, err error) {
	c.JSON(httpfront.StatusForError(err), errorBody(err))
}

func (s *Server) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(hiveerr.Newf(hiveerr.InvalidServiceName, "%v", err)))
		return
	}

	files := make(map[string][]byte, len(req.Files))
	for path, contents := range req.Files {
		files[path] = []byte(contents)
	}
	src := source.NewMapSource(files)

	atoms := make([]permission.Atom, 0, len(req.Permissions))
	for _, a := range req.Permissions {
		atoms = append(atoms, a.toAtom())
	}
	perms := permission.New(atoms...)

	timer := metrics.NewTimer()
	record, err := s.pool.Create(c.Request.Context(), service.Name(req.Name), src, perms)
	timer.ObserveDuration(metrics.ServiceCreateDuration)
	if err != nil {
		log.WithService(req.Name).Warn().Err(err).Msg("create_service failed")
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, viewOf(service.View{Record: record, Running: true}))
}

func (s *Server) list(c *gin.Context) {
	views := s.pool.List()
	out := make([]ServiceView, 0, len(views))
	for _, v := range views {
		out = append(out, viewOf(v))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) start(c *gin.Context) {
	name := service.Name(c.Param("name"))
	timer := metrics.NewTimer()
	err := s.pool.Start(c.Request.Context(), name)
	timer.ObserveDuration(metrics.ServiceStartDuration)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stop(c *gin.Context) {
	name := service.Name(c.Param("name"))
	timer := metrics.NewTimer()
	err := s.pool.Stop(c.Request.Context(), name)
	timer.ObserveDuration(metrics.ServiceStopDuration)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) remove(c *gin.Context) {
	name := service.Name(c.Param("name"))
	timer := metrics.NewTimer()
	_, err := s.pool.Remove(name)
	timer.ObserveDuration(metrics.ServiceRemoveDuration)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
