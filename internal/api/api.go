package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/stats"
)

type Config struct {
	Port uint16
}

func NewConfig(port uint16) *Config {
	return &Config{Port: port}
}

// API serves read-only views of the stored reaction roles, delegations and event counters.
type API struct {
	ctx      context.Context
	logger   *zap.SugaredLogger
	roles    *rolemap.Store
	grants   *delegation.Graph
	counters *stats.Counters
	router   *gin.Engine
	serv     *http.Server
}

func NewAPI(ctx context.Context, logger *zap.SugaredLogger, roles *rolemap.Store, grants *delegation.Graph, counters *stats.Counters, config *Config) *API {
	a := &API{
		ctx:      ctx,
		logger:   logger,
		roles:    roles,
		grants:   grants,
		counters: counters,
		router:   gin.New(),
	}
	a.router.Use(gin.Recovery())
	a.registerGetMessageRoles()
	a.registerGetGuildGrants()
	a.registerGetStats()
	a.serv = &http.Server{Addr: fmt.Sprintf(":%d", config.Port), Handler: a.router}
	return a
}

func (a *API) Listen() {
	a.logger.Infof("Serving API on %s.", a.serv.Addr)
	go func() {
		if err := a.serv.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				a.logger.Errorf("Server returned with error: %s.", err)
			}
		}
	}()
}

func (a *API) Close() error {
	return a.serv.Close()
}
