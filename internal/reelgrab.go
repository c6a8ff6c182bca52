package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reelgrab/reelgrab/internal/api"
	"github.com/reelgrab/reelgrab/internal/extractor"
	"github.com/reelgrab/reelgrab/internal/history"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}
)

// reelGrabImpl is the top-level object for the server: it constructs
// the history store, the extractor and the REST gateway, and
// supervises the gateway for its lifetime.
type reelGrabImpl struct {
	config *ReelGrabConfig

	historyStore *history.Store
	restGateway  RunnableService
}

func New(config ReelGrabConfig) *reelGrabImpl {
	log.Emit(logger.DEBUG, "Bootstrapping ReelGrab services using config: %#v\n", config)

	store, err := history.New(config.History.FilePath, config.History.Capacity)
	if err != nil {
		panic(fmt.Sprintf("failed to construct history store due to error: %s", err.Error()))
	}

	ex, err := extractor.NewYtdlpExtractor(config.Extractor)
	if err != nil {
		panic(fmt.Sprintf("failed to construct extractor due to error: %s", err.Error()))
	}

	sessionConfig := session.Config{
		Mode:           extractor.ParseMode(config.Session.Mode),
		ResolveTimeout: time.Second * time.Duration(config.Session.ResolveTimeoutSeconds),
	}

	return &reelGrabImpl{
		config:       &config,
		historyStore: store,
		restGateway:  api.NewRestGateway(&config.API, ex, store, sessionConfig),
	}
}

// Run brings up the server and blocks until the provided context is
// cancelled, or an error the server cannot recover from occurs.
func (reelgrab *reelGrabImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	reelgrab.spawnAsyncService(ctx, wg, reelgrab.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "ReelGrab services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService runs the provided service as its own goroutine,
// keeping the service waitgroup updated and converting panics in to a
// crash of that service rather than the process.
func (reelgrab *reelGrabImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
