package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"Folium/errors"
)

// Engine is the central component providing services to adapters
type Engine struct {
	Config      *Config
	Logger      *LoggerService
	HTTP        *HTTPService
	Render      *RenderService
	RateLimiter *RateLimiterService
	Parser      *ParserService
	Cleaner     *CleanerService
	Store       *StoreService
	Translator  *TranslatorService
	Crawler     *CrawlService
	Bundler     *BundlerService

	// Adapter registry
	adapters      map[string]Adapter
	adaptersMutex sync.RWMutex
}

// New creates a new Engine from the runtime configuration
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Determine default log file
	logFile := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		logDir := filepath.Join(homeDir, ".folium", "logs")
		if err := os.MkdirAll(logDir, 0755); err == nil {
			logFile = filepath.Join(logDir, "folium.log")
		}
	}

	// Create logger service first so we can use it in other services
	loggerService := &LoggerService{
		Verbose: false,
		LogFile: logFile,
	}

	// Create rate limiter service
	rateLimiterService := NewRateLimiterService(500 * time.Millisecond)

	// Configure rate limiters for sites that throttle aggressively
	rateLimiterService.SetLimit("pastebin.com", 2*time.Second)
	rateLimiterService.SetLimit("www.skynovels.net", 1*time.Second)

	// Create HTTP service with logger and limiter
	httpService := NewHTTPService(
		loggerService,
		rateLimiterService,
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
		cfg.FetchRetries,
	)

	// Create render service; the browser launches lazily on first use
	renderService := &RenderService{Logger: loggerService}

	// Create store service rooted at the configured directory
	storeService := &StoreService{
		Root:   cfg.StoreRoot,
		Logger: loggerService,
		HTTP:   httpService,
	}

	// Create translator service for the configured backend
	translatorService, err := NewTranslatorService(cfg, loggerService)
	if err != nil {
		return nil, err
	}

	// Create engine with all services
	engine := &Engine{
		Config:      cfg,
		Logger:      loggerService,
		HTTP:        httpService,
		Render:      renderService,
		RateLimiter: rateLimiterService,
		Parser:      NewParserService(),
		Cleaner:     NewCleanerService(loggerService),
		Store:       storeService,
		Translator:  translatorService,
		adapters:    make(map[string]Adapter),
	}

	// Create crawl service
	engine.Crawler = &CrawlService{Logger: loggerService}

	// Create bundler service (depends on store, translator and HTTP)
	engine.Bundler = &BundlerService{
		Logger:     loggerService,
		Store:      storeService,
		Translator: translatorService,
		HTTP:       httpService,
	}

	loggerService.Info("Engine initialized successfully")
	return engine, nil
}

// Close releases long-lived resources, notably the headless browser
func (e *Engine) Close() {
	e.Render.Close()
}

// RegisterAdapter adds an adapter to the registry
func (e *Engine) RegisterAdapter(adapter Adapter) error {
	e.adaptersMutex.Lock()
	defer e.adaptersMutex.Unlock()

	id := strings.ToLower(adapter.ID())
	if _, exists := e.adapters[id]; exists {
		return fmt.Errorf("adapter with ID '%s' already registered", adapter.ID())
	}

	e.adapters[id] = adapter
	return nil
}

// ResolveAdapter retrieves an adapter by source name, case-insensitively
func (e *Engine) ResolveAdapter(source string) (Adapter, error) {
	e.adaptersMutex.RLock()
	defer e.adaptersMutex.RUnlock()

	adapter, exists := e.adapters[strings.ToLower(source)]
	if !exists {
		err := errors.New(errors.KindUnknownSource, "no adapter registered for source '%s'", source)
		err.Source = source
		return nil, err
	}
	return adapter, nil
}

// AllAdapters returns all registered adapters sorted by ID
func (e *Engine) AllAdapters() []Adapter {
	e.adaptersMutex.RLock()
	defer e.adaptersMutex.RUnlock()

	adapters := make([]Adapter, 0, len(e.adapters))
	for _, a := range e.adapters {
		adapters = append(adapters, a)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].ID() < adapters[j].ID()
	})
	return adapters
}

// AdapterExists checks if an adapter is registered for a source name
func (e *Engine) AdapterExists(source string) bool {
	e.adaptersMutex.RLock()
	defer e.adaptersMutex.RUnlock()

	_, exists := e.adapters[strings.ToLower(source)]
	return exists
}
