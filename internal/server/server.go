/*
Package server implements the application's network transport layer.
It builds one http.Server per enabled service, wiring the routers from
routes.go with the shared timeouts from configuration.
*/
package server

import (
	"fmt"
	"net/http"

	"FuelLab_V2.0/internal/analyzer"
	"FuelLab_V2.0/internal/animals"
	"FuelLab_V2.0/internal/config"
	"FuelLab_V2.0/internal/database"
	"FuelLab_V2.0/internal/nutrition"
)

// Dependencies are the long-lived services the handlers are built on.
// A field may be nil when the service that needs it is disabled.
type Dependencies struct {
	// Analysis drives /api/analyze and /api/chat.
	Analysis analyzer.Service

	// DB stores animal selections and upload metadata.
	DB database.Service

	// Products is the Open Food Facts client behind the nutrition pages.
	Products nutrition.ProductSource
}

// Server is one named HTTP service hosted by the binary.
type Server struct {
	// Name is the service name from config, used in logs.
	Name string

	*http.Server
}

// NewServers returns a configured *http.Server for every service enabled in cfg.
func NewServers(cfg *config.Config, deps Dependencies) ([]*Server, error) {
	var servers []*Server

	if cfg.Enabled(config.ServiceAnalyzer) {
		if deps.Analysis == nil {
			return nil, fmt.Errorf("analyzer service enabled without an analysis backend")
		}
		h := analyzer.NewHandler(deps.Analysis, cfg.Analyzer.IndexPaths)
		servers = append(servers, newServer(cfg, config.ServiceAnalyzer, cfg.Analyzer.Port,
			RegisterAnalyzerRoutes(h, cfg.Analyzer.StaticDir)))
	}

	if cfg.Enabled(config.ServiceAnimals) {
		if deps.DB == nil {
			return nil, fmt.Errorf("animals service enabled without a data store")
		}
		h, err := animals.NewHandler(deps.DB, cfg.Animals.UploadsDir, cfg.Animals.IndexFile)
		if err != nil {
			return nil, err
		}
		servers = append(servers, newServer(cfg, config.ServiceAnimals, cfg.Animals.Port,
			RegisterAnimalsRoutes(h, cfg.Animals.UploadLimit)))
	}

	if cfg.Enabled(config.ServiceNutrition) {
		if deps.Products == nil {
			return nil, fmt.Errorf("nutrition service enabled without a product source")
		}
		handler, err := RegisterNutritionRoutes(nutrition.NewHandler(deps.Products))
		if err != nil {
			return nil, err
		}
		servers = append(servers, newServer(cfg, config.ServiceNutrition, cfg.Nutrition.Port, handler))
	}

	return servers, nil
}

func newServer(cfg *config.Config, name string, port int, handler http.Handler) *Server {
	return &Server{
		Name: name,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			IdleTimeout:  cfg.Server.IdleTimeout,  // Time to wait for the next request on keep-alive connections.
			ReadTimeout:  cfg.Server.ReadTimeout,  // Maximum duration for reading the entire request.
			WriteTimeout: cfg.Server.WriteTimeout, // Gemini calls can take well over a minute.
		},
	}
}
