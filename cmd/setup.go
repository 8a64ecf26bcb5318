package cmd

import (
	"Folium/engine"
	"Folium/library"
)

// Setup makes a pre-built engine and library available to all command
// handlers, bypassing the construction in PersistentPreRun.
func Setup(e *engine.Engine, c *library.Catalog, s *library.SourceStore) {
	appEngine = e
	catalog = c
	sourceStore = s
}
