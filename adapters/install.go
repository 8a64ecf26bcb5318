package adapters

import (
	"Folium/engine"
	"Folium/errors"
)

// Install registers the built-in adapters plus one configured scraper per
// source definition. Registration order fixes nothing; the engine keys
// adapters by ID.
func Install(e *engine.Engine, configs []*engine.SourceConfig) error {
	builtins := []engine.Adapter{
		NewPastebin(e),
		NewManhwaweb(e),
		NewSkynovels(e),
	}
	for _, adapter := range builtins {
		if err := e.RegisterAdapter(adapter); err != nil {
			return errors.Wrap(errors.KindUnknownSource, err, "could not install built-in adapter")
		}
	}
	for _, cfg := range configs {
		if e.AdapterExists(cfg.Name) {
			e.Logger.Warn("Source config '%s' shadows a built-in adapter, skipping", cfg.Name)
			continue
		}
		if err := e.RegisterAdapter(NewGeneric(e, cfg)); err != nil {
			return errors.Wrap(errors.KindUnknownSource, err, "could not install source '%s'", cfg.Name)
		}
	}
	return nil
}
