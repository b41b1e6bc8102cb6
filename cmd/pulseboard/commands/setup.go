package commands

import (
	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/datasource"
	"github.com/pulseboard/pulseboard/pkg/plugins"
	"github.com/pulseboard/pulseboard/pkg/telemetry"
)

// buildService is the CLI's composition root: it loads the config file and
// wires the store, variable index, plugin registry and telemetry into one
// datasource service.
func buildService() (*datasource.Service, *config.File, error) {
	file, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := file.Store()
	if err != nil {
		return nil, nil, err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.Metrics.Enabled = false
	if verbose {
		tcfg.Logging.Level = "debug"
	} else {
		tcfg.Logging.Level = "warn"
	}
	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, nil, err
	}

	registry := plugins.NewRegistry(plugins.RegistryOptions{
		Logger: tel.Logger,
		Events: tel.Events,
	})
	if file.PluginDir != "" {
		if err := registry.ScanDirectory(file.PluginDir); err != nil {
			tel.Logger.WithError(err).Warn("plugin directory scan failed")
		}
	}

	svc, err := datasource.NewService(datasource.ServiceOptions{
		Store:     store,
		Loader:    registry,
		Variables: file.VariableIndex(),
		Logger:    tel.Logger,
		Events:    tel.Events,
	})
	if err != nil {
		return nil, nil, err
	}

	return svc, file, nil
}
