package watcher

import (
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/source"
	"github.com/hyperjump/yomu/pkg/utils"
)

// AdapterSink receives a rebuilt adapter set.
type AdapterSink interface {
	SetAdapters(adapters []source.Adapter)
	Trigger()
}

// SourcesReloader returns an onChange callback that reloads the config at
// path, rebuilds the source adapters, hands them to sink and triggers a
// cycle. A config that fails to load leaves the current adapters in place.
func SourcesReloader(sink AdapterSink, logger *zap.Logger, opts ...source.AdapterOption) func(path string) {
	logger = utils.OrNop(logger)
	return func(path string) {
		cfg, err := config.Load(path)
		if err != nil {
			logger.Warn("Config reload failed, keeping current sources", zap.String("path", path), zap.Error(err))
			return
		}
		adapters := source.Build(cfg.Sources, cfg.Ingest.FetchTimeout, logger, opts...)
		names := make([]string, len(adapters))
		for i, a := range adapters {
			names[i] = a.Name()
		}
		sink.SetAdapters(adapters)
		sink.Trigger()
		logger.Info("Sources reloaded", zap.Strings("adapters", names))
	}
}
