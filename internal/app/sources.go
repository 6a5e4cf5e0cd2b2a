package app

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/feed"
	"github.com/alanyoungcy/triarb/internal/platform/binanceus"
	"github.com/alanyoungcy/triarb/internal/platform/coinbase"
	"github.com/alanyoungcy/triarb/internal/platform/kraken"
	"github.com/alanyoungcy/triarb/internal/platform/kucoin"
)

// buildRegistry registers one source per effective scanner source id.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*feed.Registry, error) {
	reg := feed.NewRegistry()
	for _, id := range cfg.Scanner.EffectiveSources() {
		sc, ok := cfg.Sources[id]
		if !ok {
			return nil, fmt.Errorf("source %q: no configuration: %w", id, domain.ErrUnknownSource)
		}
		src, err := newSource(id, sc, logger)
		if err != nil {
			return nil, err
		}
		reg.Register(src)
	}
	return reg, nil
}

func newSource(id string, sc config.SourceConfig, logger *slog.Logger) (domain.Source, error) {
	sid := domain.SourceID(id)
	switch id {
	case "binanceus":
		return binanceus.New(binanceus.Config{ID: sid, RestURL: sc.RestURL, WsURL: sc.WsURL, FeeRate: sc.FeeRate}, logger), nil
	case "coinbase":
		return coinbase.New(coinbase.Config{ID: sid, RestURL: sc.RestURL, WsURL: sc.WsURL, FeeRate: sc.FeeRate}, logger), nil
	case "kraken":
		return kraken.New(kraken.Config{ID: sid, RestURL: sc.RestURL, WsURL: sc.WsURL, FeeRate: sc.FeeRate}, logger), nil
	case "kucoin":
		return kucoin.New(kucoin.Config{ID: sid, RestURL: sc.RestURL, FeeRate: sc.FeeRate}, logger), nil
	default:
		return nil, fmt.Errorf("source %q: %w", id, domain.ErrUnknownSource)
	}
}
