package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/domain/model"
)

// FileModeProvider re-reads the operating mode from a small TOML file on
// every call, so an operator can flip a running engine between paper and real
// settlement. Any read problem falls back to the last known mode; an unknown
// value falls back to paper.
type FileModeProvider struct {
	path string
	last string
}

func NewFileModeProvider(path string) *FileModeProvider {
	return &FileModeProvider{path: path, last: model.ModePaper}
}

func (p *FileModeProvider) Mode() string {
	var raw struct {
		Mode string `toml:"mode"`
	}
	if _, err := toml.DecodeFile(p.path, &raw); err != nil {
		return p.last
	}

	mode := strings.ToLower(strings.TrimSpace(raw.Mode))
	if mode != model.ModePaper && mode != model.ModeReal {
		mode = model.ModePaper
	}
	if mode != p.last {
		log.Info().Str("from", p.last).Str("to", mode).Msg("trading mode changed")
		p.last = mode
	}
	return mode
}
