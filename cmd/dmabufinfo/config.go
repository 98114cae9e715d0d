//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/dmabuf"
)

// config is what dmabufinfo allocates. Flags override the file.
type config struct {
	Backend         string
	Width           uint32
	Height          uint32
	Format          dmabuf.Fourcc
	Modifiers       []dmabuf.Modifier
	Fill            string
	MemfdName       string
	StrideAlignment uint32
}

func defaultConfig() config {
	return config{
		Width:  256,
		Height: 256,
		Format: dmabuf.XRGB8888,
	}
}

type fileConfig struct {
	Backend         string   `toml:"backend"`
	Width           uint32   `toml:"width"`
	Height          uint32   `toml:"height"`
	Format          string   `toml:"format"`
	Modifiers       []string `toml:"modifiers"`
	Fill            string   `toml:"fill"`
	MemfdName       string   `toml:"memfd_name"`
	StrideAlignment uint32   `toml:"stride_alignment"`
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("backend") {
		cfg.Backend = strings.TrimSpace(raw.Backend)
	}
	if meta.IsDefined("width") {
		cfg.Width = raw.Width
	}
	if meta.IsDefined("height") {
		cfg.Height = raw.Height
	}
	if meta.IsDefined("format") {
		code, err := dmabuf.FourccFromString(raw.Format)
		if err != nil {
			return config{}, fmt.Errorf("parse format: %w", err)
		}
		cfg.Format = code
	}
	if meta.IsDefined("modifiers") {
		cfg.Modifiers = cfg.Modifiers[:0]
		for _, s := range raw.Modifiers {
			m, err := parseModifier(strings.TrimSpace(s))
			if err != nil {
				return config{}, fmt.Errorf("parse modifiers: %w", err)
			}
			cfg.Modifiers = append(cfg.Modifiers, m)
		}
	}
	if meta.IsDefined("fill") {
		cfg.Fill = strings.TrimSpace(raw.Fill)
	}
	if meta.IsDefined("memfd_name") {
		cfg.MemfdName = strings.TrimSpace(raw.MemfdName)
	}
	if meta.IsDefined("stride_alignment") {
		cfg.StrideAlignment = raw.StrideAlignment
	}

	return cfg, nil
}
