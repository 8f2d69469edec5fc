/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package wlconfig is the display server's configuration surface: a single
// Component binding spf13/cobra flags to spf13/viper keys, falling back to
// the environment variables the external interface names.
package wlconfig

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Keys used both as viper keys and, dash-cased, as CLI flag names.
const (
	KeyRuntimeDir    = "runtime-dir"
	KeyDisplay       = "display"
	KeyMaxFrameSize  = "max-frame-size"
	KeyDebug         = "debug"
)

// Config is the resolved, read-only configuration for one display. It is
// produced by Component.Init after flags and environment have both been
// consulted.
type Config struct {
	RuntimeDir   string
	DisplayName  string
	MaxFrameSize int
	Debug        bool
}

// Component mirrors the teacher's config.Component interface shape
// (Type/Init/RegisterFlag), collapsed to the single instance a display
// server needs — there is no multi-component registry here, since only one
// display configuration ever exists per process.
type Component interface {
	Type() string
	RegisterFlag(cmd *cobra.Command, vpr *viper.Viper) error
	Init(vpr *viper.Viper) (Config, error)
}

type component struct{}

// New returns the display server's single configuration Component.
func New() Component {
	return &component{}
}

func (c *component) Type() string {
	return "wayland-display"
}

func (c *component) RegisterFlag(cmd *cobra.Command, vpr *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String(KeyRuntimeDir, "", "Unix socket runtime directory (default: $XDG_RUNTIME_DIR)")
	flags.String(KeyDisplay, "", "display socket name (default: $WAYLAND_DISPLAY, or auto-named)")
	flags.Int(KeyMaxFrameSize, 4096, "maximum wire frame size in bytes")
	flags.Bool(KeyDebug, false, "enable wire tracing to stderr (default: $WAYLAND_DEBUG)")

	if err := vpr.BindPFlag(KeyRuntimeDir, flags.Lookup(KeyRuntimeDir)); err != nil {
		return err
	}
	if err := vpr.BindPFlag(KeyDisplay, flags.Lookup(KeyDisplay)); err != nil {
		return err
	}
	if err := vpr.BindPFlag(KeyMaxFrameSize, flags.Lookup(KeyMaxFrameSize)); err != nil {
		return err
	}
	if err := vpr.BindPFlag(KeyDebug, flags.Lookup(KeyDebug)); err != nil {
		return err
	}

	return nil
}

func (c *component) Init(vpr *viper.Viper) (Config, error) {
	cfg := Config{
		RuntimeDir:   vpr.GetString(KeyRuntimeDir),
		DisplayName:  vpr.GetString(KeyDisplay),
		MaxFrameSize: vpr.GetInt(KeyMaxFrameSize),
		Debug:        vpr.GetBool(KeyDebug),
	}

	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = os.Getenv("XDG_RUNTIME_DIR")
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = os.Getenv("WAYLAND_DISPLAY")
	}
	if !cfg.Debug {
		dbg := os.Getenv("WAYLAND_DEBUG")
		cfg.Debug = strings.Contains(dbg, "server") || strings.Contains(dbg, "1")
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = 4096
	}

	return cfg, nil
}
