package smartfilter

import (
	"context"
	"time"

	"collections/pkg/options"
)

// Kind tags a filter variant
type Kind string

const (
	KindText        Kind = "text"
	KindSwitch      Kind = "switch"
	KindCheck       Kind = "check"
	KindRadio       Kind = "radio"
	KindSelect      Kind = "select"
	KindAsyncSelect Kind = "async-select"
	KindListSearch  Kind = "list-search"
)

// Config is the kind-specific part of a filter. Each kind has its own
// type so that, for instance, a radio cannot carry a remote source.
type Config interface {
	Kind() Kind
}

// Source backs the remote kinds with a list page and the selected option.
type Source interface {
	Page(ctx context.Context) options.Page
	Selected(ctx context.Context, id string) []options.Option
}

// TextConfig is a free text input
type TextConfig struct {
	Placeholder string
	Delay       time.Duration
}

// SwitchConfig is a boolean toggle switch
type SwitchConfig struct{}

// CheckConfig is a boolean checkbox
type CheckConfig struct{}

// RadioConfig is a fixed single choice rendered inline
type RadioConfig struct {
	Options []options.Option
}

// SelectConfig is a fixed single choice in a popover
type SelectConfig struct {
	Options     []options.Option
	Placeholder string
}

// AsyncSelectConfig is a searchable popover over a remote list
type AsyncSelectConfig struct {
	Source      Source
	Placeholder string
	// MoreLabel formats the "show more" hint; nil uses English copy.
	MoreLabel func(remaining int64) string
}

// ListSearchConfig is an always open list with its own search box
type ListSearchConfig struct {
	Source            Source
	SearchPlaceholder string
	MoreLabel         func(remaining int64) string
}

func (TextConfig) Kind() Kind        { return KindText }
func (SwitchConfig) Kind() Kind      { return KindSwitch }
func (CheckConfig) Kind() Kind       { return KindCheck }
func (RadioConfig) Kind() Kind       { return KindRadio }
func (SelectConfig) Kind() Kind      { return KindSelect }
func (AsyncSelectConfig) Kind() Kind { return KindAsyncSelect }
func (ListSearchConfig) Kind() Kind  { return KindListSearch }
