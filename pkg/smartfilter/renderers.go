package smartfilter

import (
	"context"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"collections/pkg/errors"
	"collections/pkg/options"
	"collections/pkg/querystate"
	"collections/pkg/search"
)

// BoolValue is how a true boolean filter is stored
const BoolValue = "1"

type textRenderer struct{}

func (textRenderer) Render(_ context.Context, p Props, v *View) error {
	cfg, _ := p.Config.(TextConfig)
	v.Placeholder = cfg.Placeholder
	v.Clearable = v.Value != ""

	delay := cfg.Delay
	if delay <= 0 {
		delay = search.TextDelay
	}
	v.DebounceMs = delay.Milliseconds()
	return nil
}

func (textRenderer) Next(_ Props, in Input) (string, error) {
	switch in.Action {
	case ActionSet:
		return strings.TrimSpace(in.Value), nil
	case ActionClear:
		return "", nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupportedAction, "%s on text", in.Action)
	}
}

// boolRenderer serves both switch and check
type boolRenderer struct{}

func (boolRenderer) Render(_ context.Context, _ Props, v *View) error {
	v.Checked = v.Value == BoolValue
	return nil
}

func (boolRenderer) Next(p Props, in Input) (string, error) {
	switch in.Action {
	case ActionToggle:
		if querystate.NormalizeValue(p.Value) == BoolValue {
			return "", nil
		}
		return BoolValue, nil
	case ActionSet:
		raw := strings.TrimSpace(in.Value)
		if raw == "" {
			return "", nil
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			if strings.EqualFold(raw, "on") {
				return BoolValue, nil
			}
			return "", errors.Wrapf(errors.ErrInvalidChoice, "%q is not a boolean", raw)
		}
		if on {
			return BoolValue, nil
		}
		return "", nil
	case ActionClear:
		return "", nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupportedAction, "%s on boolean", in.Action)
	}
}

// choiceRenderer serves radio and select over a fixed option set
type choiceRenderer struct{}

func fixedOptions(c Config) []options.Option {
	switch cfg := c.(type) {
	case RadioConfig:
		return cfg.Options
	case SelectConfig:
		return cfg.Options
	}
	return nil
}

func (choiceRenderer) Render(_ context.Context, p Props, v *View) error {
	opts := fixedOptions(p.Config)
	v.Options = opts
	if cfg, ok := p.Config.(SelectConfig); ok {
		v.Placeholder = cfg.Placeholder
	}
	if v.Value == "" {
		return nil
	}
	if o, ok := options.FindOption(opts, v.Value); ok {
		v.Selected = []options.Option{o}
	}
	v.Clearable = true
	return nil
}

func (choiceRenderer) Next(p Props, in Input) (string, error) {
	switch in.Action {
	case ActionClear:
		return "", nil
	case ActionSet, ActionToggle:
		value := querystate.NormalizeValue(in.Value)
		if value == "" {
			return "", nil
		}
		if value == querystate.NormalizeValue(p.Value) {
			return selectAgain(p, in), nil
		}
		if _, ok := options.FindOption(fixedOptions(p.Config), value); !ok {
			return "", errors.Wrapf(errors.ErrInvalidChoice, "%q", value)
		}
		return value, nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupportedAction, "%s on choice", in.Action)
	}
}

// remoteRenderer serves async-select and list-search
type remoteRenderer struct {
	alwaysOpen bool
}

func remoteSource(c Config) (Source, string, func(int64) string) {
	switch cfg := c.(type) {
	case AsyncSelectConfig:
		return cfg.Source, cfg.Placeholder, cfg.MoreLabel
	case ListSearchConfig:
		return cfg.Source, cfg.SearchPlaceholder, cfg.MoreLabel
	}
	return nil, "", nil
}

func (r remoteRenderer) Render(ctx context.Context, p Props, v *View) error {
	src, placeholder, more := remoteSource(p.Config)
	if src == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "%s has no option source", p.Key)
	}
	v.Placeholder = placeholder
	v.AlwaysOpen = r.alwaysOpen

	page := src.Page(ctx)
	v.Options = page.Options
	if v.Options == nil {
		v.Options = []options.Option{}
	}
	v.HasMore = page.HasMore
	v.MoreLabel = moreLabel(page, more)

	if v.Value != "" {
		v.Selected = src.Selected(ctx, v.Value)
		v.Clearable = true
	}
	return nil
}

func (remoteRenderer) Next(p Props, in Input) (string, error) {
	switch in.Action {
	case ActionClear:
		return "", nil
	case ActionSet, ActionToggle:
		value := querystate.NormalizeValue(in.Value)
		if value != "" && value == querystate.NormalizeValue(p.Value) {
			return selectAgain(p, in), nil
		}
		return value, nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupportedAction, "%s on remote list", in.Action)
	}
}

// selectAgain handles input naming the current value: a toggle click clears
// it, an explicit set keeps it.
func selectAgain(p Props, in Input) string {
	if in.Action == ActionToggle {
		return ""
	}
	return querystate.NormalizeValue(p.Value)
}

func moreLabel(p options.Page, format func(int64) string) string {
	if !p.HasMore {
		return ""
	}
	remaining := int64(p.Total - len(p.Options))
	if format != nil && remaining > 0 {
		return format(remaining)
	}
	if remaining <= 0 {
		return "Show more"
	}
	return "Show " + humanize.Comma(remaining) + " more"
}
