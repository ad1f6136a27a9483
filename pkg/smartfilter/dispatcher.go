package smartfilter

import (
	"context"
	"sync"

	"collections/pkg/errors"
	"collections/pkg/options"
	"collections/pkg/querystate"
)

// Action is what the user did to a filter control
type Action string

const (
	ActionSet    Action = "set"
	ActionToggle Action = "toggle"
	ActionClear  Action = "clear"
)

// Input is one user interaction
type Input struct {
	Action Action `json:"action"`
	Value  string `json:"value"`
}

// Props is the contract every filter kind shares
type Props struct {
	Key      querystate.Key
	Label    string
	Value    string
	OnChange func(value string)
	Disabled bool
	// Reason explains a disabled control, e.g. the missing parent.
	Reason string
	Config Config
}

// View is the render model sent to the browser
type View struct {
	Key         querystate.Key   `json:"key"`
	Kind        Kind             `json:"kind"`
	Label       string           `json:"label"`
	Value       string           `json:"value,omitempty"`
	Disabled    bool             `json:"disabled"`
	Reason      string           `json:"reason,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Checked     bool             `json:"checked,omitempty"`
	Options     []options.Option `json:"options,omitempty"`
	Selected    []options.Option `json:"selected,omitempty"`
	HasMore     bool             `json:"hasMore,omitempty"`
	Clearable   bool             `json:"clearable,omitempty"`
	AlwaysOpen  bool             `json:"alwaysOpen,omitempty"`
	MoreLabel   string           `json:"moreLabel,omitempty"`
	DebounceMs  int64            `json:"debounceMs,omitempty"`
}

// Renderer implements one filter kind
type Renderer interface {
	// Render fills the kind-specific fields of v.
	Render(ctx context.Context, p Props, v *View) error
	// Next computes the value that in produces from the current one.
	Next(p Props, in Input) (string, error)
}

// Dispatcher routes props to the renderer registered for their kind
type Dispatcher struct {
	mu        sync.RWMutex
	renderers map[Kind]Renderer
}

// NewDispatcher returns a dispatcher with every built-in kind registered
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{renderers: make(map[Kind]Renderer)}
	d.Register(KindText, textRenderer{})
	d.Register(KindSwitch, boolRenderer{})
	d.Register(KindCheck, boolRenderer{})
	d.Register(KindRadio, choiceRenderer{})
	d.Register(KindSelect, choiceRenderer{})
	d.Register(KindAsyncSelect, remoteRenderer{})
	d.Register(KindListSearch, remoteRenderer{alwaysOpen: true})
	return d
}

// Register adds or replaces the renderer for kind
func (d *Dispatcher) Register(kind Kind, r Renderer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderers[kind] = r
}

// Render builds the view for p. A disabled filter renders without
// touching its source.
func (d *Dispatcher) Render(ctx context.Context, p Props) (View, error) {
	r, err := d.renderer(p)
	if err != nil {
		return View{}, err
	}

	v := View{
		Key:      p.Key,
		Kind:     p.Config.Kind(),
		Label:    p.Label,
		Value:    querystate.NormalizeValue(p.Value),
		Disabled: p.Disabled,
		Reason:   p.Reason,
	}
	if p.Disabled {
		v.Value = ""
		return v, nil
	}
	if err := r.Render(ctx, p, &v); err != nil {
		return View{}, errors.Wrapf(err, "render %s", p.Key)
	}
	return v, nil
}

// Handle applies one interaction and reports the resulting value through
// OnChange exactly once.
func (d *Dispatcher) Handle(ctx context.Context, p Props, in Input) error {
	r, err := d.renderer(p)
	if err != nil {
		return err
	}
	if in.Action == "" {
		in.Action = ActionSet
	}
	// Clearing stays possible so an orphaned value can be removed.
	if p.Disabled && in.Action != ActionClear {
		return errors.Wrapf(errors.ErrPrerequisiteMissing, "%s: %s", p.Key, p.Reason)
	}

	next, err := r.Next(p, in)
	if err != nil {
		return errors.Wrapf(err, "handle %s", p.Key)
	}
	if p.OnChange != nil {
		p.OnChange(next)
	}
	return nil
}

func (d *Dispatcher) renderer(p Props) (Renderer, error) {
	if p.Config == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s has no config", p.Key)
	}
	d.mu.RLock()
	r, ok := d.renderers[p.Config.Kind()]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownKind, "%s", p.Config.Kind())
	}
	return r, nil
}
