// Package browser coordinates the collection filter panel: it renders the
// panel for a query, turns interactions into navigations, serves option
// pages and runs live sessions.
package browser

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"collections/internal/domain/collection"
	"collections/internal/events"
	"collections/pkg/cascade"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
	"collections/pkg/querystate"
	"collections/pkg/search"
	"collections/pkg/smartfilter"
	"collections/pkg/templates"
)

// Fixed choice lists are small; one page holds them all.
const choicePageSize = 100

// Config tunes the service
type Config struct {
	PageSize       int
	SearchDelay    time.Duration
	TextDelay      time.Duration
	RequestTimeout time.Duration
}

// Service is the filter panel application service
type Service struct {
	repo        collection.Repository
	resolver    *options.Resolver
	dispatcher  *smartfilter.Dispatcher
	copy        *templates.Copy
	publisher   *events.Publisher
	hierarchies []*cascade.Hierarchy
	cfg         Config
	log         *logger.Logger
}

// NewService creates the browser service
func NewService(
	repo collection.Repository,
	resolver *options.Resolver,
	copy *templates.Copy,
	publisher *events.Publisher,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.SearchDelay <= 0 {
		cfg.SearchDelay = search.DefaultDelay
	}
	if cfg.TextDelay <= 0 {
		cfg.TextDelay = search.TextDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	return &Service{
		repo:        repo,
		resolver:    resolver,
		dispatcher:  smartfilter.NewDispatcher(),
		copy:        copy,
		publisher:   publisher,
		hierarchies: collection.Hierarchies(),
		cfg:         cfg,
		log:         log.With("service", "browser"),
	}
}

// Locale picks the copy locale from an explicit choice or Accept-Language
func (s *Service) Locale(preferences ...string) language.Tag {
	return s.copy.Match(preferences...)
}

// Panel is the filter panel for one query
type Panel struct {
	Query    string         `json:"query"`
	Locale   string         `json:"locale"`
	Sections []PanelSection `json:"sections"`
}

// PanelSection is one group of filters
type PanelSection struct {
	Name    collection.Section `json:"name"`
	Label   string             `json:"label"`
	Filters []smartfilter.View `json:"filters"`
}

// Panel renders every filter for values. Filters render concurrently; an
// option source that fails renders empty instead of failing the panel.
func (s *Service) Panel(ctx context.Context, values querystate.Values, tag language.Tag) (Panel, error) {
	filters := collection.Filters()
	views := make([]smartfilter.View, len(filters))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			p, err := s.props(gctx, f, values, tag, nil)
			if err != nil {
				return err
			}
			v, err := s.dispatcher.Render(gctx, p)
			if err != nil {
				return err
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Panel{}, errors.Wrap(err, "render panel")
	}

	panel := Panel{Query: values.Encode(), Locale: tag.String()}
	for _, section := range collection.Sections() {
		ps := PanelSection{
			Name:    section,
			Label:   s.copy.Text(tag, "sections/"+string(section), nil, string(section)),
			Filters: []smartfilter.View{},
		}
		for i, f := range filters {
			if f.Section == section {
				ps.Filters = append(ps.Filters, views[i])
			}
		}
		panel.Sections = append(panel.Sections, ps)
	}
	return panel, nil
}

// Filter renders one filter
func (s *Service) Filter(ctx context.Context, values querystate.Values, key querystate.Key, tag language.Tag) (smartfilter.View, error) {
	f, err := lookup(key)
	if err != nil {
		return smartfilter.View{}, err
	}
	p, err := s.props(ctx, f, values, tag, nil)
	if err != nil {
		return smartfilter.View{}, err
	}
	return s.dispatcher.Render(ctx, p)
}

func lookup(key querystate.Key) (collection.Filter, error) {
	f, ok := collection.Lookup(key)
	if !ok {
		return collection.Filter{}, errors.Wrapf(errors.ErrUnknownFilter, "%s", key)
	}
	return f, nil
}

// label is the localized name of a filter
func (s *Service) label(tag language.Tag, f collection.Filter) string {
	return s.copy.Text(tag, "labels/"+f.Key.String(), nil, f.Label)
}

// enabled reports whether f can be used with values and, if not, why
func (s *Service) enabled(tag language.Tag, f collection.Filter, values querystate.Values) (bool, string) {
	h, ok := cascade.Find(s.hierarchies, f.Key)
	if !ok {
		return true, ""
	}
	parentKey := h.Prerequisite(values, f.Key)
	if parentKey == "" {
		return true, ""
	}
	parent, _ := collection.Lookup(parentKey)
	reason := s.copy.Text(tag, "filters/prerequisite",
		map[string]string{"Parent": s.label(tag, parent)},
		"Select "+parentKey.String()+" first")
	return false, reason
}

// props builds the filter contract for f. Orphaned values render unset.
// lv is set when a live session renders the filter.
func (s *Service) props(ctx context.Context, f collection.Filter, values querystate.Values, tag language.Tag, lv *live) (smartfilter.Props, error) {
	effective := cascade.Effective(s.hierarchies, values)
	label := s.label(tag, f)
	enabled, reason := s.enabled(tag, f, values)

	p := smartfilter.Props{
		Key:      f.Key,
		Label:    label,
		Value:    effective.Get(f.Key),
		Disabled: !enabled,
		Reason:   reason,
	}

	switch f.Kind {
	case smartfilter.KindText:
		p.Config = smartfilter.TextConfig{
			Placeholder: s.copy.Text(tag, "filters/search_term", nil, ""),
			Delay:       s.cfg.TextDelay,
		}
	case smartfilter.KindSwitch:
		p.Config = smartfilter.SwitchConfig{}
	case smartfilter.KindCheck:
		p.Config = smartfilter.CheckConfig{}
	case smartfilter.KindRadio:
		p.Config = smartfilter.RadioConfig{Options: s.choices(ctx, f, tag)}
	case smartfilter.KindSelect:
		p.Config = smartfilter.SelectConfig{
			Options:     s.choices(ctx, f, tag),
			Placeholder: s.copy.Text(tag, "filters/select", map[string]string{"Label": label}, label),
		}
	case smartfilter.KindAsyncSelect:
		p.Config = smartfilter.AsyncSelectConfig{
			Source:      s.source(f, effective, tag, lv),
			Placeholder: s.copy.Text(tag, "filters/search", map[string]string{"Label": label}, label),
			MoreLabel:   s.moreLabel(tag),
		}
	case smartfilter.KindListSearch:
		p.Config = smartfilter.ListSearchConfig{
			Source:            s.source(f, effective, tag, lv),
			SearchPlaceholder: s.copy.Text(tag, "filters/search", map[string]string{"Label": label}, label),
			MoreLabel:         s.moreLabel(tag),
		}
	default:
		return smartfilter.Props{}, errors.Wrapf(errors.ErrUnknownKind, "%s for %s", f.Kind, f.Key)
	}
	return p, nil
}

func (s *Service) moreLabel(tag language.Tag) func(int64) string {
	return func(remaining int64) string {
		return s.copy.Text(tag, "filters/more", map[string]int64{"Remaining": remaining}, "Show more")
	}
}

// choices loads the whole option list of a fixed choice filter. Skipped
// while the panel is disabled for it.
func (s *Service) choices(ctx context.Context, f collection.Filter, tag language.Tag) []options.Option {
	if f.Entity == nil {
		return []options.Option{}
	}
	page, _, err := s.fetchPage(ctx, f, querystate.Values{}, "", 1, choicePageSize, tag)
	if err != nil {
		s.log.Warnw("Failed to load choices",
			"filter", f.Key,
			"error", err,
		)
		return []options.Option{}
	}
	return page.Options
}

// Options returns one page of options for a remote or entity backed
// filter. A disabled filter has no options.
func (s *Service) Options(ctx context.Context, values querystate.Values, key querystate.Key, text string, page int, tag language.Tag) (options.Page, error) {
	f, err := lookup(key)
	if err != nil {
		return options.Page{}, err
	}
	if f.Entity == nil {
		return options.Page{}, errors.Wrapf(errors.ErrUnsupportedAction, "%s has no option list", key)
	}
	if ok, _ := s.enabled(tag, f, values); !ok {
		return options.Page{Options: []options.Option{}, Page: 1}, nil
	}
	if page < 1 {
		page = 1
	}

	effective := cascade.Effective(s.hierarchies, values)
	out, _, err := s.fetchPage(ctx, f, effective, text, page, s.cfg.PageSize, tag)
	if err != nil {
		s.log.Warnw("Failed to load options",
			"filter", key,
			"text", text,
			"page", page,
			"error", err,
		)
		return options.Page{Options: []options.Option{}, Page: page}, nil
	}
	return out, nil
}

// fetchPage lists entities scoped by the parent filter's value
func (s *Service) fetchPage(ctx context.Context, f collection.Filter, values querystate.Values, text string, page, size int, tag language.Tag) (options.Page, []options.Entity, error) {
	kind := *f.Entity
	q := collection.ListQuery{
		Text:     text,
		Page:     page,
		PageSize: size,
	}
	if kind.ParentKey != "" {
		q.ParentID = values.Get(kind.ParentKey)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	ep, err := s.repo.List(ctx, kind, q)
	if err != nil {
		return options.Page{}, nil, err
	}
	return options.FromEntityPage(ep, options.LocalizedLabel(tag)), ep.Data, nil
}

// fetchByID loads one entity of f for the resolver
func (s *Service) fetchByID(f collection.Filter) options.FetchByID {
	kind := *f.Entity
	return func(ctx context.Context, id string) (options.Entity, error) {
		return s.repo.GetByID(ctx, kind, id)
	}
}
