package options

import (
	"golang.org/x/text/language"
)

// Labeler picks the display label of an entity
type Labeler func(e Entity) string

// NameLabel uses the untranslated name
func NameLabel(e Entity) string {
	return e.Name
}

// LocalizedLabel returns a labeler that prefers the translation best
// matching tag and falls back to the plain name.
func LocalizedLabel(tag language.Tag) Labeler {
	return func(e Entity) string {
		if len(e.Names) == 0 {
			return e.Name
		}
		if name := e.Names[tag.String()]; name != "" {
			return name
		}

		available := make([]language.Tag, 0, len(e.Names))
		raw := make([]string, 0, len(e.Names))
		for t := range e.Names {
			parsed, err := language.Parse(t)
			if err != nil {
				continue
			}
			available = append(available, parsed)
			raw = append(raw, t)
		}
		if len(available) == 0 {
			return e.Name
		}

		_, idx, conf := language.NewMatcher(available).Match(tag)
		if conf == language.No {
			return e.Name
		}
		if name := e.Names[raw[idx]]; name != "" {
			return name
		}
		return e.Name
	}
}

// FromEntity maps one entity to an option
func FromEntity(e Entity, label Labeler) Option {
	if label == nil {
		label = NameLabel
	}
	return Option{Label: label(e), Value: e.ID.String()}
}

// FromEntities maps a page of entities to options, preserving order
func FromEntities(entities []Entity, label Labeler) []Option {
	out := make([]Option, 0, len(entities))
	for _, e := range entities {
		out = append(out, FromEntity(e, label))
	}
	return out
}

// FromEntityPage maps a data service page to an option page
func FromEntityPage(p EntityPage, label Labeler) Page {
	return Page{
		Options: FromEntities(p.Data, label),
		HasMore: p.HasMore(),
		Page:    p.CurrentPage,
		Total:   p.TotalItems,
	}
}
