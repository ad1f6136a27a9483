package templates

import (
	"golang.org/x/text/language"

	"collections/pkg/logger"
)

// Copy serves localized UI strings out of a Registry. Lookups fall back to
// the default locale and then to a caller supplied text, so a missing
// translation never blanks a control.
type Copy struct {
	reg      *Registry
	fallback language.Tag
	tags     []language.Tag
	matcher  language.Matcher
	log      *logger.Logger
}

// NewCopy builds a Copy over every locale present in reg
func NewCopy(reg *Registry, defaultLocale string, log *logger.Logger) *Copy {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		fallback = language.English
	}

	// The default goes first: the matcher falls back to the first tag.
	tags := []language.Tag{fallback}
	for _, l := range reg.Locales() {
		t, err := language.Parse(l)
		if err != nil || t == fallback {
			continue
		}
		tags = append(tags, t)
	}

	return &Copy{
		reg:      reg,
		fallback: fallback,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		log:      log.Component("copy"),
	}
}

// Default returns the fallback locale
func (c *Copy) Default() language.Tag {
	return c.fallback
}

// Match picks the supported locale for an explicit choice (e.g. ?locale=es)
// or an Accept-Language header, in that order of preference.
func (c *Copy) Match(preferences ...string) language.Tag {
	for _, p := range preferences {
		if p == "" {
			continue
		}
		desired, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(desired) == 0 {
			continue
		}
		_, idx, conf := c.matcher.Match(desired...)
		if conf != language.No {
			return c.tags[idx]
		}
	}
	return c.fallback
}

// Text renders id for tag. fallback is returned when no locale has the copy.
func (c *Copy) Text(tag language.Tag, id string, data any, fallback string) string {
	for _, locale := range c.candidates(tag) {
		tmpl, err := c.reg.GetTemplate(locale + "/" + id)
		if err != nil {
			continue
		}
		out, err := tmpl.Render(data)
		if err != nil {
			c.log.Warnw("Failed to render copy", "id", tmpl.ID, "error", err)
			break
		}
		return out
	}
	return fallback
}

func (c *Copy) candidates(tag language.Tag) []string {
	base, _ := tag.Base()
	out := []string{tag.String()}
	if b := base.String(); b != out[0] {
		out = append(out, b)
	}
	if fb := c.fallback.String(); fb != out[0] {
		out = append(out, fb)
	}
	return out
}
