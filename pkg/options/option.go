// Package options maps catalog entities to selectable options and resolves
// the label of a selected id that is not part of the loaded page.
package options

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Option is one selectable entry. Value is the entity id as a string.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Page is the result of one paginated option request. HasMore tells whether
// another page exists after this one.
type Page struct {
	Options []Option `json:"options"`
	HasMore bool     `json:"hasMore"`
	Page    int      `json:"page"`
	Total   int      `json:"total,omitempty"`
}

// ID is an entity id. The data service sends numbers for most kinds and
// strings for a few (country codes); both decode to the string form.
type ID string

// UnmarshalJSON accepts a JSON number or string
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as used in URLs and option values
func (id ID) String() string {
	return string(id)
}

// Entity is a catalog record with a display name. Names holds translated
// names keyed by BCP 47 tag when the kind is translated.
type Entity struct {
	ID    ID                `json:"id"`
	Name  string            `json:"name"`
	Names map[string]string `json:"names,omitempty"`
}

// EntityPage is one page of entities as returned by the data service.
type EntityPage struct {
	Data        []Entity `json:"data"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	TotalItems  int      `json:"totalItems"`
}

// HasMore reports whether a page after this one exists
func (p EntityPage) HasMore() bool {
	return p.CurrentPage < p.TotalPages
}

// Find returns the entity whose id equals id
func (p EntityPage) Find(id string) (Entity, bool) {
	return FindEntity(p.Data, id)
}

// FindEntity returns the entity of entities whose id stringifies to id
func FindEntity(entities []Entity, id string) (Entity, bool) {
	id = strings.TrimSpace(id)
	for _, e := range entities {
		if e.ID.String() == id {
			return e, true
		}
	}
	return Entity{}, false
}

// FindOption returns the option whose value is id
func FindOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.Value == id {
			return o, true
		}
	}
	return Option{}, false
}
