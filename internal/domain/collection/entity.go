package collection

import (
	"context"

	"collections/pkg/options"
	"collections/pkg/querystate"
)

// EntityKind describes one data service resource
type EntityKind struct {
	Name string
	// Path is the resource path under the data service base URL.
	Path string
	// SearchParam carries the search text in list requests.
	SearchParam string
	// ParentKey is the filter whose value scopes the list, if any.
	ParentKey querystate.Key
	// Translated kinds carry per-locale names.
	Translated bool
}

var (
	Country     = EntityKind{Name: "country", Path: "countries", SearchParam: "name", Translated: true}
	Department  = EntityKind{Name: "department", Path: "departments", SearchParam: "name", ParentKey: CountryID}
	Province    = EntityKind{Name: "province", Path: "provinces", SearchParam: "name", ParentKey: DepartmentID}
	District    = EntityKind{Name: "district", Path: "districts", SearchParam: "name", ParentKey: ProvinceID}
	Locality    = EntityKind{Name: "locality", Path: "localities", SearchParam: "searchTerm", ParentKey: DistrictID}
	Class       = EntityKind{Name: "class", Path: "classes", SearchParam: "name", Translated: true}
	Order       = EntityKind{Name: "order", Path: "orders", SearchParam: "name", ParentKey: ClassID}
	Family      = EntityKind{Name: "family", Path: "families", SearchParam: "name", ParentKey: OrderID}
	Genus       = EntityKind{Name: "genus", Path: "genera", SearchParam: "name", ParentKey: FamilyID}
	Species     = EntityKind{Name: "species", Path: "species", SearchParam: "searchTerm", ParentKey: GenusID}
	Institution = EntityKind{Name: "institution", Path: "institutions", SearchParam: "name"}
	Museum      = EntityKind{Name: "museum", Path: "museums", SearchParam: "name", ParentKey: InstitutionID}
	ForestType  = EntityKind{Name: "forestType", Path: "forest-types", SearchParam: "name", Translated: true}
	Sex         = EntityKind{Name: "sex", Path: "sexes", SearchParam: "name", Translated: true}
)

// EntityKinds lists every kind the data service serves
func EntityKinds() []EntityKind {
	return []EntityKind{
		Country, Department, Province, District, Locality,
		Class, Order, Family, Genus, Species,
		Institution, Museum, ForestType, Sex,
	}
}

// ListQuery is one list request
type ListQuery struct {
	Text     string
	Page     int
	PageSize int
	// ParentID scopes the list to the parent entity; "" lists everything.
	ParentID string
}

// Repository reads catalog entities from the data service
type Repository interface {
	List(ctx context.Context, kind EntityKind, q ListQuery) (options.EntityPage, error)
	GetByID(ctx context.Context, kind EntityKind, id string) (options.Entity, error)
}
