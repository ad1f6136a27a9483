package collection

import (
	"collections/pkg/cascade"
	"collections/pkg/querystate"
	"collections/pkg/smartfilter"
)

// Section groups filters on the panel. Grouping is presentation only.
type Section string

const (
	SectionSearch      Section = "search"
	SectionTaxonomy    Section = "taxonomy"
	SectionGeography   Section = "geography"
	SectionInstitution Section = "institution"
	SectionSpecimen    Section = "specimen"
)

// Filter is one entry of the panel
type Filter struct {
	Key     querystate.Key
	Label   string
	Section Section
	Kind    smartfilter.Kind
	// Entity is set for filters whose options come from the data service.
	Entity *EntityKind
}

// Remote reports whether options are searched page by page
func (f Filter) Remote() bool {
	return f.Kind == smartfilter.KindAsyncSelect || f.Kind == smartfilter.KindListSearch
}

// Hierarchies of dependent filters. Species and locality have their own
// search endpoints and stay selectable without ancestors.
var (
	Taxonomy = cascade.MustHierarchy("taxonomy",
		cascade.Level{Key: ClassID},
		cascade.Level{Key: OrderID, Parent: ClassID},
		cascade.Level{Key: FamilyID, Parent: OrderID},
		cascade.Level{Key: GenusID, Parent: FamilyID},
		cascade.Level{Key: SpeciesID, Parent: GenusID, Independent: true},
	)
	Geography = cascade.MustHierarchy("geography",
		cascade.Level{Key: CountryID},
		cascade.Level{Key: DepartmentID, Parent: CountryID},
		cascade.Level{Key: ProvinceID, Parent: DepartmentID},
		cascade.Level{Key: DistrictID, Parent: ProvinceID},
		cascade.Level{Key: LocalityID, Parent: DistrictID, Independent: true},
	)
	InstitutionTree = cascade.MustHierarchy("institution",
		cascade.Level{Key: InstitutionID},
		cascade.Level{Key: MuseumID, Parent: InstitutionID},
	)
)

// Hierarchies returns every dependent filter chain
func Hierarchies() []*cascade.Hierarchy {
	return []*cascade.Hierarchy{Taxonomy, Geography, InstitutionTree}
}

func entity(k EntityKind) *EntityKind {
	return &k
}

var catalog = []Filter{
	{Key: SearchTerm, Label: "Search", Section: SectionSearch, Kind: smartfilter.KindText},

	{Key: ClassID, Label: "Class", Section: SectionTaxonomy, Kind: smartfilter.KindAsyncSelect, Entity: entity(Class)},
	{Key: OrderID, Label: "Order", Section: SectionTaxonomy, Kind: smartfilter.KindAsyncSelect, Entity: entity(Order)},
	{Key: FamilyID, Label: "Family", Section: SectionTaxonomy, Kind: smartfilter.KindAsyncSelect, Entity: entity(Family)},
	{Key: GenusID, Label: "Genus", Section: SectionTaxonomy, Kind: smartfilter.KindAsyncSelect, Entity: entity(Genus)},
	{Key: SpeciesID, Label: "Species", Section: SectionTaxonomy, Kind: smartfilter.KindListSearch, Entity: entity(Species)},

	{Key: CountryID, Label: "Country", Section: SectionGeography, Kind: smartfilter.KindAsyncSelect, Entity: entity(Country)},
	{Key: DepartmentID, Label: "Department", Section: SectionGeography, Kind: smartfilter.KindAsyncSelect, Entity: entity(Department)},
	{Key: ProvinceID, Label: "Province", Section: SectionGeography, Kind: smartfilter.KindAsyncSelect, Entity: entity(Province)},
	{Key: DistrictID, Label: "District", Section: SectionGeography, Kind: smartfilter.KindAsyncSelect, Entity: entity(District)},
	{Key: LocalityID, Label: "Locality", Section: SectionGeography, Kind: smartfilter.KindListSearch, Entity: entity(Locality)},

	{Key: InstitutionID, Label: "Institution", Section: SectionInstitution, Kind: smartfilter.KindAsyncSelect, Entity: entity(Institution)},
	{Key: MuseumID, Label: "Museum", Section: SectionInstitution, Kind: smartfilter.KindAsyncSelect, Entity: entity(Museum)},

	// Short lists, loaded whole and shown as fixed choices.
	{Key: SexID, Label: "Sex", Section: SectionSpecimen, Kind: smartfilter.KindRadio, Entity: entity(Sex)},
	{Key: ForestTypeID, Label: "Forest type", Section: SectionSpecimen, Kind: smartfilter.KindSelect, Entity: entity(ForestType)},
	{Key: HasEggs, Label: "With eggs", Section: SectionSpecimen, Kind: smartfilter.KindSwitch},
	{Key: HasImages, Label: "With images", Section: SectionSpecimen, Kind: smartfilter.KindSwitch},
	{Key: HasSounds, Label: "With sounds", Section: SectionSpecimen, Kind: smartfilter.KindCheck},
	{Key: Barcode, Label: "Barcoded", Section: SectionSpecimen, Kind: smartfilter.KindCheck},
}

// Filters returns the panel filters in display order
func Filters() []Filter {
	out := make([]Filter, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the filter for key
func Lookup(key querystate.Key) (Filter, bool) {
	for _, f := range catalog {
		if f.Key == key {
			return f, true
		}
	}
	return Filter{}, false
}

// FilterKeys returns every filter key, used to clear all filters at once
func FilterKeys() []querystate.Key {
	keys := make([]querystate.Key, 0, len(catalog))
	for _, f := range catalog {
		keys = append(keys, f.Key)
	}
	return keys
}

// Sections returns the section order of the panel
func Sections() []Section {
	return []Section{SectionSearch, SectionTaxonomy, SectionGeography, SectionInstitution, SectionSpecimen}
}
