package collection

import "collections/pkg/querystate"

// Filter keys as they appear in the collections page URL
const (
	CountryID     querystate.Key = "countryId"
	DepartmentID  querystate.Key = "departmentId"
	ProvinceID    querystate.Key = "provinceId"
	DistrictID    querystate.Key = "districtId"
	LocalityID    querystate.Key = "localityId"
	ClassID       querystate.Key = "classId"
	OrderID       querystate.Key = "orderId"
	FamilyID      querystate.Key = "familyId"
	GenusID       querystate.Key = "genusId"
	SpeciesID     querystate.Key = "speciesId"
	SexID         querystate.Key = "sexId"
	InstitutionID querystate.Key = "institutionId"
	MuseumID      querystate.Key = "museumId"
	ForestTypeID  querystate.Key = "forestTypeId"
	HasEggs       querystate.Key = "hasEggs"
	HasImages     querystate.Key = "hasImages"
	HasSounds     querystate.Key = "hasSounds"
	Barcode       querystate.Key = "barcode"
	SearchTerm    querystate.Key = "searchTerm"
)

// Display keys. They shape the result list but are not filters, so
// clearing filters keeps them.
const (
	View      querystate.Key = "view"
	Page                     = querystate.PageKey
	PageSize  querystate.Key = "pageSize"
	OrderBy   querystate.Key = "orderBy"
	OrderType querystate.Key = "orderType"
)

// IsDisplayKey reports whether key is a display parameter
func IsDisplayKey(key querystate.Key) bool {
	switch key {
	case View, Page, PageSize, OrderBy, OrderType:
		return true
	}
	return false
}
