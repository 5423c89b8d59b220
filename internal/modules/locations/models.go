// Package locations manages the physical layout of a farm: named
// locations (pastures, feedlot modules) and the sublocations (paddocks)
// inside them, plus their occupancy and stocking-pressure reports.
package locations

// Location is a physical area on a farm.
type Location struct {
	ID           int64    `json:"id"`
	FarmID       int64    `json:"farm_id"`
	Name         string   `json:"name"`
	AreaHectares *float64 `json:"area_hectares"`
	GrassType    *string  `json:"grass_type"`
	LocationType *string  `json:"location_type"`
	GeoJSONData  *string  `json:"geo_json_data"`
}

// Sublocation is a subdivision of a location.
type Sublocation struct {
	ID               int64    `json:"id"`
	FarmID           int64    `json:"farm_id"`
	ParentLocationID int64    `json:"parent_location_id"`
	Name             string   `json:"name"`
	AreaHectares     *float64 `json:"area_hectares"`
	GeoJSONData      *string  `json:"geo_json_data"`
}
