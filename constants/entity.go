package constants

// EntityType identifies the kind of analysis result an archive download
// belongs to. The API uses these exact path segments under /download.
type EntityType string

const (
	EntityDeforestationMapBiomas EntityType = "DeforestationAnalysis"
	EntityDeforestationProdes    EntityType = "DeforestationAnalysisProdes"
	EntityReportRestrictions     EntityType = "ReportRestrictionsDetailed"
)

var allEntityTypes = []EntityType{
	EntityDeforestationMapBiomas,
	EntityDeforestationProdes,
	EntityReportRestrictions,
}

// EntityTypes returns the known entity types as plain strings.
func EntityTypes() []string {
	result := make([]string, len(allEntityTypes))
	for i, e := range allEntityTypes {
		result[i] = string(e)
	}
	return result
}

// Folder returns the directory name used for downloaded archives. The
// MapBiomas entity keeps its historical folder name.
func (e EntityType) Folder() string {
	if e == EntityDeforestationMapBiomas {
		return "DeforestationAnalysisMapBiomas"
	}
	return string(e)
}

// KnownEntityType reports whether the value is one of the API's entity types.
func KnownEntityType(s string) bool {
	for _, e := range allEntityTypes {
		if string(e) == s {
			return true
		}
	}
	return false
}
