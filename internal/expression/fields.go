package expression

import (
	"strings"

	"github.com/jmylchreest/tvfilter/internal/models"
)

// knownFields is the set of channel attributes a predicate may address.
var knownFields = map[string]string{
	models.FieldGroup:      models.FieldGroup,
	models.FieldName:       models.FieldName,
	models.FieldTitle:      models.FieldTitle,
	models.FieldCaption:    models.FieldCaption,
	models.FieldURL:        models.FieldURL,
	models.FieldID:         models.FieldID,
	models.FieldKind:       models.FieldKind,
	models.FieldInput:      models.FieldInput,
	models.FieldEpgID:      models.FieldEpgID,
	models.FieldLogo:       models.FieldLogo,
	models.FieldChno:       models.FieldChno,
	models.FieldCategoryID: models.FieldCategoryID,
}

// CanonicalField returns the canonical (lower case) field name.
// Field names are case-insensitive: "Group" and "GROUP" both address group.
func CanonicalField(name string) (string, bool) {
	f, ok := knownFields[strings.ToLower(name)]
	return f, ok
}

// IsKnownField reports whether name addresses a filterable field.
func IsKnownField(name string) bool {
	_, ok := CanonicalField(name)
	return ok
}
