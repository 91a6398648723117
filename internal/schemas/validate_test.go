package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJobExtraction_Valid(t *testing.T) {
	doc := `{
		"summary": "Backend engineer building Go services",
		"requirements": ["5 years Go", "PostgreSQL"],
		"responsibilities": ["Own services end to end"],
		"skills": ["Go", "PostgreSQL"],
		"admin_info": {"salary": "$150k"}
	}`

	assert.NoError(t, ValidateJobExtraction(doc))
}

func TestValidateJobExtraction_MissingRequired(t *testing.T) {
	doc := `{"summary": "An engineer"}`

	err := ValidateJobExtraction(doc)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Errors)
	assert.Contains(t, err.Error(), "requirements")
}

func TestValidateJobExtraction_WrongType(t *testing.T) {
	doc := `{
		"summary": "An engineer",
		"requirements": "not an array",
		"responsibilities": []
	}`

	var verr *ValidationError
	require.ErrorAs(t, ValidateJobExtraction(doc), &verr)
}

func TestValidateJobExtraction_EmptySummary(t *testing.T) {
	doc := `{
		"summary": "",
		"requirements": [],
		"responsibilities": []
	}`

	assert.Error(t, ValidateJobExtraction(doc))
}

func TestValidateJobExtraction_NotJSON(t *testing.T) {
	assert.Error(t, ValidateJobExtraction("not json at all"))
}
