package recordstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSOQL_NoFilters(t *testing.T) {
	soql := buildSOQL(TypeCatalogItem, nil, []string{"Id", "Name"}, 0)
	assert.Equal(t, "SELECT Id, Name FROM Product2", soql)
}

func TestBuildSOQL_QuotedFilter(t *testing.T) {
	soql := buildSOQL(TypeCustomer, []Filter{{Field: "Name", Value: "Acme Corp"}}, []string{"Id"}, 1)
	assert.Equal(t, "SELECT Id FROM Account WHERE Name = 'Acme Corp' LIMIT 1", soql)
}

func TestBuildSOQL_MultipleFilters(t *testing.T) {
	soql := buildSOQL(TypeProject, []Filter{
		{Field: "Code__c", Value: "PRJ-99"},
		{Field: "Account__c", Value: "001xx0001"},
	}, []string{"Id", "Manager__c"}, 10)
	assert.Equal(t,
		"SELECT Id, Manager__c FROM Project__c WHERE Code__c = 'PRJ-99' AND Account__c = '001xx0001' LIMIT 10",
		soql)
}

func TestBuildSOQL_RawFilter(t *testing.T) {
	soql := buildSOQL(TypeCatalogItem, []Filter{{Field: "IsActive", Value: "true", Raw: true}}, []string{"Id"}, 1)
	assert.Equal(t, "SELECT Id FROM Product2 WHERE IsActive = true LIMIT 1", soql)
}

func TestEscapeSoql(t *testing.T) {
	soql := buildSOQL(TypeCustomer, []Filter{{Field: "Name", Value: "O'Leary & Sons"}}, []string{"Id"}, 1)
	assert.Contains(t, soql, `Name = 'O\'Leary & Sons'`)
}

func TestRecordHelpers(t *testing.T) {
	r := Record{"Id": "003xx", "Name": "Acme", "NumberOfEmployees": 12}
	assert.Equal(t, "003xx", r.ID())
	assert.Equal(t, "Acme", r.Str("Name"))
	assert.Equal(t, "", r.Str("NumberOfEmployees"))
	assert.Equal(t, "", r.Str("missing"))
}

func TestWithID_DoesNotMutateCaller(t *testing.T) {
	fields := map[string]any{"Manager__c": "emp-9"}
	payload := withID(fields, "proj-1")
	assert.Equal(t, "proj-1", payload["Id"])
	assert.Equal(t, "emp-9", payload["Manager__c"])
	assert.NotContains(t, fields, "Id")
}
