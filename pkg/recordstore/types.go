package recordstore

// Record type names as they exist in the store. The importer addresses
// everything through these constants so the engine never hardcodes an
// object name.
const (
	TypeCustomer        = "Account"
	TypeProject         = "Project__c"
	TypeTask            = "Project_Task__c"
	TypeEstimate        = "Estimate__c"
	TypeEstimateLine    = "Estimate_Line__c"
	TypeCatalogItem     = "Product2"
	TypeClass           = "Classification__c"
	TypeDepartment      = "Department__c"
	TypeLocation        = "Location__c"
	TypeEmployee        = "User"
	TypeBillingSchedule = "Billing_Schedule__c"
)
