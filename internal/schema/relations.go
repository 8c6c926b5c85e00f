package schema

// Relation names for entity_links rows. Links are stored pointing in the
// downstream direction of the canonical chain (scenario -> workshop ->
// requirement -> realization -> spec -> test -> defect); the registry
// resolves upstream neighbors by reversing the lookup.
const (
	RelAssessedIn  = "assessed_in"  // scenario -> workshop
	RelRaised      = "raised"       // workshop -> requirement
	RelRaisedFor   = "raised_for"   // requirement/open_item -> process_level
	RelRealizedBy  = "realized_by"  // requirement -> wricef_item | config_item | interface
	RelSpecifiedBy = "specified_by" // wricef_item/config_item -> functional_spec
	RelDetailedBy  = "detailed_by"  // functional_spec -> technical_spec
	RelVerifiedBy  = "verified_by"  // wricef_item/config_item -> test_case
	RelFound       = "found"        // test_case -> defect
	RelDecidedFor  = "decided_for"  // decision -> any entity
	RelRaisedOn    = "raised_on"    // open_item -> any entity
	RelTouches     = "touches"      // interface -> wricef_item/config_item (lateral)
	RelPlannedBy   = "planned_by"   // wave -> switch_plan
	RelGatedBy     = "gated_by"     // switch_plan -> connectivity_test
	RelCheckedBy   = "checked_by"   // interface -> connectivity_test
	RelAssignedTo  = "assigned_to"  // interface/wricef_item -> wave
	RelAssesses    = "assesses"     // workshop -> process_level (level 3)
	RelCovers      = "covers"       // workshop -> process_step (level 4)
)
