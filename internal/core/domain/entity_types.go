package domain

const (
	EntityTypeOrganization       = "Organization"
	EntityTypeOrganizationMember = "OrganizationMember"
	EntityTypeProject            = "Project"
	EntityTypeProjectMember      = "ProjectMember"
	EntityTypeDocument           = "Document"
	EntityTypeFinding            = "Finding"
	EntityTypeEvidence           = "FindingEvidence"
	EntityTypeProjectFramework   = "ProjectFramework"
	EntityTypeCheckRun           = "CheckRun"
	EntityTypeRemediationTask    = "RemediationTask"
)
