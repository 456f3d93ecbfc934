package model

import "time"

// PlantAnalysis is the full analysis record as owned by the analysis
// pipeline. The disclosure filter projects it into a SummaryView according
// to a sponsor's tier percentage; the engine itself never mutates it.
type PlantAnalysis struct {
	ID             string
	FarmerUserID   *string
	SponsorUserID  *string
	AnalysisDate   time.Time
	AnalysisStatus string
	CropType       string

	// 30% fields
	OverallHealthScore *int
	PlantSpecies       *string
	PlantVariety       *string
	GrowthStage        *string
	ImageURL           *string

	// 60% fields
	VigorScore     *int
	HealthSeverity *string
	PrimaryConcern *string
	Location       *string

	// 100% fields: the analysis's own contact snapshot, used as fallback
	// when the farmer's user record is unavailable.
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
}

// SponsorProfile is display-only sponsor identity, owned by an external
// collaborator and consumed verbatim by the disclosure filter.
type SponsorProfile struct {
	SponsorID   string
	CompanyName string
	LogoURL     string
	WebsiteURL  string
	IsActive    bool
	IsVerified  bool
}

// FarmerContact is the slice of the user record the 100% tier discloses.
type FarmerContact struct {
	UserID   string
	FullName string
	Phone    string
	Email    string
}

// SponsorDisplayInfo is the sponsor identity block every tier sees.
type SponsorDisplayInfo struct {
	SponsorID   string
	CompanyName string
	LogoURL     string
	WebsiteURL  string
}

// SummaryView is the tier-filtered projection of one analysis for one
// sponsor. Nil pointers mean "not disclosed at this tier"; the populated
// field set is monotonic in AccessPercentage.
type SummaryView struct {
	AnalysisID     string
	AnalysisDate   time.Time
	AnalysisStatus string
	CropType       string

	TierLabel        string
	AccessPercentage int
	CanMessage       bool
	SponsorInfo      SponsorDisplayInfo

	// >= 30
	OverallHealthScore *int
	PlantSpecies       *string
	PlantVariety       *string
	GrowthStage        *string
	ImageURL           *string

	// >= 60
	VigorScore     *int
	HealthSeverity *string
	PrimaryConcern *string
	Location       *string

	// >= 100
	FarmerName  *string
	FarmerPhone *string
	FarmerEmail *string
}
