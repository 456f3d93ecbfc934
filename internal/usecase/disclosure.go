package usecase

import "agri-sponsorship/internal/domain/model"

// Disclosure thresholds. The field sets are cumulative: everything visible at
// a lower percentage stays visible at every higher one.
const (
	disclosureBasic   = 30
	disclosureDetail  = 60
	disclosureContact = 100
)

var (
	fieldsAt30  = []string{"overallHealthScore", "plantSpecies", "plantVariety", "growthStage", "imageUrl"}
	fieldsAt60  = []string{"vigorScore", "healthSeverity", "primaryConcern", "location"}
	fieldsAt100 = []string{"farmerName", "farmerPhone", "farmerEmail"}
)

// ProjectAnalysisForSponsor computes the tier-filtered view of one analysis.
// Pure: no I/O, no mutation of the inputs. farmer may be nil, in which case
// the 100% tier falls back to the contact snapshot carried on the analysis.
func ProjectAnalysisForSponsor(a *model.PlantAnalysis, accessPercentage int, profile model.SponsorDisplayInfo, farmer *model.FarmerContact) *model.SummaryView {
	v := &model.SummaryView{
		AnalysisID:       a.ID,
		AnalysisDate:     a.AnalysisDate,
		AnalysisStatus:   a.AnalysisStatus,
		CropType:         a.CropType,
		TierLabel:        model.AccessTierLabel(accessPercentage),
		AccessPercentage: accessPercentage,
		CanMessage:       accessPercentage >= disclosureBasic,
		SponsorInfo:      profile,
	}

	if accessPercentage >= disclosureBasic {
		v.OverallHealthScore = a.OverallHealthScore
		v.PlantSpecies = a.PlantSpecies
		v.PlantVariety = a.PlantVariety
		v.GrowthStage = a.GrowthStage
		v.ImageURL = a.ImageURL
	}
	if accessPercentage >= disclosureDetail {
		v.VigorScore = a.VigorScore
		v.HealthSeverity = a.HealthSeverity
		v.PrimaryConcern = a.PrimaryConcern
		v.Location = a.Location
	}
	if accessPercentage >= disclosureContact {
		if farmer != nil {
			v.FarmerName = strPtrOrNil(farmer.FullName)
			v.FarmerPhone = strPtrOrNil(farmer.Phone)
			v.FarmerEmail = strPtrOrNil(farmer.Email)
		} else {
			v.FarmerName = a.ContactName
			v.FarmerPhone = a.ContactPhone
			v.FarmerEmail = a.ContactEmail
		}
	}
	return v
}

// AccessibleFields lists the analysis field names a given percentage
// discloses, in threshold order. Used by the disclosure audit trail.
func AccessibleFields(accessPercentage int) []string {
	var out []string
	if accessPercentage >= disclosureBasic {
		out = append(out, fieldsAt30...)
	}
	if accessPercentage >= disclosureDetail {
		out = append(out, fieldsAt60...)
	}
	if accessPercentage >= disclosureContact {
		out = append(out, fieldsAt100...)
	}
	return out
}

// RestrictedFields lists the field names a given percentage withholds.
func RestrictedFields(accessPercentage int) []string {
	var out []string
	if accessPercentage < disclosureBasic {
		out = append(out, fieldsAt30...)
	}
	if accessPercentage < disclosureDetail {
		out = append(out, fieldsAt60...)
	}
	if accessPercentage < disclosureContact {
		out = append(out, fieldsAt100...)
	}
	return out
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
