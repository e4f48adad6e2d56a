package matching

// Weights holds every weight, cap and default used by the score formula.
type Weights struct {
	Required        float64 `mapstructure:"required" validate:"gt=0"`
	RequiredDefault float64 `mapstructure:"required_default" validate:"gte=0"`

	Preferred        float64 `mapstructure:"preferred" validate:"gte=0"`
	PreferredDefault float64 `mapstructure:"preferred_default" validate:"gte=0"`

	ProjectPerRelevant float64 `mapstructure:"project_per_relevant" validate:"gte=0"`
	ProjectBaseCap     float64 `mapstructure:"project_base_cap" validate:"gte=0"`
	ProjectPerVerified float64 `mapstructure:"project_per_verified" validate:"gte=0"`
	ProjectVerifiedCap float64 `mapstructure:"project_verified_cap" validate:"gte=0"`
	ProjectTagCap      float64 `mapstructure:"project_tag_cap" validate:"gte=0"`

	Readiness float64 `mapstructure:"readiness" validate:"gte=0"`

	GrowthWindow         int     `mapstructure:"growth_window" validate:"gte=2"`
	GrowthDivisor        float64 `mapstructure:"growth_divisor" validate:"gt=0"`
	GrowthCap            float64 `mapstructure:"growth_cap" validate:"gte=0"`
	GrowthReadyThreshold int     `mapstructure:"growth_ready_threshold" validate:"gte=0,lte=100"`
	GrowthReadyScore     float64 `mapstructure:"growth_ready_score" validate:"gte=0"`

	CGPA        float64 `mapstructure:"cgpa" validate:"gte=0"`
	CGPADefault float64 `mapstructure:"cgpa_default" validate:"gte=0"`

	CertPerVerified float64 `mapstructure:"cert_per_verified" validate:"gte=0"`
	CertCap         float64 `mapstructure:"cert_cap" validate:"gte=0"`

	CodingDivisor float64 `mapstructure:"coding_divisor" validate:"gt=0"`
	CodingCap     float64 `mapstructure:"coding_cap" validate:"gte=0"`

	FloorMatchRatio float64 `mapstructure:"floor_match_ratio" validate:"gte=0,lte=1"`
	FloorBase       float64 `mapstructure:"floor_base" validate:"gte=0"`
	FloorSpan       float64 `mapstructure:"floor_span" validate:"gte=0"`
}

func DefaultWeights() Weights {
	return Weights{
		Required:        30,
		RequiredDefault: 15,

		Preferred:        10,
		PreferredDefault: 5,

		ProjectPerRelevant: 4,
		ProjectBaseCap:     15,
		ProjectPerVerified: 2,
		ProjectVerifiedCap: 5,
		ProjectTagCap:      5,

		Readiness: 20,

		GrowthWindow:         3,
		GrowthDivisor:        2,
		GrowthCap:            10,
		GrowthReadyThreshold: 70,
		GrowthReadyScore:     5,

		CGPA:        3,
		CGPADefault: 1.5,

		CertPerVerified: 0.5,
		CertCap:         2,

		CodingDivisor: 20,
		CodingCap:     5,

		FloorMatchRatio: 0.5,
		FloorBase:       25,
		FloorSpan:       25,
	}
}
