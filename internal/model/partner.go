package model

// Partner is one row of the partner directory built from the government
// establishment registry. CSV tags match the published partners.csv layout.
type Partner struct {
	CNPJ            string `json:"cnpj" csv:"cnpj"`
	LegalName       string `json:"legal_name,omitempty" csv:"legal_name"`
	TradeName       string `json:"trade_name,omitempty" csv:"trade_name"`
	State           string `json:"state" csv:"state"`
	CityCode        string `json:"city_code,omitempty" csv:"city_code"`
	CityName        string `json:"city_name,omitempty" csv:"city_name"`
	PrimaryCNAE     string `json:"primary_cnae" csv:"primary_cnae"`
	SecondaryCNAEs  string `json:"secondary_cnaes,omitempty" csv:"secondary_cnaes"`
	Segment         string `json:"segment,omitempty" csv:"segment"`
	Priority        int    `json:"priority" csv:"priority"`
	Registration    string `json:"registration_status,omitempty" csv:"registration_status"`
	ActivityStart   string `json:"activity_start,omitempty" csv:"activity_start"`
	Email           string `json:"email,omitempty" csv:"email"`
	PostalCode      string `json:"postal_code,omitempty" csv:"postal_code"`
	CNAEDescription string `json:"cnae_description,omitempty" csv:"cnae_description"`
}
