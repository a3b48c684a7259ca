package model

// Producer represents a grower identity as stored in the `producers`
// table.  Producers are keyed by their producer code and own zero or
// more farms.
//
// Fields:
//  Code           – producer code (primary key).
//  Name           – display name.
//  ConsultantCode – code of the consultant assigned to the producer.
type Producer struct {
	Code           string  `json:"code"`            // producers.code
	Name           string  `json:"name"`            // producers.name
	ConsultantCode *string `json:"consultant_code"` // producers.consultant_code
}

// Farm represents a row in the `farms` table.  A farm belongs to exactly
// one producer and is unique per (producer_code, farm_code).  Its
// consultant code may differ from the producer's and is used for
// delegated access.
//
// Fields:
//  ID             – surrogate identifier referenced by plots and grants.
//  ProducerCode   – owning producer.
//  FarmCode       – farm code, unique within the producer.
//  Name           – display name.
//  ConsultantCode – consultant assigned to this farm.
type Farm struct {
	ID             string  `json:"id"`              // farms.id
	ProducerCode   string  `json:"producer_code"`   // farms.producer_code
	FarmCode       string  `json:"farm_code"`       // farms.farm_code
	Name           string  `json:"name"`            // farms.name
	ConsultantCode *string `json:"consultant_code"` // farms.consultant_code
	ProducerName   string  `json:"producer_name,omitempty"`
}
