package phiapi

// Field names follow the backend's JSON contract.

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

type Horizon string

const (
	Horizon1d  Horizon = "1d"
	Horizon7d  Horizon = "7d"
	Horizon30d Horizon = "30d"
	Horizon90d Horizon = "90d"
)

// Persona is owned by the backend; CreatedAt and UpdatedAt are server-assigned.
type Persona struct {
	UserID        string        `json:"userId"`
	RiskTolerance RiskTolerance `json:"riskTolerance"`
	Markets       []string      `json:"markets"`
	Horizon       Horizon       `json:"horizon"`
	DomainTags    []string      `json:"domainTags"`
	CreatedAt     string        `json:"createdAt,omitempty"`
	UpdatedAt     string        `json:"updatedAt,omitempty"`
}

type PersonaUpdate struct {
	UserID        string        `json:"userId"`
	RiskTolerance RiskTolerance `json:"riskTolerance"`
	Markets       []string      `json:"markets"`
	Horizon       Horizon       `json:"horizon"`
	DomainTags    []string      `json:"domainTags"`
}

type PredictionRequest struct {
	UserID  string   `json:"userId"`
	EventID string   `json:"eventId"`
	Seed    *float64 `json:"seed,omitempty"`
}

// Prediction is returned by the backend and never modified by this client.
type Prediction struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"userId"`
	EventID            string   `json:"eventId"`
	ProbabilityUp      float64  `json:"probabilityUp"`
	Confidence         float64  `json:"confidence"`
	RiskTier           string   `json:"riskTier"`
	Seed               float64  `json:"seed"`
	ExplanationBullets []string `json:"explanationBullets"`
	AgentVersion       string   `json:"agentVersion"`
	TxHash             *string  `json:"txHash"`
	NeofsObjectID      *string  `json:"neofsObjectId"`
	CreatedAt          string   `json:"createdAt"`
}

type paymentRequest struct {
	Resource   string  `json:"resource"`
	AmountUSDC float64 `json:"amountUsdc"`
}

// PaymentReceipt is the x402 demo payment response.
type PaymentReceipt struct {
	Resource      string  `json:"resource"`
	AmountUSDC    float64 `json:"amountUsdc"`
	PaymentHeader string  `json:"paymentHeader"`
	RawOutput     string  `json:"rawOutput"`
}
