package filing

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stages.
var (
	// ErrNotFound signals that a storage lookup matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrCheckpointNotFound signals that no checkpoint exists for a day.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCheckpointCorrupt signals that a checkpoint exists but cannot be decoded.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)

// StatusError is returned by fetchers when the remote answered with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// IndexEntry is one data row of a daily master index.
type IndexEntry struct {
	CIK         string `json:"company_cik"`
	CompanyName string `json:"company_name"`
	FormType    string `json:"form_type"`
	Filed       Date   `json:"file_date"`
	Path        string `json:"filepath"`
}

// Relationship is one reporting-owner relationship flag.
type Relationship string

// Relationship flags in the order they are read from a document.
const (
	RelationshipDirector   Relationship = "DIRECTOR"
	RelationshipOfficer    Relationship = "OFFICER"
	RelationshipTenPercent Relationship = "TENPERC"
	RelationshipOther      Relationship = "OTHER"
)

// Code maps the flag to the integer persisted in the relationships column.
func (r Relationship) Code() int32 {
	switch r {
	case RelationshipTenPercent:
		return 2
	case RelationshipDirector:
		return 3
	case RelationshipOfficer:
		return 4
	default:
		return 1
	}
}

// Action is the acquired/disposed classification derived from the raw action code.
type Action string

// Action values.
const (
	ActionAcquired Action = "ACQUIRED"
	ActionDisposed Action = "DISPOSED"
	ActionUnknown  Action = "UNKNOWN"
)

// Transaction is one non-derivative transaction parsed from a disclosure document.
type Transaction struct {
	FormDate      Date           `json:"form_date"`
	TransDate     Date           `json:"trans_date"`
	Company       string         `json:"company"`
	Symbol        string         `json:"symbol"`
	CompanyCIK    string         `json:"company_cik"`
	Owner         string         `json:"owner"`
	OwnerCIK      string         `json:"owner_cik"`
	Relationships []Relationship `json:"relationship"`
	SharesTraded  float64        `json:"shares_traded"`
	AvgPrice      float64        `json:"avg_price"`
	Amount        float64        `json:"amount"`
	SharesOwned   float64        `json:"shares_owned"`
	TransCode     string         `json:"trans_code"`
	OwnershipCode string         `json:"ownership_code"`
	ActionCode    string         `json:"action_code"`
	FormType      string         `json:"form_type"`
	FormURL       string         `json:"form_url"`
	AccessNo      string         `json:"access_no"`
}

// Action derives the classification from the raw action code ("A" or "D").
func (t Transaction) Action() Action {
	switch t.ActionCode {
	case "A":
		return ActionAcquired
	case "D":
		return ActionDisposed
	default:
		return ActionUnknown
	}
}

// RelationshipCodes returns the persisted integer codes of the relationship flags.
func (t Transaction) RelationshipCodes() []int32 {
	codes := make([]int32, 0, len(t.Relationships))
	for _, r := range t.Relationships {
		codes = append(codes, r.Code())
	}
	return codes
}

// Issuer is the storage row for a company, keyed by CIK.
type Issuer struct {
	ID     int64
	CIK    string
	Name   string
	Symbol string
}

// Individual is the storage row for a reporting owner, keyed by CIK.
type Individual struct {
	ID        int64
	CIK       string
	FullName  string
	FirstName *string
	LastName  *string
}

// Form is the storage row for one disclosure document, keyed by accession number.
type Form struct {
	ID           int64
	IssuerID     int64
	DateReported Date
	FormType     string
	URL          string
	AccessNo     string
}

// TransactionKey is the natural composite key of a stored transaction.
type TransactionKey struct {
	FormID        int64
	DateReported  Date
	SharesBalance float64
}

// TransactionRow is the storage row for one transaction with resolved surrogate ids.
type TransactionRow struct {
	ID            int64
	FormID        int64
	IssuerID      int64
	IndividualID  int64
	DateReported  Date
	ActionCode    string
	OwnershipCode string
	TransCode     string
	SharesBalance float64
	SharesTraded  float64
	AvgPrice      float64
	Amount        float64
	Relationships []int32
}

// Key returns the natural composite key of the row.
func (r TransactionRow) Key() TransactionKey {
	return TransactionKey{FormID: r.FormID, DateReported: r.DateReported, SharesBalance: r.SharesBalance}
}

// Response is the result of a successful fetch.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}
