package models

import (
	"strings"
	"time"
)

// SystemPartyID is the actor internal jobs run as. No real party may hold it.
const SystemPartyID = "system"

// IsReservedPartyID reports whether id collides with the internal actor.
func IsReservedPartyID(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), SystemPartyID)
}

type RelationshipStatus string

const (
	RelationshipPending     RelationshipStatus = "pending"
	RelationshipVerified    RelationshipStatus = "verified"
	RelationshipEstablished RelationshipStatus = "established"
)

// Relationship pairs one accounting firm with one client. The reputation
// state lives here and is mutated only by the scoring engine.
type Relationship struct {
	ID            string             `json:"id"`
	FirmPartyID   string             `json:"firm_party_id"`
	ClientPartyID string             `json:"client_party_id"`
	Status        RelationshipStatus `json:"status"`
	InitiatedBy   string             `json:"initiated_by"`

	Score             float64    `json:"score"`
	ConsecutiveMisses int        `json:"consecutive_misses"`
	OnTimeStreak      int        `json:"on_time_streak"`
	LastMissAt        *time.Time `json:"last_miss_at,omitempty"`
	OnTimeCount       int        `json:"on_time_count"`
	ResolvedCount     int        `json:"resolved_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Relationship) IsParty(partyID string) bool {
	return partyID != "" && (partyID == r.FirmPartyID || partyID == r.ClientPartyID)
}

// Counterparty returns the other side of the relationship, or "" when
// partyID is not a member.
func (r Relationship) Counterparty(partyID string) string {
	switch partyID {
	case "":
		return ""
	case r.FirmPartyID:
		return r.ClientPartyID
	case r.ClientPartyID:
		return r.FirmPartyID
	}
	return ""
}
