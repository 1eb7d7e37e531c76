package models

import "time"

// SystemRelayID is the fixed id of the local system actor. It is the only
// relay that may be followed.
const SystemRelayID = 0

// RelayModel is a federation actor: the local system actor (id 0) or a remote
// peer directory that follows us or is followed by us.
type RelayModel struct {
	ID       int64  `json:"id"       gorm:"primaryKey;autoIncrement:false"`
	Identity string `json:"identity" gorm:"uniqueIndex;size:191;not null"`
	Name     string `json:"name"`
	Inbox    string `json:"inbox"    gorm:"size:512;not null"`
	Outbox   string `json:"outbox"   gorm:"size:512"`
	// PublicKey exists for every actor; PrivateKey only for the local one.
	PublicKey       string    `json:"-" gorm:"type:text;not null"`
	PrivateKey      *string   `json:"-" gorm:"type:text"`
	Local           bool      `json:"local"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
	CreatedAt       time.Time `json:"created"`
}

func (RelayModel) TableName() string { return "relays" }

// FollowerEdgeModel records that FollowerID receives fan-out for activities
// owned by RelayID.
type FollowerEdgeModel struct {
	RelayID    int64     `json:"relay_id"    gorm:"primaryKey;autoIncrement:false"`
	FollowerID int64     `json:"follower_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time `json:"created"`
}

func (FollowerEdgeModel) TableName() string { return "follower_edges" }
