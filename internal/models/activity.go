package models

import "time"

// Activity kinds accepted over federation.
const (
	ActivityFollow = "Follow"
	ActivityCreate = "Create"
	ActivityUpdate = "Update"
)

// ActivityModel is one row of the append-only federation ledger. Rows are
// never updated or deleted; the row count is authoritative for the next
// outgoing activity's sequence number.
type ActivityModel struct {
	ID        int64     `json:"id"       gorm:"primaryKey;autoIncrement:false"`
	Identity  string    `json:"identity" gorm:"uniqueIndex;size:191;not null"`
	Actor     string    `json:"actor"    gorm:"size:512;not null"`
	Object    string    `json:"object"   gorm:"size:512;not null"`
	Kind      string    `json:"kind"     gorm:"size:16;not null"`
	CreatedAt time.Time `json:"created"`
}

func (ActivityModel) TableName() string { return "activities" }
