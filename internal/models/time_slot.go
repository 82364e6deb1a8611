package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is used when an owner has not chosen one.
const DefaultTimezone = "UTC"

// SlotList is an ordered list of daily HH:MM times, stored as a comma-separated column.
type SlotList []string

// Value implements driver.Valuer.
func (l SlotList) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

// Scan implements sql.Scanner.
func (l *SlotList) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*l = SlotList{}
		return nil
	default:
		return fmt.Errorf("unsupported slot list type %T", src)
	}
	if strings.TrimSpace(raw) == "" {
		*l = SlotList{}
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(SlotList, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	*l = out
	return nil
}

// TimeSlotConfig holds an owner's preferred daily posting times.
type TimeSlotConfig struct {
	OwnerID   uint      `gorm:"primaryKey;autoIncrement:false" json:"owner_id"`
	Slots     SlotList  `gorm:"type:text;not null" json:"slots"`
	Timezone  string    `gorm:"size:64;not null" json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
