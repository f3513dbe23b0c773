package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitEvent 一次成功跳转的访问记录，写入后不再修改
type VisitEvent struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	ShortLinkID uint   `gorm:"not null;index:idx_visit_link_time,priority:1" json:"short_link_id"`
	ShortCode   string `gorm:"size:20;not null" json:"short_code"`
	OwnerID     uint   `gorm:"index" json:"owner_id"`

	IPAddress string `gorm:"size:45" json:"ip_address"`
	UserAgent string `gorm:"type:text" json:"user_agent"`
	Referer   string `gorm:"type:text" json:"referer"`

	Country     string  `gorm:"size:100" json:"country"`
	CountryCode string  `gorm:"size:8" json:"country_code"`
	Region      string  `gorm:"size:100" json:"region"`
	City        string  `gorm:"size:100" json:"city"`
	Timezone    string  `gorm:"size:64" json:"timezone"`
	ISP         string  `gorm:"size:255" json:"isp"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	Browser        string `gorm:"size:64" json:"browser"`
	BrowserVersion string `gorm:"size:32" json:"browser_version"`
	OS             string `gorm:"size:64" json:"os"`
	OSVersion      string `gorm:"size:32" json:"os_version"`
	DeviceFamily   string `gorm:"size:64" json:"device_family"`
	DeviceType     string `gorm:"size:16" json:"device_type"`
	IsMobile       bool   `json:"is_mobile"`
	IsBot          bool   `json:"is_bot"`

	CreatedAt time.Time `gorm:"index:idx_visit_link_time,priority:2" json:"created_at"`
}

func (VisitEvent) TableName() string {
	return "visit_events"
}

// BeforeCreate 生成 UUID 主键
func (v *VisitEvent) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// VisitSummary 单个短链接的访问汇总
type VisitSummary struct {
	ShortCode      string        `json:"short_code"`
	ClickCount     int64         `json:"click_count"`
	TotalVisits    int64         `json:"total_visits"`
	UniqueVisitors int64         `json:"unique_visitors"`
	BotVisits      int64         `json:"bot_visits"`
	TopCountries   []CountBucket `json:"top_countries"`
	TopBrowsers    []CountBucket `json:"top_browsers"`
	DeviceTypes    []CountBucket `json:"device_types"`
	TopReferers    []CountBucket `json:"top_referers"`
}

// CountBucket 分组计数
type CountBucket struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
