package useragent

import (
	"strings"

	"github.com/mssola/useragent"
)

// 设备类型
const (
	DeviceBot     = "Bot"
	DeviceTablet  = "Tablet"
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
	unknown       = "Unknown"
)

var (
	mobileMarkers = []string{"mobile", "android", "iphone", "ipad", "windows phone"}
	botMarkers    = []string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python", "java/"}
)

// Client 访问客户端信息
type Client struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceFamily   string
	DeviceType     string
	IsMobile       bool
	IsBot          bool
}

// Unknown 无法识别时使用
func Unknown() Client {
	return Client{
		Browser:        unknown,
		BrowserVersion: unknown,
		OS:             unknown,
		OSVersion:      unknown,
		DeviceFamily:   unknown,
		DeviceType:     unknown,
	}
}

// Classify 解析 User-Agent，解析器出错时返回 Unknown
func Classify(raw string) (c Client) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown()
	}
	defer func() {
		if recover() != nil {
			c = Unknown()
		}
	}()

	ua := useragent.New(raw)
	lower := strings.ToLower(raw)

	c = Unknown()
	if name, version := ua.Browser(); name != "" {
		c.Browser = name
		c.BrowserVersion = major(version)
	}
	if info := ua.OSInfo(); info.Name != "" {
		c.OS = info.Name
		c.OSVersion = major(info.Version)
	}
	if platform := ua.Platform(); platform != "" {
		c.DeviceFamily = platform
	}

	c.IsMobile = containsAny(lower, mobileMarkers) || c.DeviceFamily == "iPhone" || c.DeviceFamily == "Android"
	c.IsBot = ua.Bot() || containsAny(lower, botMarkers)

	switch {
	case c.IsBot:
		c.DeviceType = DeviceBot
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		c.DeviceType = DeviceTablet
	case c.IsMobile:
		c.DeviceType = DeviceMobile
	default:
		c.DeviceType = DeviceDesktop
	}
	return c
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// major 只保留主版本号
func major(version string) string {
	if version == "" {
		return unknown
	}
	head, _, _ := strings.Cut(version, ".")
	if head == "" {
		return unknown
	}
	return head
}
