package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.71 Safari/537.36"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	safariIPad    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	googlebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		browser    string
		version    string
		deviceType string
		mobile     bool
		bot        bool
	}{
		{"desktop chrome", chromeWindows, "Chrome", "120", DeviceDesktop, false, false},
		{"iphone safari", safariIPhone, "Safari", "17", DeviceMobile, true, false},
		{"ipad is tablet", safariIPad, "Safari", "16", DeviceTablet, true, false},
		{"googlebot", googlebot, "", "", DeviceBot, false, true},
		{"curl", "curl/8.4.0", "", "", DeviceBot, false, true},
		{"python requests", "python-requests/2.31.0", "", "", DeviceBot, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.ua)
			if tt.browser != "" {
				assert.Equal(t, tt.browser, c.Browser)
				assert.Equal(t, tt.version, c.BrowserVersion)
			}
			assert.Equal(t, tt.deviceType, c.DeviceType)
			assert.Equal(t, tt.mobile, c.IsMobile)
			assert.Equal(t, tt.bot, c.IsBot)
		})
	}
}

func TestClassify_BotWinsOverMobile(t *testing.T) {
	c := Classify("Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, c.IsMobile)
	assert.True(t, c.IsBot)
	assert.Equal(t, DeviceBot, c.DeviceType)
}

func TestClassify_Empty(t *testing.T) {
	assert.Equal(t, Unknown(), Classify(""))
	assert.Equal(t, Unknown(), Classify("   "))
}

func TestMajor(t *testing.T) {
	assert.Equal(t, "120", major("120.0.6099.71"))
	assert.Equal(t, "17", major("17"))
	assert.Equal(t, "Unknown", major(""))
	assert.Equal(t, "Unknown", major(".5"))
}
