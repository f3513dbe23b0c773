package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"shortlink-core/internal/config"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	unknown        = "Unknown"
	unknownCode    = "XX"
	failureTTL     = time.Minute
	defaultTimeout = 2 * time.Second
)

// Location 地理位置信息
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"regionName"`
	City        string  `json:"city"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
}

// Unknown 无法定位时使用的位置
func Unknown() Location {
	return Location{
		Country:     unknown,
		CountryCode: unknownCode,
		Region:      unknown,
		City:        unknown,
		Timezone:    unknown,
		ISP:         unknown,
	}
}

// IsUnknown 是否为未知位置
func (l Location) IsUnknown() bool {
	return l.CountryCode == unknownCode
}

// Locator 根据 IP 地址查询地理位置，任何失败都返回 Unknown
type Locator interface {
	Locate(ctx context.Context, ip string) Location
}

// Disabled 不做任何查询
type Disabled struct{}

func (Disabled) Locate(context.Context, string) Location { return Unknown() }

// apiResponse ip-api.com 的响应格式
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Location
}

// HTTPLocator 调用 ip-api 兼容接口，结果按 IP 缓存
type HTTPLocator struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
	logger  *zap.SugaredLogger
}

// New 按配置创建定位器，未启用时返回 Disabled
func New(cfg config.Geo, logger *zap.SugaredLogger) Locator {
	if !cfg.Enabled || cfg.APIURL == "" {
		return Disabled{}
	}
	timeout := time.Duration(cfg.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return NewHTTPLocator(cfg.APIURL, &http.Client{Timeout: timeout}, ttl, logger)
}

func NewHTTPLocator(baseURL string, client *http.Client, ttl time.Duration, logger *zap.SugaredLogger) *HTTPLocator {
	return &HTTPLocator{
		baseURL: baseURL,
		client:  client,
		cache:   gocache.New(ttl, ttl),
		logger:  logger.Named("geo"),
	}
}

// Locate 私有、回环、链路本地、未指定或无法解析的地址直接返回 Unknown
func (g *HTTPLocator) Locate(ctx context.Context, ip string) Location {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !isPublic(addr) {
		return Unknown()
	}
	key := addr.String()

	if v, ok := g.cache.Get(key); ok {
		return v.(Location)
	}

	loc, err := g.lookup(ctx, key)
	if err != nil {
		g.logger.Warnf("查询 IP %s 地理位置失败: %v", key, err)
		// 失败结果短暂缓存，避免接口故障时每次访问都重试
		g.cache.Set(key, Unknown(), failureTTL)
		return Unknown()
	}
	g.cache.Set(key, loc, gocache.DefaultExpiration)
	return loc
}

func (g *HTTPLocator) lookup(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+ip, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("lookup status %q: %s", body.Status, body.Message)
	}
	return fillUnknown(body.Location), nil
}

func fillUnknown(l Location) Location {
	for _, f := range []*string{&l.Country, &l.Region, &l.City, &l.Timezone, &l.ISP} {
		if *f == "" {
			*f = unknown
		}
	}
	if l.CountryCode == "" {
		l.CountryCode = unknownCode
	}
	return l
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsUnspecified()
}
