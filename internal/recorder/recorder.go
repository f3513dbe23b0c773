package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shortlink-core/internal/geo"
	"shortlink-core/internal/model"
	"shortlink-core/internal/useragent"

	"go.uber.org/zap"
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 1024
	defaultSinkTimeout = 5 * time.Second
)

// Visit 一次跳转的原始请求信息
type Visit struct {
	IP        string
	UserAgent string
	Referer   string
	At        time.Time
}

// Sink 访问事件的最终去向
type Sink interface {
	Append(ctx context.Context, event *model.VisitEvent) error
}

// Options 记录器配置
type Options struct {
	Workers     int
	QueueSize   int
	SinkTimeout time.Duration
}

// Stats 记录器计数
type Stats struct {
	Queued   int    `json:"queued"`
	Recorded uint64 `json:"recorded"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
}

type job struct {
	linkID  uint
	code    string
	ownerID uint
	visit   Visit
}

// Recorder 异步记录点击。Record 从不阻塞跳转，队列满时直接丢弃
type Recorder struct {
	sink        Sink
	locator     geo.Locator
	queue       chan job
	abort       chan struct{}
	workers     int
	sinkTimeout time.Duration
	logger      *zap.SugaredLogger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

// New 创建记录器，调用 Start 之后才开始消费
func New(sink Sink, locator geo.Locator, opts Options, logger *zap.SugaredLogger) *Recorder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	if locator == nil {
		locator = geo.Disabled{}
	}
	return &Recorder{
		sink:        sink,
		locator:     locator,
		queue:       make(chan job, opts.QueueSize),
		abort:       make(chan struct{}),
		workers:     opts.Workers,
		sinkTimeout: opts.SinkTimeout,
		logger:      logger.Named("click_recorder"),
	}
}

// Start 启动后台 worker
func (r *Recorder) Start() {
	r.logger.Infof("启动点击记录器，worker 数量: %d，队列容量: %d", r.workers, cap(r.queue))
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
}

// Record 把一次访问放入队列后立即返回。队列已满或记录器已停止时返回 false
func (r *Recorder) Record(link *model.ShortLink, v Visit) bool {
	if v.At.IsZero() {
		v.At = time.Now()
	}
	j := job{linkID: link.ID, code: link.ShortCode, ownerID: link.OwnerID, visit: v}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.queue <- j:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warnf("点击队列已满，丢弃短码 %s 的访问记录", link.ShortCode)
		return false
	}
}

// Stop 停止接收新的访问并处理完队列中剩余的记录，ctx 到期后放弃未处理的部分
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.logger.Infof("正在停止点击记录器，剩余 %d 条待处理...", len(r.queue))
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("点击记录器已停止。")
		return nil
	case <-ctx.Done():
		close(r.abort)
		r.logger.Warnf("点击记录器停止超时，放弃 %d 条记录", len(r.queue))
		return ctx.Err()
	}
}

// Stats 返回当前计数
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:   len(r.queue),
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.abort:
			return
		case j, ok := <-r.queue:
			if !ok {
				return
			}
			r.process(j)
		}
	}
}

// process 富化并写入一条访问记录，任何失败都只记录日志
func (r *Recorder) process(j job) {
	defer func() {
		if p := recover(); p != nil {
			r.failed.Add(1)
			r.logger.Errorf("处理短码 %s 的访问记录时发生 panic: %v", j.code, p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
	defer cancel()

	event := r.enrich(ctx, j)
	if err := r.sink.Append(ctx, event); err != nil {
		r.failed.Add(1)
		r.logger.Errorf("写入短码 %s 的访问记录失败: %v", j.code, err)
		return
	}
	r.recorded.Add(1)
}

func (r *Recorder) enrich(ctx context.Context, j job) *model.VisitEvent {
	loc := r.locator.Locate(ctx, j.visit.IP)
	client := useragent.Classify(j.visit.UserAgent)

	return &model.VisitEvent{
		ShortLinkID: j.linkID,
		ShortCode:   j.code,
		OwnerID:     j.ownerID,
		IPAddress:   j.visit.IP,
		UserAgent:   j.visit.UserAgent,
		Referer:     j.visit.Referer,

		Country:     loc.Country,
		CountryCode: loc.CountryCode,
		Region:      loc.Region,
		City:        loc.City,
		Timezone:    loc.Timezone,
		ISP:         loc.ISP,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,

		Browser:        client.Browser,
		BrowserVersion: client.BrowserVersion,
		OS:             client.OS,
		OSVersion:      client.OSVersion,
		DeviceFamily:   client.DeviceFamily,
		DeviceType:     client.DeviceType,
		IsMobile:       client.IsMobile,
		IsBot:          client.IsBot,

		CreatedAt: j.visit.At,
	}
}
