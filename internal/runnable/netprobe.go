package runnable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"

	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

// NetProbeConfig controls the network probe job.
type NetProbeConfig struct {
	// Interval between probes.
	Interval time.Duration
	// ServerCount caps how many nearby servers are latency-tested.
	ServerCount int
	// FullTest also runs a download test against the lowest-latency server.
	// Latency-only probes are much cheaper; leave this off for short intervals.
	FullTest bool
}

// NetProbe samples network latency (and optionally throughput) against
// nearby speedtest servers and logs the result. It exists to give operators
// a recurring signal that the box's connectivity is healthy.
type NetProbe struct {
	log logx.Logger
	cfg NetProbeConfig
}

func NewNetProbe(cfg NetProbeConfig, log logx.Logger) *NetProbe {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.ServerCount <= 0 {
		cfg.ServerCount = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &NetProbe{log: log, cfg: cfg}
}

func (p *NetProbe) Name() string             { return "netprobe" }
func (p *NetProbe) Frequency() time.Duration { return p.cfg.Interval }

func (p *NetProbe) Run(ctx context.Context, _ job.Resolver) error {
	start := time.Now()

	// Fresh client per run so no connection state outlives the probe.
	stc := st.New()
	defer func() {
		stc.Snapshots().Clean()
		stc.Reset()
	}()

	user, err := stc.FetchUserInfoContext(ctx)
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}

	servers, err := stc.FetchServerListContext(ctx)
	if err != nil {
		return fmt.Errorf("fetch server list: %w", err)
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return errors.New("no speedtest servers available")
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	n := p.cfg.ServerCount
	if n > len(servers) {
		n = len(servers)
	}

	var best *st.Server
	for _, s := range servers[:n] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.PingTestContext(ctx, nil); err != nil {
			p.log.Debug("netprobe: ping failed",
				logx.String("server", s.Sponsor), logx.Err(err))
			continue
		}
		if s.Latency <= 0 {
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	if best == nil {
		return errors.New("all latency probes failed")
	}

	fields := []logx.Field{
		logx.String("isp", user.Isp),
		logx.String("server", best.Sponsor),
		logx.String("country", best.Country),
		logx.Duration("latency", best.Latency),
	}

	if p.cfg.FullTest {
		if err := best.DownloadTestContext(ctx); err != nil {
			return fmt.Errorf("download test: %w", err)
		}
		fields = append(fields, logx.Float64("download_mbps", best.DLSpeed.Mbps()))
	}

	fields = append(fields, logx.Duration("took", time.Since(start)))
	p.log.Info("netprobe sample", fields...)
	return nil
}
