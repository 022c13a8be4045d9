/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command prortip is the scan-and-exit CLI front end: it parses flags
// (or a JSON config file), wires the scheduler to a rate controller,
// prober, and storage sinks, runs one scan to completion, and renders
// the results. It is a thin wiring shim, not an interactive front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/config"
	"github.com/doublegate/prortip/pkg/discovery"
	"github.com/doublegate/prortip/pkg/icmpmon"
	"github.com/doublegate/prortip/pkg/idlescan"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/output"
	"github.com/doublegate/prortip/pkg/probe"
	"github.com/doublegate/prortip/pkg/progress"
	"github.com/doublegate/prortip/pkg/ratelimit"
	"github.com/doublegate/prortip/pkg/resources"
	"github.com/doublegate/prortip/pkg/scheduler"
	"github.com/doublegate/prortip/pkg/sender"
	"github.com/doublegate/prortip/pkg/statusapi"
	"github.com/doublegate/prortip/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Printf("prortip: %v", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "path to a JSON scan config; flags below override its fields")
		ports         = flag.String("p", "1-1000", "ports to scan: \"80,443\" or \"1-1000\"")
		scanType      = flag.String("s", string(models.ScanConnect), "scan type: connect|syn|fin|null|xmas|ack|udp|idle")
		zombie        = flag.String("sI", "", "zombie host to idle-scan through; implies scan type idle")
		timing        = flag.Int("T", int(models.TimingNormal), "timing template 0 (paranoid) .. 5 (insane)")
		timeout       = flag.Duration("timeout", 0, "per-probe timeout; 0 uses the timing template's default")
		maxRate       = flag.Float64("max-rate", 1000, "packet emission ceiling, packets/sec")
		maxConcurrent = flag.Int("max-concurrent", 100, "bounded-parallelism cap on in-flight probes")
		retries       = flag.Int("retries", 0, "retry count, validated and stored in the config; probes are not retried")
		scanDelay     = flag.Duration("scan-delay", 0, "fixed delay added between probes of the same host")
		outFormat     = flag.String("o", string(config.OutputText), "output format: text|json|xml")
		outFile       = flag.String("output-file", "", "write results here instead of stdout")
		discoverFirst = flag.Bool("P", false, "run host discovery before port scanning")
		iface         = flag.String("interface", "", "network interface whose address raw probes use as their source")
		statusAddr    = flag.String("status-addr", "", "if set, serve progress/status JSON and websocket on this address (e.g. :9980)")
		dbPath        = flag.String("db", "", "path to a SQLite file to persist results into")
		grpcSink      = flag.String("grpc-sink", "", "collector address to forward result batches to over gRPC")
		verbosity     = flag.Int("v", 0, "verbosity: 0 quiet, 1 info, 2 debug, 3 trace")
	)

	flag.Parse()

	cfg, err := buildConfig(flagInputs{
		configPath: *configPath, targets: flag.Args(), ports: *ports, scanType: *scanType,
		timing: *timing, timeout: *timeout, maxRate: *maxRate, maxConcurrent: *maxConcurrent,
		retries: *retries, scanDelay: *scanDelay, outFormat: *outFormat, outFile: *outFile,
		discover: *discoverFirst, iface: *iface, dbPath: *dbPath, grpcSink: *grpcSink, verbosity: *verbosity,
		zombie: *zombie,
	})
	if err != nil {
		return fmt.Errorf("prortip: config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("prortip: %w", err)
	}

	return runScan(cfg, *statusAddr)
}

// flagInputs collects the CLI surface before it's merged onto an
// optionally file-loaded config.ScanConfig.
type flagInputs struct {
	configPath                        string
	targets                           []string
	ports, scanType                   string
	timing                            int
	timeout, scanDelay                time.Duration
	maxRate                           float64
	maxConcurrent, retries, verbosity int
	outFormat, outFile                string
	discover                          bool
	iface, dbPath, grpcSink, zombie   string
}

func buildConfig(in flagInputs) (*config.ScanConfig, error) {
	cfg := &config.ScanConfig{}

	if in.configPath != "" {
		if err := config.LoadFile(in.configPath, cfg); err != nil {
			return nil, err
		}
	}

	if len(in.targets) > 0 {
		cfg.Targets = in.targets
	}

	if in.ports != "" {
		cfg.Ports = in.ports
	}

	if in.scanType != "" {
		cfg.ScanType = models.ScanType(in.scanType)
	}

	cfg.Timing = models.TimingTemplate(in.timing)
	cfg.Timeout = config.Duration(in.timeout)

	if in.maxRate > 0 {
		cfg.MaxRate = in.maxRate
	}

	if in.maxConcurrent > 0 {
		cfg.MaxConcurrent = in.maxConcurrent
	}

	cfg.Retries = in.retries
	cfg.ScanDelay = config.Duration(in.scanDelay)

	if in.outFormat != "" {
		cfg.OutputFormat = config.OutputFormat(in.outFormat)
	}

	if in.outFile != "" {
		cfg.OutputFile = in.outFile
	}

	cfg.Discovery = cfg.Discovery || in.discover

	if in.iface != "" {
		cfg.Interface = in.iface
	}

	if in.dbPath != "" {
		cfg.DBPath = in.dbPath
	}

	if in.grpcSink != "" {
		cfg.GRPCSink = in.grpcSink
	}

	if in.zombie != "" {
		cfg.Zombie = in.zombie

		if in.scanType == "" || models.ScanType(in.scanType) == models.ScanConnect {
			cfg.ScanType = models.ScanIdle
		}
	}

	cfg.Verbosity = in.verbosity

	return cfg, nil
}

func runScan(cfg *config.ScanConfig, statusAddr string) error {
	if cfg.Verbosity > 0 {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		log.Printf("prortip: targets=%v ports=%s type=%s timing=%d", cfg.Targets, cfg.Ports, cfg.ScanType, cfg.Timing)
	}

	portRange, err := models.ParsePortRange(cfg.Ports)
	if err != nil {
		return fmt.Errorf("prortip: parse ports %q: %w", cfg.Ports, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober, rawProber, err := buildProber(ctx, cfg)
	if err != nil {
		return err
	}

	rateCtl := ratelimit.NewController(cfg.MaxRate, cfg.MaxRate, int(cfg.MaxRate))

	if icmpMon, err := icmpmon.New(); err != nil {
		log.Printf("prortip: icmp monitor unavailable, admin-prohibited backoff disabled: %v", err)
	} else {
		sub := icmpMon.Subscribe()

		if err := icmpMon.Start(); err != nil {
			log.Printf("prortip: icmp monitor start: %v", err)
		} else {
			go feedAdminProhibited(ctx, sub, rateCtl)
			defer icmpMon.Shutdown()
		}
	}

	queueCap := cfg.MaxConcurrent * 4
	if queueCap <= 0 {
		queueCap = 1024
	}

	queue := aggregator.New(queueCap)
	sched := scheduler.New(prober, rateCtl, queue)

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}

	var drained chan []models.Result

	resMon := resources.New(0)
	go resMon.Run(ctx)

	if len(sinks) > 0 {
		worker := storage.NewWorker(queue, sinks...)
		worker.ResourceMonitor = resMon
		go worker.Run(ctx)

		defer func() {
			for _, sink := range sinks {
				_ = sink.Close()
			}
		}()
	} else {
		drained = make(chan []models.Result, 1)
		go func() { drained <- drainToMemory(ctx, queue) }()
	}

	scanID := scheduler.NewScanID()

	if statusAddr != "" {
		statusSrv := startStatusServer(ctx, statusAddr, scanID, sched)
		defer func() { _ = statusSrv.Close() }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Printf("prortip: shutdown requested, cancelling in-flight probes")
		sched.Cancel()
		cancel()
	}()

	schedCfg := scheduler.Config{
		ScanType:        models.ScanType(cfg.ScanType),
		Timing:          cfg.Timing,
		Parallelism:     cfg.MaxConcurrent,
		ProbeTimeout:    time.Duration(cfg.Timeout),
		ScanID:          scanID,
		ResourceMonitor: resMon,
	}

	if cfg.Discovery && rawProber != nil {
		schedCfg.DiscoveryEngine = discovery.New(
			[]discovery.Prober{discovery.NewSYNProber(rawProber), discovery.NewICMPProber(rawProber)},
			2*time.Second, cfg.MaxConcurrent,
		)
	}

	scanID, status, err := sched.Run(ctx, cfg.Targets, portRange, schedCfg)
	if err != nil {
		return fmt.Errorf("prortip: scan %s: %w", scanID, err)
	}

	log.Printf("prortip: scan %s finished with status %s", scanID, status)

	if len(sinks) > 0 {
		return nil
	}

	cancel() // unblocks the in-memory drain goroutine so it returns what it collected

	collected := <-drained

	return output.Write(outputDest(cfg), config.OutputFormat(cfg.OutputFormat), collected)
}

func buildProber(ctx context.Context, cfg *config.ScanConfig) (scheduler.Prober, *probe.RawProber, error) {
	switch models.ScanType(cfg.ScanType) {
	case models.ScanConnect:
		return newConnectProberAdapter(), nil, nil
	case models.ScanIdle:
		srcIP, err := resolveSourceIP(cfg.Interface)
		if err != nil {
			return nil, nil, err
		}

		engine, err := buildIdleEngine(ctx, cfg, srcIP)
		if err != nil {
			return nil, nil, err
		}

		return idleProberAdapter{engine: engine}, nil, nil
	}

	transport, err := sender.New()
	if err != nil {
		return nil, nil, fmt.Errorf("prortip: open raw transport (needs CAP_NET_RAW): %w", err)
	}

	srcIP, err := resolveSourceIP(cfg.Interface)
	if err != nil {
		return nil, nil, err
	}

	raw := probe.NewRawProber(transport, srcIP, randomSourcePort())

	return raw, raw, nil
}

// feedAdminProhibited forwards every ICMP admin-prohibited signal into
// the rate controller's per-target backoff until sub closes or ctx ends.
func feedAdminProhibited(ctx context.Context, sub <-chan icmpmon.Signal, rateCtl *ratelimit.Controller) {
	for {
		select {
		case sig, ok := <-sub:
			if !ok {
				return
			}

			rateCtl.RecordAdminProhibited(sig.TargetIP)
		case <-ctx.Done():
			return
		}
	}
}

const (
	zombieQualificationSamples = 5
	zombieQualificationGap     = 150 * time.Millisecond
)

// buildIdleEngine opens a raw zombie prober, qualifies cfg.Zombie by
// sampling its IPID sequence, and seeds a pool with it. It fails
// closed: a zombie that doesn't clear the quality threshold aborts the
// scan rather than silently running with an unreliable counter.
func buildIdleEngine(ctx context.Context, cfg *config.ScanConfig, srcIP net.IP) (*idlescan.Engine, error) {
	zombieIP := net.ParseIP(cfg.Zombie)
	if zombieIP == nil {
		return nil, fmt.Errorf("prortip: zombie %q is not a valid IP", cfg.Zombie)
	}

	prober, err := idlescan.NewRawZombieProber(srcIP, randomSourcePort())
	if err != nil {
		return nil, fmt.Errorf("prortip: open zombie prober (needs CAP_NET_RAW): %w", err)
	}

	idleCfg := idlescan.DefaultConfig()

	candidate, err := qualifyZombie(ctx, prober, zombieIP, idleCfg.MeasureTimeout)
	if err != nil {
		_ = prober.Close()
		return nil, err
	}

	if candidate.QualityScore < models.ZombieQualityThreshold {
		_ = prober.Close()
		return nil, fmt.Errorf("prortip: zombie %s quality %.2f below threshold %.2f",
			cfg.Zombie, candidate.QualityScore, models.ZombieQualityThreshold)
	}

	pool := idlescan.NewZombiePool()
	pool.Update(candidate)

	return idlescan.New(prober, idleCfg, pool), nil
}

// qualifyZombie samples a candidate's IPID sequence, classifies its
// pattern, and scores it the way the idle-scan pool expects.
func qualifyZombie(ctx context.Context, prober *idlescan.RawZombieProber, zombie net.IP, timeout time.Duration) (models.ZombieCandidate, error) {
	measurements := make([]models.IPIDMeasurement, 0, zombieQualificationSamples)

	var totalLatency time.Duration

	for i := 0; i < zombieQualificationSamples; i++ {
		start := time.Now()

		m, err := prober.MeasureIPID(ctx, zombie, timeout)
		if err != nil {
			return models.ZombieCandidate{}, fmt.Errorf("prortip: qualify zombie %s: %w", zombie, err)
		}

		totalLatency += time.Since(start)
		measurements = append(measurements, m)

		select {
		case <-time.After(zombieQualificationGap):
		case <-ctx.Done():
			return models.ZombieCandidate{}, ctx.Err()
		}
	}

	deltas := make([]uint16, 0, len(measurements)-1)
	for i := 1; i < len(measurements); i++ {
		deltas = append(deltas, models.IPIDDelta(measurements[i-1].IPID, measurements[i].IPID))
	}

	pattern := models.ClassifyIPIDSequence(deltas)
	variance := deltaVariance(deltas, pattern)
	latencyMS := float64(totalLatency.Milliseconds()) / float64(zombieQualificationSamples)

	return models.ZombieCandidate{
		IP:           zombie.String(),
		Pattern:      pattern,
		QualityScore: models.ComputeQualityScore(pattern, variance, latencyMS),
		LatencyMS:    latencyMS,
		LastTested:   time.Now(),
	}, nil
}

// deltaVariance measures how far a sequence's deltas stray from the
// step its classified pattern implies; patterns with no fixed step
// (per-host, random) aren't countable zombies, so they get a variance
// high enough to fail ComputeQualityScore's consistency term.
func deltaVariance(deltas []uint16, pattern models.IPIDPattern) float64 {
	var step float64

	switch pattern {
	case models.PatternSequential:
		step = 1
	case models.PatternBroken256:
		step = 256
	default:
		return 1 << 20
	}

	if len(deltas) == 0 {
		return 0
	}

	var sumSq float64

	for _, d := range deltas {
		diff := float64(d) - step
		sumSq += diff * diff
	}

	return sumSq / float64(len(deltas))
}

func resolveSourceIP(iface string) (net.IP, error) {
	if iface == "" {
		return net.IPv4zero, nil
	}

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("prortip: interface %q: %w", iface, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("prortip: interface %q has no address", iface)
	}

	ipNet, ok := addrs[0].(*net.IPNet)
	if !ok {
		return nil, fmt.Errorf("prortip: interface %q: unexpected address type", iface)
	}

	return ipNet.IP, nil
}

func randomSourcePort() uint16 {
	return uint16(49152 + time.Now().Nanosecond()%16383)
}

func buildSinks(ctx context.Context, cfg *config.ScanConfig) ([]storage.Sink, error) {
	var sinks []storage.Sink

	if cfg.DBPath != "" {
		sqliteSink, err := storage.NewSQLiteSink(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("prortip: open sqlite sink: %w", err)
		}

		sinks = append(sinks, sqliteSink)
	}

	if cfg.GRPCSink != "" {
		provider, err := storage.NewSecurityProvider(ctx, cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("prortip: build security provider: %w", err)
		}

		grpcSink, err := storage.NewGRPCSink(ctx, cfg.GRPCSink, provider)
		if err != nil {
			return nil, fmt.Errorf("prortip: dial grpc sink: %w", err)
		}

		sinks = append(sinks, grpcSink)
	}

	return sinks, nil
}

// drainToMemory continuously drains the queue into a slice until ctx is
// cancelled, then drains whatever remains. Used only when no persistent
// sink is configured, so results can still be rendered at exit.
func drainToMemory(ctx context.Context, queue *aggregator.Queue) []models.Result {
	var collected []models.Result

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			collected = append(collected, queue.DrainAll()...)
			return collected
		case <-ticker.C:
			collected = append(collected, queue.DrainBatch(256)...)
		}
	}
}

func outputDest(cfg *config.ScanConfig) *os.File {
	if cfg.OutputFile == "" {
		return os.Stdout
	}

	f, err := os.Create(cfg.OutputFile)
	if err != nil {
		log.Printf("prortip: create output file %q: %v, writing to stdout", cfg.OutputFile, err)
		return os.Stdout
	}

	return f
}

// startStatusServer serves pkg/statusapi on addr, feeding its
// throughput monitor from the scheduler's progress counters once a
// second until ctx is cancelled.
func startStatusServer(ctx context.Context, addr, scanID string, sched *scheduler.Scheduler) *http.Server {
	throughput := progress.NewThroughputMonitor()

	srv := statusapi.New(scanID, sched.Counters, throughput)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go feedThroughput(ctx, throughput, sched.Counters)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prortip: status server: %v", err)
		}
	}()

	return httpSrv
}

func feedThroughput(ctx context.Context, throughput *progress.ThroughputMonitor, counters *progress.Counters) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := counters.Snapshot()
			delta := snap.Completed - last
			last = snap.Completed

			throughput.Record(delta, 0, delta)
		}
	}
}
