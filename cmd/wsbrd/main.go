package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wisun-go/wsbrd/internal/logger"
	"github.com/wisun-go/wsbrd/pkg/capture"
	"github.com/wisun-go/wsbrd/pkg/config"
	"github.com/wisun-go/wsbrd/pkg/crypto"
	"github.com/wisun-go/wsbrd/pkg/eapol"
	"github.com/wisun-go/wsbrd/pkg/frame"
	"github.com/wisun-go/wsbrd/pkg/health"
	"github.com/wisun-go/wsbrd/pkg/keystorage"
	"github.com/wisun-go/wsbrd/pkg/keystore"
	"github.com/wisun-go/wsbrd/pkg/macbridge"
	"github.com/wisun-go/wsbrd/pkg/mgmt"
	"github.com/wisun-go/wsbrd/pkg/neighbor"
	"github.com/wisun-go/wsbrd/pkg/rcp"
	"github.com/wisun-go/wsbrd/pkg/timer"
	"github.com/wisun-go/wsbrd/pkg/tunlink"
)

const (
	appName    = "wsbrd"
	appVersion = "1.1.0"
)

// Process exit codes: 1 configuration error, 2 I/O or system error, 3 RCP
// incompatibility or unsupported runtime event.
const (
	exitConfig = 1
	exitIO     = 2
	exitRCP    = 3
)

var (
	configPath = flag.String("config", "/etc/wsbrd/wsbrd.yaml", "Path to configuration file")
	version    = flag.Bool("version", false, "Print version and exit")
	issueToken = flag.String("issue-token", "", "Mint a management bearer token for the given subject and exit")
	tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "Validity of a token minted with -issue-token")
)

// lifetimeTickKey names the housekeeping timer that decrements key lifetimes
// and expires stale neighbors once per interval.
const lifetimeTickKey = "lifetime-tick"

const lifetimeTickInterval = time.Second

// Daemon is the single process-wide anchor: every component hangs off this
// value, owned by main, rather than off package-level globals.
type Daemon struct {
	cfg    *config.Config
	log    *logger.Logger
	crypto *crypto.Backend

	transport *rcp.Transport
	neighbors *neighbor.Table
	keys      *keystore.Store
	bridge    *macbridge.Bridge
	pipeline  *eapol.Pipeline
	pcap      *capture.Sink
	tun       *tunlink.Glue
	monitor   *health.Monitor
	mgmtSrv   *mgmt.Server

	eapolTimers *timer.Group
	houseTimers *timer.Group

	panID    uint16
	hasPANID bool

	indications chan rcp.Indication
	rcpErr      chan error
	done        chan struct{}
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(exitConfig)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitConfig)
	}

	if *issueToken != "" {
		token, err := mgmt.IssueBearer([]byte(cfg.MgmtJWTSecret), *issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
			os.Exit(exitConfig)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	if err := logger.Init(logger.Config{
		Path:       cfg.LogPath,
		Level:      cfg.LogLevel,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(exitIO)
	}
	log := logger.Get()
	log.Info("starting", "app", appName, "version", appVersion)

	d, err := NewDaemon(cfg, log)
	if err != nil {
		// NewDaemon exits itself with the precise code for handshake-level
		// failures; anything reaching here is an I/O problem.
		log.Fatal("failed to initialize daemon", err, exitIO)
	}

	if err := d.Start(); err != nil {
		log.Fatal("failed to start daemon", err, exitIO)
	}

	d.WaitForShutdown()
	d.Stop()
	log.Info("stopped")
}

// NewDaemon wires every component together. RCP handshake failures exit the
// process directly with the documented code, since nothing can be salvaged
// once the radio is unusable.
func NewDaemon(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:         cfg,
		log:         log,
		crypto:      crypto.New(),
		indications: make(chan rcp.Indication, 64),
		rcpErr:      make(chan error, 1),
		done:        make(chan struct{}),
	}

	pcapSink, err := capture.Open(cfg.PCAPPath)
	if err != nil {
		return nil, fmt.Errorf("open pcap sink: %w", err)
	}
	d.pcap = pcapSink

	hostAPI := rcp.HostAPIVersion{Major: 2, Minor: 0, Patch: 0}
	var transport *rcp.Transport
	if cfg.RCPTransport == config.RCPTransportIPC {
		conn, err := net.Dial("unix", cfg.RCPDevice)
		if err != nil {
			log.Fatal("failed to connect to RCP socket", err, exitIO, "path", cfg.RCPDevice)
		}
		transport = rcp.New(conn, hostAPI)
	} else {
		transport, err = rcp.OpenSerial(cfg.RCPDevice, cfg.RCPBaud, hostAPI)
		if err != nil {
			log.Fatal("failed to open RCP device", err, exitIO, "device", cfg.RCPDevice)
		}
	}
	d.transport = transport

	if err := transport.Open(); err != nil {
		if errors.Is(err, rcp.ErrIncompatibleAPI) {
			log.Fatal("RCP API incompatible", err, exitRCP)
		}
		log.Fatal("RCP handshake failed", err, exitIO)
	}
	log.Info("RCP handshake complete", "eui64", fmt.Sprintf("%x", transport.EUI64()))

	if err := d.selectRadio(); err != nil {
		log.Fatal("no usable radio configuration", err, exitConfig)
	}

	if cfg.PANID >= 0 {
		d.panID = uint16(cfg.PANID)
		d.hasPANID = true
	}

	d.neighbors = neighbor.New(time.Duration(cfg.NeighborTTLSeconds) * time.Second)
	d.keys = keystore.New(d.crypto, cfg.NetworkName)
	if err := keystorage.Restore(cfg.KeyStoragePath, d.keys); err != nil {
		log.Warn("could not restore persisted key storage", "error", err.Error())
	}

	d.eapolTimers = timer.NewGroup()
	d.houseTimers = timer.NewGroup()

	d.monitor = health.NewMonitor(health.Config{
		WatchdogEnabled: true,
		WatchdogTimeout: 30 * time.Second,
		OnStall: func(since time.Duration) {
			log.Warn("event loop stalled", "since", since.String())
		},
	})

	d.bridge = macbridge.New(transport, d.neighbors, d.pcap, dropLogger{log.WithComponent("macbridge")})
	d.bridge.SetCounters(d.monitor)
	d.bridge.SetCallbacks(d.onConfirm, d.onIndication)

	d.pipeline = eapol.New(eapol.Config{
		ProtocolVersion: 3,
		RetryCeiling:    cfg.EAPRetryCeiling,
		RetryInterval:   3 * time.Second,
		LocalEUI64:      transport.EUI64(),
	}, d.crypto, d.keys, d.eapolTimers, eapolSender{d}, nil, dropLogger{log.WithComponent("eapol")})

	d.tun = tunlink.New(cfg.TunInterface)

	d.mgmtSrv = mgmt.New(mgmt.Config{
		ListenAddr: cfg.MgmtListenAddr,
		JWTSecret:  []byte(cfg.MgmtJWTSecret),
		Source:     propertySource{d},
		Logger:     log.With().Str("component", "mgmt").Logger(),
	})

	return d, nil
}

// selectRadio picks the first RCP radio configuration whose channel set
// intersects the configured allow-list, applies it, and brings the radio up.
func (d *Daemon) selectRadio() error {
	for _, rc := range d.transport.RadioConfigs() {
		mask := make([]int, rc.ChanCount)
		for i := range mask {
			mask[i] = i
		}
		if len(d.cfg.IntersectChannels(mask)) == 0 {
			continue
		}

		if err := d.transport.SetRadio(rc.Index); err != nil {
			return err
		}
		if err := d.transport.SetFHSSUnicast(255); err != nil {
			return err
		}
		if err := d.transport.SetFHSSAsync(500); err != nil {
			return err
		}
		if err := d.transport.EnableRadio(); err != nil {
			return err
		}
		d.transport.MarkReady()
		d.log.Info("radio enabled", "config", rc.Index, "channels", rc.ChanCount)
		return nil
	}
	return fmt.Errorf("no RCP radio configuration intersects allowed_channels")
}

// Start launches the RCP reader and the event loop, then begins serving
// management clients.
func (d *Daemon) Start() error {
	go d.readRCP()
	go d.eventLoop()
	go func() {
		if err := d.mgmtSrv.Start(); err != nil {
			d.log.Error("management server stopped", err)
		}
	}()

	d.houseTimers.StartRel(lifetimeTickKey, lifetimeTickInterval)
	d.log.Info("daemon started", "mgmt", d.cfg.MgmtListenAddr)
	return nil
}

// readRCP is the one goroutine that blocks on the RCP bus, feeding the
// single-threaded event loop through a channel. Every other component runs
// on the event loop itself.
func (d *Daemon) readRCP() {
	for {
		ind, err := d.transport.Next()
		if err != nil {
			d.rcpErr <- err
			return
		}
		select {
		case d.indications <- ind:
		case <-d.done:
			return
		}
	}
}

// eventLoop is the daemon's single scheduling point: RCP indications, timer
// expiry and shutdown all arrive here and run to completion one at a time.
func (d *Daemon) eventLoop() {
	for {
		var timerWait <-chan time.Time
		if deadline, ok := d.nextDeadline(); ok {
			timerWait = time.After(time.Until(deadline))
		}

		select {
		case <-d.done:
			return

		case err := <-d.rcpErr:
			if errors.Is(err, rcp.ErrUnexpectedReset) {
				d.log.Fatal("RCP reset after ready", err, exitRCP)
			}
			d.log.Fatal("RCP bus failed", err, exitIO)

		case ind := <-d.indications:
			d.bridge.HandleIndication(ind, d.localPANID())

		case <-timerWait:
		case <-d.eapolTimers.Chan():
		case <-d.houseTimers.Chan():
		}

		d.monitor.Kick()
		d.fireTimers()
	}
}

func (d *Daemon) nextDeadline() (time.Time, bool) {
	deadline, ok := d.eapolTimers.NextDeadline()
	if hd, hok := d.houseTimers.NextDeadline(); hok && (!ok || hd.Before(deadline)) {
		deadline, ok = hd, true
	}
	return deadline, ok
}

func (d *Daemon) fireTimers() {
	d.pipeline.HandleExpired(d.eapolTimers.Expired())
	for _, key := range d.houseTimers.Expired() {
		if key == lifetimeTickKey {
			d.lifetimeTick()
			d.houseTimers.StartRel(lifetimeTickKey, lifetimeTickInterval)
		}
	}
}

// lifetimeTick advances every lifetime-bearing piece of state by one
// interval: GTK slots, per-supplicant PMK/PTK, and neighbor liveness.
func (d *Daemon) lifetimeTick() {
	seconds := int(lifetimeTickInterval / time.Second)

	for i := range d.keys.FFN.Slots {
		d.keys.FFN.LifetimeDecrement(i, seconds, true)
	}
	for i := range d.keys.LFN.Slots {
		d.keys.LFN.LifetimeDecrement(i, seconds, true)
	}

	for _, sup := range d.keys.Supplicants() {
		if sup.PMKLifetimeDecrement(seconds) {
			d.keys.RemoveSupplicant(sup.RemoteEUI64)
			continue
		}
		sup.PTKLifetimeDecrement(seconds)
	}
	d.monitor.SetSupplicantCount(int64(len(d.keys.Supplicants())))

	for _, eui := range d.neighbors.ExpireStale() {
		d.keys.RemoveSupplicant(eui)
	}
}

func (d *Daemon) localPANID() uint16 {
	if d.hasPANID {
		return d.panID
	}
	return 0xffff
}

// onConfirm is the LLC confirm callback; non-success statuses are surfaced
// unmodified and retransmission is left to the upper MAC.
func (d *Daemon) onConfirm(c macbridge.Confirm) {
	if c.Status != macbridge.ConfirmSuccess {
		d.log.Debug("transmit confirm", "handle", c.Handle, "status", int(c.Status))
	}
}

// onIndication demultiplexes parsed ingress frames: EAPOL PDUs go to the
// authentication pipeline, everything else records neighbor liveness and is
// left for the upper stack.
func (d *Daemon) onIndication(ind macbridge.Indication) {
	if ind.Header.HasDst && ind.Header.Security == frame.SecurityMIC64 {
		d.neighbors.Observe(ind.Header.Src, neighbor.RoleFFN)
	}

	if len(ind.Payload) > 0 && looksLikeEAPOL(ind.Payload) {
		d.neighbors.Observe(ind.Header.Src, neighbor.RoleFFN)
		if err := d.pipeline.Recv(ind.Header.Src, ind.Payload); err != nil {
			d.log.Error("eapol recv failed", err)
		}
	}
}

// looksLikeEAPOL performs the cheap structural check used to demultiplex an
// ingress payload to the authentication path before full PDU parsing.
func looksLikeEAPOL(payload []byte) bool {
	_, err := eapol.DecodePDU(payload)
	return err == nil
}

// OnGlobalAddressAssigned is the DHCPv6 client's hook: the moment a lease
// is confirmed, the address is programmed onto the TUN interface so the
// upper stack can send its DAO without guessing when the kernel is ready.
func (d *Daemon) OnGlobalAddressAssigned(addr net.IP, prefixLen int) error {
	return d.tun.OnAddressAssigned(addr, prefixLen)
}

// InstallGTK writes a GTK through the key store, pushes the derived GAK to
// the RCP, and records the advertised hash for each supplicant.
func (d *Daemon) InstallGTK(index int, key [16]byte, lifetime int) error {
	if err := d.keys.FFN.Set(index, key, lifetime); err != nil {
		return err
	}
	gak := d.crypto.GAK(d.cfg.NetworkName, key)
	if err := d.transport.SetSecurityKey(uint8(index), gak); err != nil {
		return err
	}
	hash := d.crypto.GTKHash(key)
	for _, sup := range d.keys.Supplicants() {
		sup.RecordInsertedHash(index, hash)
	}
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM.
func (d *Daemon) WaitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	d.log.Info("received shutdown signal", "signal", sig.String())
}

// Stop persists authenticator state and releases every component.
func (d *Daemon) Stop() {
	close(d.done)

	if err := keystorage.Save(d.cfg.KeyStoragePath, d.keys); err != nil {
		d.log.Error("failed to persist key storage", err)
	}
	d.monitor.Close()
	d.pcap.Close()
	d.transport.Close()
}

// dropLogger adapts the structured logger to the narrow Drop surface the
// bridge and pipeline accept.
type dropLogger struct {
	log *logger.Logger
}

func (l dropLogger) Drop(reason string, fields map[string]interface{}) {
	flat := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		flat = append(flat, k, v)
	}
	l.log.Drop(reason, flat...)
}

// eapolSender is the pipeline's authenticated send path: EAPOL PDUs ride in
// unicast data frames through the MAC bridge.
type eapolSender struct {
	d *Daemon
}

func (s eapolSender) Send(remoteEUI64 [8]byte, pdu []byte) error {
	return s.d.bridge.Submit(macbridge.DataRequest{
		Kind:        macbridge.KindEAPOL,
		AckRequired: true,
		Dst:         remoteEUI64,
		HasDst:      true,
		Security:    frame.SecurityNone,
		HeaderIEs:   []byte{},
		Payload:     pdu,
		LocalEUI64:  s.d.transport.EUI64(),
		LocalPANID:  s.d.localPANID(),
	})
}

// propertySource exposes the read-only management properties over the
// daemon's live state.
type propertySource struct {
	d *Daemon
}

func (p propertySource) HwAddress() [8]byte {
	return p.d.transport.EUI64()
}

func (p propertySource) PanID() (uint16, bool) {
	return p.d.panID, p.d.hasPANID
}

// Gaks derives one GAK per present GTK from the locally configured ring.
// Known limitation: the ring's keys are used rather than the GTK actually
// in use per supplicant.
func (p propertySource) Gaks() [][16]byte {
	return p.d.keys.Gaks()
}
