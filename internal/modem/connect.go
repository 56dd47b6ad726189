package modem

import (
	"time"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/datalink"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/stats"
)

const (
	connectAttempts      = 3
	connectRetryDelay    = 5 * time.Second
	startNetworkTimeout  = 45 * time.Second
	currentSettingsTimeout = 10 * time.Second
	stopNetworkTimeout   = 30 * time.Second
)

func handleConnect(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	apn, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	user, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}
	password, err := r.ReadString()
	if err != nil {
		return errorFrame(cmd, newKindError(KindMalformedFrame, err.Error()))
	}

	switch m.connState {
	case Connecting, Disconnecting:
		return errorFrame(cmd, ErrInvalidState)
	case Connected:
		return successFrame(cmd).Serialize()
	}

	m.connState = Connecting
	settings, err := m.runConnect(apn, user, password)
	if err != nil {
		m.connState = Disconnected
		return errorFrame(cmd, err)
	}
	m.connState = Connected
	return successFrame(cmd).
		AddString(settings.IPAddress).
		AddString(settings.SubnetMask).
		AddString(settings.Gateway).
		AddString(settings.PrimaryDNS).
		AddString(settings.SecondaryDNS).
		AddU32(settings.MTU).
		Serialize()
}

// runConnect implements spec.md §4.6's iterative CONNECT state machine.
func (m *Modem) runConnect(apn, user, password string) (qmi.CurrentSettings, error) {
	var lastErr error
	explicitIPFamily := false

	for attempt := 0; attempt < connectAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(connectRetryDelay)
		}

		ctx, cancel := callCtx(defaultCallTimeout)
		if err := m.pool.WDS.SetIPFamily(ctx, qmi.IPFamilyV4); err != nil {
			explicitIPFamily = true
		}
		cancel()

		params := qmi.StartNetworkParams{APN: apn, Username: user, Password: password}
		if user != "" || password != "" {
			params.Auth = qmi.AuthPAPOrCHAP
		}
		if explicitIPFamily {
			params.IPFamilyPreference = qmi.IPFamilyV4
		}

		startCtx, startCancel := callCtx(startNetworkTimeout)
		handle, err := m.pool.WDS.StartNetwork(startCtx, params)
		startCancel()
		if err != nil {
			lastErr = err
			continue
		}
		m.packetHandle = handle

		settingsCtx, settingsCancel := callCtx(currentSettingsTimeout)
		settings, err := m.pool.WDS.GetCurrentSettings(settingsCtx)
		settingsCancel()
		if err != nil {
			lastErr = err
			m.stopNetworkBestEffort()
			continue
		}

		if err := m.setupWWAN(&settings); err != nil {
			lastErr = err
			m.stopNetworkBestEffort()
			continue
		}

		m.startStats()
		return settings, nil
	}
	return qmi.CurrentSettings{}, lastErr
}

// setupWWAN implements spec.md §4.9: 802.3 link layers hand off to DHCP via
// the helper's "start" mode; raw-IP link layers pass the negotiated static
// configuration through.
func (m *Modem) setupWWAN(settings *qmi.CurrentSettings) error {
	ctx, cancel := callCtx(currentSettingsTimeout)
	defer cancel()
	if m.coord.LinkLayer() == qmi.LinkLayerRawIP {
		return m.coord.Start(ctx, &datalink.StaticConfig{
			IP: settings.IPAddress, Mask: settings.SubnetMask, Gateway: settings.Gateway,
			PrimaryDNS: settings.PrimaryDNS, SecondDNS: settings.SecondaryDNS, MTU: settings.MTU,
		})
	}
	return m.coord.Start(ctx, nil)
}

func (m *Modem) stopNetworkBestEffort() {
	ctx, cancel := callCtx(stopNetworkTimeout)
	defer cancel()
	_ = m.pool.WDS.StopNetwork(ctx, m.packetHandle)
}

// startStats arms the periodic sampler and writes the initial 'S' record
// (spec.md §4.6 step 5, §4.8 "synthetic start record").
func (m *Modem) startStats() {
	j, err := stats.Start(m.statsPath, statsNow())
	if err != nil {
		m.logf("stats: start: %v", err)
		return
	}
	m.journal = j
	m.statsTimer = time.NewTimer(statsSamplePeriod)
}

func (m *Modem) sampleStats() {
	if m.journal == nil {
		m.statsTimer = nil
		return
	}
	ctx, cancel := callCtx(defaultCallTimeout)
	pkt, err := m.pool.WDS.GetPacketStatistics(ctx)
	cancel()
	if err != nil {
		m.logf("stats: sample: %v", err)
	} else if err := m.journal.Sample(statsNow(), pkt.RxBytes, pkt.TxBytes); err != nil {
		m.logf("stats: sample write: %v", err)
	}
	m.statsTimer.Reset(statsSamplePeriod)
}

func handleDisconnect(m *Modem, cmd uint32, r *ipc.Reader) []byte {
	switch m.connState {
	case Connecting, Disconnecting:
		return errorFrame(cmd, ErrInvalidState)
	case Disconnected:
		return successFrame(cmd).Serialize()
	}

	m.connState = Disconnecting
	m.runDisconnect()
	m.connState = Disconnected
	return successFrame(cmd).Serialize()
}

// runDisconnect implements spec.md §4.6's DISCONNECT happy path.
func (m *Modem) runDisconnect() {
	ctx, cancel := callCtx(stopNetworkTimeout)
	if err := m.pool.WDS.StopNetwork(ctx, m.packetHandle); err != nil {
		m.logf("disconnect: stop_network: %v", err)
	}
	cancel()

	statsCtx, statsCancel := callCtx(defaultCallTimeout)
	pkt, err := m.pool.WDS.GetPacketStatistics(statsCtx)
	statsCancel()
	if err != nil {
		m.logf("disconnect: get_packet_statistics: %v", err)
	} else if m.journal != nil {
		if err := m.journal.Finish(statsNow(), pkt.RxBytes, pkt.TxBytes, m.emitStatsSummary); err != nil {
			m.logf("disconnect: stats finish: %v", err)
		}
	}
	if m.statsTimer != nil {
		m.statsTimer.Stop()
		m.statsTimer = nil
	}
	m.journal = nil

	teardownCtx, teardownCancel := callCtx(stopNetworkTimeout)
	if err := m.coord.Stop(teardownCtx); err != nil {
		m.logf("disconnect: link teardown: %v", err)
	}
	teardownCancel()
}

// statsNow is the one permitted wall-clock read in the connect/disconnect
// path; everywhere else timestamps flow from the stats package's own
// Record fields.
func statsNow() time.Time {
	return time.Now()
}
