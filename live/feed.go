// Package live subscribes to the PSKReporter MQTT filter feed for the
// operator's own callsign, so a running session can show who is hearing the
// current antenna in near real time. The feed is optional enrichment: the
// batch analysis never depends on it.
//
// Topic shape: pskr/filter/v2/{band}/{mode}/{sender}/# — subscribing with
// the callsign in the sender slot delivers only reports of the operator's
// transmissions.
package live

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"antcmp/pskreporter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Feed is a live subscription to reception reports for one callsign.
type Feed struct {
	broker   string
	port     int
	topic    string
	client   mqtt.Client
	spots    chan pskreporter.Spot
	shutdown chan struct{}
}

// message is the compact JSON the filter feed publishes.
type message struct {
	Frequency       int64  `json:"f"`  // Hz
	Mode            string `json:"md"`
	Report          int    `json:"rp"` // SNR in dB
	Timestamp       int64  `json:"t"`
	SenderCall      string `json:"sc"`
	ReceiverCall    string `json:"rc"`
	ReceiverLocator string `json:"rl"`
	Band            string `json:"b"`
}

// NewFeed returns a feed for the given callsign and mode.
func NewFeed(broker string, port int, callsign, mode string) *Feed {
	return &Feed{
		broker:   broker,
		port:     port,
		topic:    fmt.Sprintf("pskr/filter/v2/+/%s/%s/#", mode, callsign),
		spots:    make(chan pskreporter.Spot, 1000),
		shutdown: make(chan struct{}),
	}
}

// Connect establishes the MQTT connection and subscribes. The paho client
// reconnects automatically after transient broker failures.
func (f *Feed) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", f.broker, f.port))
	opts.SetClientID(fmt.Sprintf("antcmp-%d", time.Now().Unix()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(f.onConnect)
	opts.SetConnectionLostHandler(f.onConnectionLost)

	f.client = mqtt.NewClient(opts)
	token := f.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("live: connect to %s: %w", f.broker, token.Error())
	}
	return nil
}

func (f *Feed) onConnect(client mqtt.Client) {
	token := client.Subscribe(f.topic, 0, f.handleMessage)
	if token.Wait() && token.Error() != nil {
		log.Printf("live: subscribe %s: %v", f.topic, token.Error())
	}
}

func (f *Feed) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("live: connection lost, reconnecting: %v", err)
}

func (f *Feed) handleMessage(client mqtt.Client, msg mqtt.Message) {
	var m message
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("live: parse message: %v", err)
		return
	}
	spot, ok := convert(m)
	if !ok {
		return
	}
	select {
	case f.spots <- spot:
	default:
		// Channel full; the watch view is behind, drop rather than block.
	}
}

func convert(m message) (pskreporter.Spot, bool) {
	if m.ReceiverCall == "" || m.Frequency == 0 {
		return pskreporter.Spot{}, false
	}
	snr := m.Report
	return pskreporter.Spot{
		Time:         time.Unix(m.Timestamp, 0).UTC(),
		ReceiverCall: m.ReceiverCall,
		ReceiverGrid: m.ReceiverLocator,
		FrequencyMHz: float64(m.Frequency) / 1e6,
		Band:         m.Band,
		SNR:          &snr,
	}, true
}

// Spots returns the channel of incoming reception reports.
func (f *Feed) Spots() <-chan pskreporter.Spot {
	return f.spots
}

// IsConnected reports whether the broker connection is up.
func (f *Feed) IsConnected() bool {
	return f.client != nil && f.client.IsConnected()
}

// Stop unsubscribes and disconnects.
func (f *Feed) Stop() {
	if f.client != nil && f.client.IsConnected() {
		f.client.Unsubscribe(f.topic)
		f.client.Disconnect(250)
	}
	close(f.shutdown)
}
