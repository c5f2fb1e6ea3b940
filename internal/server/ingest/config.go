package ingest

import "time"

// ServerConfig represents the ingest subcommand configuration.
type ServerConfig struct {
	Addr        string        `help:"Ingester listen address" default:":5005" env:"DOFSTREAM_INGEST_ADDR"`
	Once        bool          `help:"Exit after the first connection closes" default:"false" env:"DOFSTREAM_INGEST_ONCE"`
	IdleTimeout time.Duration `help:"Drop a connection that sends nothing for this long (0 = never; sleeping clients are silent)" default:"0s" env:"DOFSTREAM_INGEST_IDLE_TIMEOUT"`
	Quiet       bool          `help:"Do not log every received frame" default:"false" env:"DOFSTREAM_INGEST_QUIET"`
	MQTT        MQTTConfig    `embed:"" prefix:"mqtt."`
}

// MQTTConfig configures republishing of received frames to an MQTT broker.
type MQTTConfig struct {
	Broker   string        `help:"MQTT broker URL to republish frames to, e.g. tcp://localhost:1883 (empty disables)" env:"DOFSTREAM_MQTT_BROKER"`
	Topic    string        `help:"MQTT topic for republished frames" default:"dofstream/state" env:"DOFSTREAM_MQTT_TOPIC"`
	ClientID string        `help:"MQTT client ID" default:"dofstream-ingest" env:"DOFSTREAM_MQTT_CLIENT_ID"`
	QoS      int           `name:"qos" help:"MQTT QoS level" default:"0" enum:"0,1,2" env:"DOFSTREAM_MQTT_QOS"`
	Retained bool          `help:"Publish frames as retained messages" default:"false" env:"DOFSTREAM_MQTT_RETAINED"`
	Timeout  time.Duration `help:"MQTT connect and publish timeout" default:"2s" env:"DOFSTREAM_MQTT_TIMEOUT"`
}
