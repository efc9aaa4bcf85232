// Package bridge publishes RTC alarm events to an MQTT broker.
package bridge

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// PublishTimeout bounds the wait for the broker to accept an event.
const PublishTimeout = 5 * time.Second

// Options configures a Bridge.
type Options struct {
	// URL is mqtt://[user:pass@]host[:port][/topic] or mqtts://... A topic
	// in the path overrides Topic.
	URL      string
	ClientID string
	Topic    string
	// Device names the board in published events.
	Device string
}

// Event is the JSON payload of an alarm message.
type Event struct {
	Device string `json:"device,omitempty"`
	Epoch  uint32 `json:"epoch"`
	Time   string `json:"time"`
}

// client is the part of mqtt.Client used by a Bridge.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Bridge forwards alarm events to a topic.
type Bridge struct {
	cli    client
	topic  string
	device string
}

// ClientOptions converts a broker URL into paho options and the topic
// named by its path.
func ClientOptions(us, clientID string) (*mqtt.ClientOptions, string, error) {
	u, err := url.Parse(us)
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	if u.Host == "" {
		return nil, "", errors.NotValidf("broker URL %q", us)
	}

	if clientID == "" {
		clientID = fmt.Sprintf("rtcctl-%d", rand.Int31())
	}
	topic := strings.TrimPrefix(u.Path, "/")

	u.Path = ""
	switch u.Scheme {
	case "mqtts", "ssl", "tcps":
		u.Scheme = "tcps"
		if u.Port() == "" {
			u.Host = fmt.Sprintf("%s:%d", u.Host, 8883)
		}
	case "mqtt", "tcp", "":
		u.Scheme = "tcp"
		if u.Port() == "" {
			u.Host = fmt.Sprintf("%s:%d", u.Host, 1883)
		}
	default:
		return nil, "", errors.NotSupportedf("broker scheme %q", u.Scheme)
	}

	opts := mqtt.NewClientOptions()
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			opts.SetPassword(pass)
		}
		u.User = nil
	}
	opts.AddBroker(u.String())
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	return opts, topic, nil
}

// Dial connects to the broker.
func Dial(o Options) (*Bridge, error) {
	opts, topic, err := ClientOptions(o.URL, o.ClientID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if topic == "" {
		topic = o.Topic
	}
	if topic == "" {
		return nil, errors.New("no MQTT topic given")
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		glog.Errorf("MQTT connection lost: %v", err)
	})

	glog.V(1).Infof("connecting %s to %s", opts.ClientID, o.URL)
	cli := mqtt.NewClient(opts)
	token := cli.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, errors.Annotatef(err, "MQTT connect error")
	}
	return newBridge(cli, topic, o.Device), nil
}

func newBridge(cli client, topic, device string) *Bridge {
	return &Bridge{cli: cli, topic: topic, device: device}
}

// Topic returns the topic events go to.
func (b *Bridge) Topic() string {
	return b.topic
}

// PublishAlarm publishes one alarm event at QoS 1.
func (b *Bridge) PublishAlarm(epoch uint32) error {
	payload, err := json.Marshal(Event{
		Device: b.device,
		Epoch:  epoch,
		Time:   time.Unix(int64(epoch), 0).UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.Trace(err)
	}
	token := b.cli.Publish(b.topic, 1, false, payload)
	if !token.WaitTimeout(PublishTimeout) {
		return errors.Timeoutf("publishing to %s", b.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Annotatef(err, "publishing to %s", b.topic)
	}
	glog.V(1).Infof("alarm %d published to %s", epoch, b.topic)
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.cli.Disconnect(250)
}
