// Package publish forwards cache writes to an MQTT broker
package publish

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"avaneesh/dnp3-cache/pkg/cache"
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/types"
)

// Config configures the broker connection and topic layout
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Station     string
	QueueSize   int
}

// Client is the part of a paho client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Payload is the JSON body published for one update
type Payload struct {
	Station   string              `json:"station"`
	PointType string              `json:"point_type"`
	Group     uint16              `json:"group"`
	Variation uint16              `json:"variation"`
	Source    string              `json:"source"`
	At        time.Time           `json:"at"`
	Values    types.IndexValueMap `json:"values"`
}

// Publisher is a cache.Observer that publishes every update at QoS 0
// from a worker goroutine. Updates arriving while the queue is full are
// dropped.
type Publisher struct {
	config Config
	client Client
	logger logger.Logger

	q      chan cache.Update
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	done   bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

var _ cache.Observer = (*Publisher)(nil)

// Connect connects to the configured broker and starts publishing
func Connect(config Config, log logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		log.Info("MQTT connected to %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
		log.Warn("MQTT connection lost: %v", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	return New(config, client, log), nil
}

// New starts publishing through an already connected client
func New(config Config, client Client, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}

	p := &Publisher{
		config: config,
		client: client,
		logger: log,
		q:      make(chan cache.Update, config.QueueSize),
		closed: make(chan struct{}),
	}

	go func() {
		defer close(p.closed)
		for u := range p.q {
			if err := p.publish(u); err != nil {
				p.logger.Warn("MQTT: %v", err)
			}
		}
	}()

	return p
}

// Topic returns the topic updates of gv are published to
func (p *Publisher) Topic(gv types.GroupVariation) string {
	return fmt.Sprintf("%s/%s/G%dV%d", p.config.TopicPrefix, p.config.Station, gv.Group(), gv.Variation())
}

// OnUpdate queues u for publishing without blocking
func (p *Publisher) OnUpdate(u cache.Update) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return
	}

	select {
	case p.q <- u:
	default:
		p.dropped.Add(1)
	}
}

// Published returns the number of messages published
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Dropped returns the number of updates dropped on a full queue
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) publish(u cache.Update) error {
	data, err := json.Marshal(Payload{
		Station:   p.config.Station,
		PointType: u.PointType.String(),
		Group:     u.PointType.Group(),
		Variation: u.PointType.Variation(),
		Source:    u.Source.String(),
		At:        u.At,
		Values:    u.Values,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize %v update: %w", u.PointType, err)
	}

	topic := p.Topic(u.PointType)
	token := p.client.Publish(topic, 0, false, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, token.Error())
	}

	p.published.Add(1)
	p.logger.Debug("MQTT: published %d values to %s", len(u.Values), topic)
	return nil
}

// Close drains queued updates and disconnects
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.done = true
		close(p.q)
		p.mu.Unlock()

		<-p.closed
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected: %d published, %d dropped", p.published.Load(), p.dropped.Load())
	})
}
