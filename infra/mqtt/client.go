package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/infra/logger"
)

// ErrAckTimeout is returned when no display acknowledged an instruction
// message in time.
var ErrAckTimeout = errors.New("ack timeout")

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	Topic        string          `json:"topic"`
	AckTopic     string          `json:"ack_topic"`
	// AckTimeoutMS bounds the wait for a display ack. The control loop
	// is blocked for that long when no display answers.
	AckTimeoutMS int             `json:"ack_timeout_ms"`
	Codec        string          `json:"codec"`
	Retained     bool            `json:"retained"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	AuthMethod   string          `json:"auth_method"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	TLSConfig    *tls.Config     `json:"-"`
}

const defaultTopic = "busbom/instructions"

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes display instructions using Eclipse Paho. When an ack
// topic is configured, Emit waits for a display to confirm the message id.
type PahoClient struct {
	cli        pahoClient
	topic      string
	ackTopic   string
	ackTimeout time.Duration
	retained   bool
	codec      Codec
	qos        map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ACK topic
// when one is configured.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		topic:      cfg.Topic,
		ackTopic:   cfg.AckTopic,
		ackTimeout: time.Duration(cfg.AckTimeoutMS) * time.Millisecond,
		retained:   cfg.Retained,
		codec:      codec,
		ackChans:   make(map[string]chan struct{}),
		logger:     log,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.topic == "" {
		pc.topic = defaultTopic
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}
	if pc.ackTopic != "" && pc.ackTimeout <= 0 {
		pc.ackTimeout = time.Second
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.ackTopic == "" {
			return
		}
		if token := c.Subscribe(pc.ackTopic, pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s: no certificates", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.MessageID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.MessageID)
	}
	p.mu.Unlock()
}

// Emit publishes the instructions on the configured topic, retrying with
// exponential backoff. With an ack topic it then waits up to the ack
// timeout for a display to confirm the message. Errors are returned to the
// caller, which reports them.
func (p *PahoClient) Emit(ctx context.Context, in model.Instructions) error {
	msgID, err := p.publish(ctx, in)
	if err != nil {
		return err
	}
	if p.ackTopic == "" {
		return nil
	}
	_, err = p.WaitForAck(ctx, msgID, p.ackTimeout)
	return err
}

func (p *PahoClient) publish(ctx context.Context, in model.Instructions) (string, error) {
	msgID := uuid.NewString()
	payload, err := p.codec.Encode(NewInstructionMessage(msgID, in))
	if err != nil {
		return "", fmt.Errorf("encode instructions: %w", err)
	}
	if p.ackTopic != "" {
		p.mu.Lock()
		p.ackChans[msgID] = make(chan struct{}, 1)
		p.mu.Unlock()
	}

	qos := p.qosFor("instructions")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.topic, qos, p.retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("sent instructions %s to %s", msgID, p.topic)
			return msgID, nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			p.forget(msgID)
			return "", ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	p.forget(msgID)
	return "", fmt.Errorf("mqtt publish %s: %w", p.topic, publishErr)
}

func (p *PahoClient) forget(msgID string) {
	p.mu.Lock()
	delete(p.ackChans, msgID)
	p.mu.Unlock()
}

// WaitForAck blocks until an ACK for the given message ID is received, the
// timeout elapses or ctx is cancelled.
func (p *PahoClient) WaitForAck(ctx context.Context, msgID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[msgID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown message %s", msgID)
	}
	defer p.forget(msgID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("message %s: %w", msgID, ErrAckTimeout)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

// Close implements io.Closer.
func (p *PahoClient) Close() error {
	p.Disconnect()
	return nil
}
