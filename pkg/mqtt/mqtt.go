package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/geo-distance/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the subset of the paho client the services use.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configures the broker connection.
type Options struct {
	Broker        string
	ClientID      string
	CACertificate string // optional path to a PEM bundle; enables TLS
	Username      string
	Password      string
}

// MqttService owns the broker connection used by every service.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations

	mu             sync.Mutex
	connectedOnce  bool
	reconnectHooks []func()
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
	}
}

// Initialize builds the paho client from opts and connects to the broker.
func (s *MqttService) Initialize(opts Options) error {
	if opts.Broker == "" {
		return errors.New("mqtt broker address is required")
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(10 * time.Second)
	// A clean session drops subscriptions, so services subscribe again from the hooks.
	clientOpts.SetOnConnectHandler(s.handleConnect)
	// Handlers run on their own goroutines so a full worker queue cannot stall acks.
	clientOpts.SetOrderMatters(false)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	if opts.CACertificate != "" {
		tlsConfig, err := s.tlsConfig(opts.CACertificate)
		if err != nil {
			return err
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.Broker, token.Error())
	}

	return nil
}

// OnReconnect registers fn to run every time the client reconnects after the first
// successful connection.
func (s *MqttService) OnReconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectHooks = append(s.reconnectHooks, fn)
}

func (s *MqttService) handleConnect(_ mqtt.Client) {
	s.mu.Lock()
	first := !s.connectedOnce
	s.connectedOnce = true
	hooks := append([]func(){}, s.reconnectHooks...)
	s.mu.Unlock()

	if first {
		return
	}
	for _, hook := range hooks {
		hook()
	}
}

func (s *MqttService) tlsConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := s.fileClient.ReadFileRaw(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to append CA certificate")
	}

	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}
