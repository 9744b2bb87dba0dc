package main

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// publisher is the part of paho.Client used to send acknowledgments.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

func newMQTTClient(broker, prefix string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(prefix + "-" + uuid.NewString()[:8]).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}
