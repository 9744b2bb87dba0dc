package main

import (
	"context"
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/BusBom/rpi-server/infra/mqtt"
)

// Display mimics the driver-facing panel: it prints every instruction
// message and acknowledges it on the ack topic.
type Display struct {
	Codec    mqtt.Codec
	AckTopic string
	Strategy AckStrategy
	Out      func(string)
}

// Handle decodes one instruction message. It returns the rendered display.
func (d *Display) Handle(ctx context.Context, pub publisher, payload []byte) (string, error) {
	var msg mqtt.InstructionMessage
	if err := d.Codec.Decode(payload, &msg); err != nil {
		return "", fmt.Errorf("decode instruction: %w", err)
	}
	if d.Out != nil {
		d.Out(msg.Display)
	}
	if d.AckTopic != "" && d.Strategy != nil && msg.MessageID != "" {
		go d.Strategy.Ack(ctx, pub, d.AckTopic, msg.MessageID)
	}
	return msg.Display, nil
}

// Subscribe attaches the display to the instruction topic.
func (d *Display) Subscribe(ctx context.Context, cli paho.Client, topic string) error {
	token := cli.Subscribe(topic, 1, func(c paho.Client, m paho.Message) {
		if _, err := d.Handle(ctx, c, m.Payload()); err != nil {
			log.Printf("%v", err)
		}
	})
	token.Wait()
	return token.Error()
}
