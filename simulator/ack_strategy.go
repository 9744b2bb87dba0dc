package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// AckStrategy defines how a display acknowledges instruction messages.
type AckStrategy interface {
	Ack(ctx context.Context, pub publisher, topic, messageID string)
}

// AutoAck sends an ACK after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, pub publisher, topic, messageID string) {
	if !wait(ctx, a.Delay) {
		return
	}
	publishAck(pub, topic, messageID)
}

// RandomAck drops acknowledgments with the configured probability and
// waits for the specified delay before sending.
type RandomAck struct {
	Delay    time.Duration
	DropRate float64
}

// Ack implements AckStrategy.
func (r RandomAck) Ack(ctx context.Context, pub publisher, topic, messageID string) {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		log.Printf("dropping ack for %s", messageID)
		return
	}
	if !wait(ctx, r.Delay) {
		return
	}
	publishAck(pub, topic, messageID)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func publishAck(pub publisher, topic, messageID string) {
	payload, err := json.Marshal(struct {
		MessageID string `json:"message_id"`
	}{MessageID: messageID})
	if err != nil {
		log.Printf("marshal ack: %v", err)
		return
	}
	token := pub.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("ack publish timeout for %s", messageID)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("publish ack error for %s: %v", messageID, err)
	}
}
