//go:build integration

package mqtt

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestEmitThroughBroker publishes instructions to a real Mosquitto broker and
// reads them back on the instruction topic.
func TestEmitThroughBroker(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("display"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(100)

	got := make(chan []byte, 1)
	tok = sub.Subscribe("busbom/test", 1, func(_ paho.Client, m paho.Message) {
		select {
		case got <- m.Payload():
		default:
		}
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	cli, err := NewPahoClient(Config{Broker: broker, ClientID: "rpi", Topic: "busbom/test", QoS: map[string]byte{"instructions": 1}})
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, cli.Emit(ctx, instructions("55", " ")))

	select {
	case payload := <-got:
		var msg InstructionMessage
		codec, _ := NewCodec("json")
		require.NoError(t, codec.Decode(payload, &msg))
		require.Equal(t, `"55":" "`, msg.Display)
	case <-time.After(5 * time.Second):
		t.Fatal("instructions not received")
	}
}
