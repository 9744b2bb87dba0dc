package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BusBom/rpi-server/core/events"
	coremetrics "github.com/BusBom/rpi-server/core/metrics"
	"github.com/BusBom/rpi-server/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes station events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// RecordCycle writes one point per cycle.
func (s *InfluxSink) RecordCycle(ev events.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("cycle").
		AddTag("station_id", ev.StationID).
		AddTag("skipped", strconv.FormatBool(ev.Skipped)).
		AddField("cycle_id", ev.ID).
		AddField("stable", ev.Stable).
		AddField("platforms", ev.Platforms).
		AddField("emitted", ev.Emitted).
		AddField("duration_ms", ev.Duration.Milliseconds())
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlatformEvents writes every confirmed transition.
func (s *InfluxSink) RecordPlatformEvents(evs []events.PlatformEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, e := range evs {
		points = append(points, write.NewPointWithMeasurement("platform_event").
			AddTag("kind", string(e.Kind)).
			AddTag("platform", strconv.Itoa(e.Platform)).
			AddField("bus_id", string(e.BusID)).
			AddField("identified", e.Identified).
			SetTime(e.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordAssignments writes issued and expired assignments.
func (s *InfluxSink) RecordAssignments(evs []events.AssignmentEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, e := range evs {
		points = append(points, write.NewPointWithMeasurement("assignment").
			AddTag("platform", strconv.Itoa(e.Platform)).
			AddTag("expired", strconv.FormatBool(e.Expired)).
			AddField("bus_id", string(e.BusID)).
			SetTime(e.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordStationState writes a station snapshot.
func (s *InfluxSink) RecordStationState(ev coremetrics.StationState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("station_state").
		AddTag("station_id", ev.StationID).
		AddField("platforms", ev.Platforms).
		AddField("occupied", ev.Occupied).
		AddField("pending", ev.Pending).
		AddField("departed", ev.Departed).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFetch writes the latency of an upstream request.
func (s *InfluxSink) RecordFetch(ev coremetrics.FetchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fetch").
		AddTag("source", ev.Source).
		AddTag("ok", strconv.FormatBool(ev.Err == nil)).
		AddField("latency_ms", float64(ev.Duration.Microseconds())/1000)
	if ev.Err != nil {
		p = p.AddField("error", ev.Err.Error())
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
