// Package metrics provides Prometheus metrics for the sensor node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/suricata/internal/led"
	"github.com/sweeney/suricata/internal/sensor"
)

var (
	ledTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "suricata",
		Subsystem: "led",
		Name:      "ticks_total",
		Help:      "Lighting engine ticks since start",
	})

	ledMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "suricata",
		Subsystem: "led",
		Name:      "mode",
		Help:      "Lighting engine mode (0 idle, 1 blink, 2 fade)",
	})

	ledDriveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "suricata",
		Subsystem: "led",
		Name:      "drive_errors_total",
		Help:      "Channel writes that failed inside the tick handler",
	})

	queueUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "suricata",
		Subsystem: "queue",
		Name:      "used_bytes",
		Help:      "Bytes waiting in the telemetry queue",
	})

	telemetryDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "suricata",
		Subsystem: "telemetry",
		Name:      "dropped_total",
		Help:      "Telemetry records dropped because the queue was full",
	})

	telemetryPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "suricata",
		Subsystem: "telemetry",
		Name:      "published_total",
		Help:      "Telemetry records published to the broker",
	})

	sensorReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "suricata",
		Subsystem: "sensor",
		Name:      "read_errors_total",
		Help:      "Failed sensor reads",
	})

	sensorValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "suricata",
		Subsystem: "sensor",
		Name:      "value",
		Help:      "Last converted sensor reading",
	}, []string{"quantity"})

	mqttConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "suricata",
		Subsystem: "mqtt",
		Name:      "connected",
		Help:      "1 if the broker connection is up",
	})
)

// ObserveLEDTick counts one lighting engine tick that left the engine in
// mode m. It is installed with led.WithTickObserver and runs inside the
// engine's critical section.
func ObserveLEDTick(m led.Mode) {
	ledTicks.Inc()
	ledMode.Set(float64(m))
}

// SetLED records the lighting engine status.
func SetLED(s led.Status) {
	ledMode.Set(float64(s.Mode))
	ledDriveErrors.Set(float64(s.DriveErrors))
}

// SetQueueUsed sets the number of bytes waiting in the telemetry queue.
func SetQueueUsed(n int) {
	queueUsed.Set(float64(n))
}

// IncTelemetryDropped counts one dropped record.
func IncTelemetryDropped() {
	telemetryDropped.Inc()
}

// AddTelemetryPublished counts n published records.
func AddTelemetryPublished(n int) {
	telemetryPublished.Add(float64(n))
}

// IncSensorReadErrors counts one failed sensor read.
func IncSensorReadErrors() {
	sensorReadErrors.Inc()
}

// SetReading records the converted values of r.
func SetReading(r sensor.Reading) {
	sensorValue.WithLabelValues("lux").Set(float64(r.Lux))
	sensorValue.WithLabelValues("sound_db").Set(float64(r.SoundDB))
	sensorValue.WithLabelValues("battery_percent").Set(float64(r.BatteryPct))
	sensorValue.WithLabelValues("temperature_celsius").Set(float64(r.TemperatureC))
	sensorValue.WithLabelValues("humidity_percent").Set(float64(r.HumidityPct))
}

// SetMQTTConnected records broker connectivity.
func SetMQTTConnected(up bool) {
	if up {
		mqttConnected.Set(1)
		return
	}
	mqttConnected.Set(0)
}
