package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/suricata/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"batteryClass": func(s string) string {
		switch s {
		case "OK":
			return "ok"
		case "LOW":
			return "low"
		case "CRITICAL":
			return "critical"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Suricata Node</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.low { color: darkorange; font-weight: bold; }
.critical { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 10px; height: 10px; border: 1px solid #888; margin-right: 6px; vertical-align: middle; }
</style>
</head>
<body>
<h1>Suricata Node</h1>

<h2>State</h2>
<table>
<tr><th>Battery</th><td id="battery-state" class="{{batteryClass .Battery}}">{{.Battery}}</td></tr>
<tr><th>Brightness</th><td id="brightness-state">{{.Brightness}}</td></tr>
<tr><th>Ready</th><td>{{if .Snapshot.Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Reading</h2>
{{with .Snapshot.Reading}}<table>
<tr><th>Light</th><td>{{printf "%.0f" .Lux}} lux (raw {{.Light}})</td></tr>
<tr><th>Sound</th><td>{{printf "%.1f" .SoundDB}} dB SPL</td></tr>
<tr><th>Temperature</th><td>{{printf "%.1f" .TemperatureC}} &deg;C</td></tr>
<tr><th>Humidity</th><td>{{printf "%.0f" .HumidityPct}} %</td></tr>
<tr><th>Battery</th><td>{{.BatteryPct}} % (raw {{.Battery}})</td></tr>
<tr><th>Sampled</th><td>{{.Time.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>{{else}}<p class="unknown">no sample yet</p>{{end}}
<p>Read errors: {{.Snapshot.SensorErrors}}</p>

<h2>Light</h2>
<table>
<tr><th>Mode</th><td>{{.Snapshot.LED.Mode}}</td></tr>
<tr><th>Color</th><td><span class="swatch" style="background: {{.Snapshot.LED.Color}}"></span>{{.Snapshot.LED.Color}}</td></tr>
<tr><th>Pattern</th><td>{{if .Snapshot.Pattern}}{{.Snapshot.Pattern}}{{else}}none{{end}}</td></tr>
<tr><th>Ticks</th><td>{{.Snapshot.LED.Ticks}}</td></tr>
<tr><th>Drive errors</th><td>{{.Snapshot.LED.DriveErrors}}</td></tr>
</table>

<h2>Telemetry Queue</h2>
<table>
<tr><th>Used</th><td>{{.Snapshot.Queue.Used}} / {{.Snapshot.Queue.Cap}} bytes</td></tr>
<tr><th>Staged</th><td>{{.Snapshot.Queue.Staged}}</td></tr>
<tr><th>Published</th><td>{{.Snapshot.Queue.Published}}</td></tr>
<tr><th>Dropped</th><td>{{.Snapshot.Queue.Dropped}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Snapshot.MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Snapshot.MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Snapshot.Config.Broker}}</td></tr>
{{if .Snapshot.Network}}<tr><th>Network</th><td>{{.Snapshot.Network.Status}} ({{.Snapshot.Network.Type}}{{if .Snapshot.Network.SSID}}, {{.Snapshot.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Snapshot.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Battery OK</th><td>{{.Snapshot.Counts.BatteryOK}}</td></tr>
<tr><th>Battery LOW</th><td>{{.Snapshot.Counts.BatteryLow}}</td></tr>
<tr><th>Battery CRITICAL</th><td>{{.Snapshot.Counts.BatteryCritical}}</td></tr>
<tr><th>Brightness changed</th><td>{{.Snapshot.Counts.BrightnessChanged}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Snapshot.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{if .Snapshot.Config.SerialPort}}{{.Snapshot.Config.SerialPort}}{{else}}simulated{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Snapshot.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Snapshot.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Snapshot.Config.HeartbeatMs 0}}disabled{{else}}{{.Snapshot.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Snapshot.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	battery, brightness := snap.StateOrUnknown()
	data := struct {
		Snapshot   status.Snapshot
		Uptime     time.Duration
		Battery    string
		Brightness string
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Battery:    battery,
		Brightness: brightness,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
