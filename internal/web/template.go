package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/estop-monitor/internal/status"
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
	"lifecycleClass": func(s string) string {
		switch s {
		case "ARMED":
			return "armed"
		case "UNCONFIGURED", "DISARMED":
			return "off"
		default:
			return "unknown"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Emergency Stop</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.armed { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.halt { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.advisory { background: #fff4d6; padding: 0.5em 1em; border-left: 4px solid orange; }
</style>
</head>
<body>
<h1>Emergency Stop</h1>
{{if not .Pin.Configured}}<p class="advisory">Don't forget to configure the switch pin.</p>{{end}}

<h2>Switch</h2>
<table>
<tr><th>Monitoring</th><td id="lifecycle" class="{{lifecycleClass (printf "%s" .Lifecycle)}}">{{.Lifecycle}}</td></tr>
<tr><th>GPIO pin</th><td>{{if .Pin.Configured}}{{.Pin.Pin}}{{else}}not configured{{end}}</td></tr>
<tr><th>Polarity</th><td>{{.Pin.Polarity}} (pull {{.Pin.EffectivePull}})</td></tr>
<tr><th>Action</th><td>{{.Pin.Action}}</td></tr>
<tr><th>Pending halt</th><td id="pending-halt"{{if .PendingHalt}} class="halt"{{end}}>{{if .PendingHalt}}yes{{else}}no{{end}}</td></tr>
<tr><th>Machine</th><td>{{.Machine}}</td></tr>
{{if not .LastTrigger.IsZero}}<tr><th>Last trigger</th><td>{{.LastTrigger.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
{{if .LastError}}<tr><th>Last error</th><td class="disconnected">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.SerialDevice}}<tr><th>Serial</th><td>{{.Config.SerialDevice}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Edges</th><td>{{.Counts.Edges}}</td></tr>
<tr><th>Suppressed</th><td>{{.Counts.Suppressed}}</td></tr>
<tr><th>Qualifying</th><td>{{.Counts.Qualifying}}</td></tr>
<tr><th>Ignored</th><td>{{.Counts.Ignored}}</td></tr>
<tr><th>Halts</th><td>{{.Counts.Halts}}</td></tr>
<tr><th>Cancels</th><td>{{.Counts.Cancels}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms{{if .Config.HardwareDebounceMs}} (driver {{.Config.HardwareDebounceMs}}ms){{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/settings">settings</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
