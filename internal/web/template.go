package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/flow-monitor/internal/status"
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
	"round2": status.Round2,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Flow Monitor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
canvas { width: 100%; border: 1px solid #ddd; }
button { font-family: monospace; padding: 6px 12px; margin-right: 8px; }
.banner { padding: 10px; margin: 1em 0; border: 1px solid #ddd; }
.banner.leak { background: #fdd; border-color: red; color: red; font-weight: bold; }
.banner.ok { background: #dfd; border-color: green; color: green; }
.forced { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Flow Monitor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<div id="leak-banner" class="banner {{if .Sim.LeakFlagged}}leak{{else}}ok{{end}}">
{{if .Sim.LeakFlagged}}LEAK DETECTED — check the installation and acknowledge{{else}}No leak detected{{end}}
</div>

<h2>Flow</h2>
<canvas id="chart" width="680" height="220"></canvas>
<table>
<tr><th>Current Flow</th><td id="flow">{{printf "%.0f" .Sim.CurrentFlowLPerMin}} L/min</td></tr>
<tr><th>Total Volume</th><td id="volume">{{printf "%.2f" (round2 .Sim.TotalVolumeLiters)}} L</td></tr>
<tr><th>Forced Leak Mode</th><td id="forced" {{if .Sim.ForcedLeak}}class="forced"{{end}}>{{if .Sim.ForcedLeak}}ON{{else}}OFF{{end}}</td></tr>
</table>

<h2>Actions</h2>
<p>
<button id="btn-toggle">Toggle Forced Leak</button>
<button id="btn-ack">Acknowledge Alert</button>
<button id="btn-reset">Reset Day</button>
</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{else}}disabled{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Leak Threshold</th><td>{{.Config.ThresholdLPerMin}} L/min</td></tr>
<tr><th>Consecutive Ticks</th><td>{{.Config.ConsecutiveTicks}}</td></tr>
<tr><th>History Points</th><td>{{.Config.MaxHistoryPoints}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var labels = [], values = [];
  var threshold = {{.Config.ThresholdLPerMin}};
  var maxPoints = {{.Config.MaxHistoryPoints}};
  var canvas = document.getElementById("chart");
  var ctx = canvas.getContext("2d");
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function draw() {
    var w = canvas.width, h = canvas.height, pad = 24, ymax = 15;
    ctx.clearRect(0, 0, w, h);
    // threshold line
    var ty = h - pad - (threshold / ymax) * (h - 2 * pad);
    ctx.strokeStyle = "red";
    ctx.setLineDash([4, 4]);
    ctx.beginPath();
    ctx.moveTo(pad, ty);
    ctx.lineTo(w - pad, ty);
    ctx.stroke();
    ctx.setLineDash([]);
    if (values.length < 2) return;
    ctx.strokeStyle = "steelblue";
    ctx.beginPath();
    for (var i = 0; i < values.length; i++) {
      var x = pad + (i / (maxPoints - 1)) * (w - 2 * pad);
      var y = h - pad - (values[i] / ymax) * (h - 2 * pad);
      if (i === 0) ctx.moveTo(x, y); else ctx.lineTo(x, y);
    }
    ctx.stroke();
  }

  function setState(s) {
    document.getElementById("flow").textContent = s.flow_l_per_min.toFixed(0) + " L/min";
    document.getElementById("volume").textContent = s.total_volume_liters.toFixed(2) + " L";
    var forced = document.getElementById("forced");
    forced.textContent = s.forced_leak ? "ON" : "OFF";
    forced.className = s.forced_leak ? "forced" : "";
    var banner = document.getElementById("leak-banner");
    banner.className = "banner " + (s.leak_flagged ? "leak" : "ok");
    banner.textContent = s.leak_flagged
      ? "LEAK DETECTED — check the installation and acknowledge"
      : "No leak detected";
  }

  function reload() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(body) {
      var st = body.status;
      labels = st.history.labels;
      values = st.history.values;
      setState({
        flow_l_per_min: st.flow_l_per_min,
        total_volume_liters: st.total_volume_liters,
        leak_flagged: st.leak_flagged,
        forced_leak: st.forced_leak
      });
      draw();
    });
  }

  function action(path) {
    fetch(path, { method: "POST" }).then(reload);
  }
  document.getElementById("btn-toggle").onclick = function() { action("/api/leak/toggle"); };
  document.getElementById("btn-ack").onclick = function() { action("/api/alert/acknowledge"); };
  document.getElementById("btn-reset").onclick = function() { action("/api/day/reset"); };

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/live");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "disconnected");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      var frame = JSON.parse(ev.data);
      if (frame.label) {
        labels.push(frame.label);
        values.push(frame.flow_l_per_min);
        while (values.length > maxPoints) { labels.shift(); values.shift(); }
      }
      setState(frame);
      draw();
    };
  }

  reload();
  connect();
})();
</script>
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
