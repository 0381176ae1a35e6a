// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/goccy/go-json"
)

var pageTemplate = template.Must(template.New("status").Funcs(template.FuncMap{
	"bytes": FormatBytes,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Site Manager Status Overview</title>
</head>
<body style="font-family:monospace">
<div id="Overview">
<h3>Overview</h3>
<table><tbody>
<tr><td>Last update</td><td>{{.LastUpdate}}</td></tr>
<tr><td>Uptime</td><td>{{.Uptime}}</td></tr>
<tr><td>Version</td><td>{{.Version}}</td></tr>
<tr><td>Run</td><td>{{.RunID}}</td></tr>
{{- with .Host}}
<tr><td>Host</td><td>{{.Hostname}} {{.Platform}}</td></tr>
<tr><td>Memory</td><td>{{.Memory}}</td></tr>
<tr><td>Load</td><td>{{printf "%.2f %.2f %.2f" .Load1 .Load5 .Load15}}</td></tr>
{{- end}}
{{- if .LoopLatency.Samples}}
<tr><td>Loop latency p95</td><td>{{.LoopLatency.P95}}</td></tr>
{{- end}}
</tbody></table>
{{- with .Network}}
<table>
<thead><tr><td style="text-align:center">Traffic</td><td style="text-align:center">Rx</td><td style="text-align:center">Tx</td></tr></thead>
<tbody>
{{- range .Domains}}
<tr><td>{{.Name}}</td><td style="text-align:right">{{bytes .RxBytes}}</td><td style="text-align:right">{{bytes .TxBytes}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
</div>
{{- with .Lighttpd}}
<div id="Lighttpd">
<h3>Lighttpd</h3>
<table><tbody>
<tr><td>Total restarts</td><td>{{.Restarts}}</td></tr>
{{- if .Restarts}}
<tr><td>Last restart</td><td>{{.LastRestart}} ({{.LastReason}})</td></tr>
{{- end}}
<tr><td>Health check</td><td>{{if .HealthInhibited}}inhibited{{else}}{{.HealthFailures}}/{{.HealthMaxFailures}} failures{{end}}</td></tr>
{{template "specification" .Specification}}
</tbody></table>
{{- if .StateReport}}
<h4>state-report</h4>
<pre lang="yaml">{{.StateReport}}</pre>
{{- end}}
</div>
{{- end}}
{{- with .Import}}
<div id="Import">
<h3>Import</h3>
<table><tbody>
<tr><td>State</td><td>{{.State}}{{with .LastExitValue}} (exit value {{.}}){{end}}</td></tr>
{{- if .Imports}}
<tr><td>Total imports</td><td>{{.Imports}}</td></tr>
<tr><td>Import duration</td><td>{{.ImportDuration}}</td></tr>
<tr><td>Last import</td><td>{{.LastUpdate}}</td></tr>
<tr><td>Next import</td><td>{{.NextUpdate}}</td></tr>
{{- end}}
{{template "specification" .Specification}}
</tbody></table>
{{- if .Imports}}
<p>Last durations</p>
<table><tbody>
{{- range .Steps}}
<tr><td>{{.Name}}</td><td>{{.LastDuration}}</td></tr>
{{- end}}
</tbody></table>
{{- end}}
{{- with .Marker}}
<p>{{.}}</p>
{{- end}}
{{- if .StateReport}}
<h4>state-report</h4>
<pre lang="yaml">{{.StateReport}}</pre>
{{- end}}
</div>
{{- end}}
</body>
</html>
{{- define "specification"}}
<tr><td>Specification</td><td>{{if .Generations}}{{.Digest}} (generation {{.Generations}}){{else}}none{{end}}</td></tr>
{{- end}}
`))

// RenderHTML renders the human readable status page.
func RenderHTML(s Status) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("failed to render status page: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderJSON renders the machine readable status.
func RenderJSON(s Status) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}

	return data, nil
}
