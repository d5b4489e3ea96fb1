package dashboard

import (
	"html/template"

	"dropout-risk/internal/features"
)

type pageData struct {
	Title        string
	ModelVersion string
	Fields       []features.Field
}

var pageTemplate = template.Must(template.New("dashboard").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1100px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; text-align: center; }
        .header p { margin: 8px 0 0; text-align: center; opacity: 0.85; }
        .status-bar { display: flex; justify-content: space-between; align-items: center; background: white; padding: 15px; border-radius: 8px; margin-bottom: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .status-indicator { display: flex; align-items: center; font-weight: bold; }
        .status-dot { width: 12px; height: 12px; border-radius: 50%; margin-right: 8px; background-color: #ccc; }
        .status-active { background-color: #28a745; }
        .status-danger { background-color: #dc3545; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(360px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .field { display: flex; justify-content: space-between; align-items: center; padding: 6px 0; border-bottom: 1px solid #eee; }
        .field label { color: #555; font-weight: 500; margin-right: 12px; }
        .field input, .field select { width: 110px; padding: 4px; }
        .field.invalid label { color: #dc3545; }
        button { margin-top: 14px; width: 100%; padding: 10px; font-size: 1em; border: none; border-radius: 6px; background: #667eea; color: white; cursor: pointer; }
        .risk-box { padding: 16px; border-radius: 8px; color: white; text-align: center; font-size: 1.4em; font-weight: bold; margin-top: 16px; background-color: #999; }
        .probability { font-size: 1.2em; text-align: center; margin-top: 12px; color: #333; }
        .error { color: #dc3545; margin-top: 12px; min-height: 1.2em; }
        svg { display: block; margin: 0 auto; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Enter a student's academic record to estimate the risk of dropping out.</p>
        </div>

        <div class="status-bar">
            <div class="status-indicator">
                <div class="status-dot" id="model-status"></div>
                <span id="model-status-text">Checking model...</span>
            </div>
            <div class="status-indicator">
                <span id="model-version">{{if .ModelVersion}}Model {{.ModelVersion}}{{end}}</span>
            </div>
        </div>

        <div class="grid">
            <div class="card">
                <h3>Student Information</h3>
                <form id="student-form">
                {{range .Fields}}
                    <div class="field" id="field-{{.Name}}">
                        <label for="{{.Name}}">{{.Label}}</label>
                        {{if .IsFlag}}
                        <select id="{{.Name}}" name="{{.Name}}">
                            <option value="1"{{if eq .Default 1.0}} selected{{end}}>Yes</option>
                            <option value="0"{{if eq .Default 0.0}} selected{{end}}>No</option>
                        </select>
                        {{else}}
                        <input type="number" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Default}}">
                        {{end}}
                    </div>
                {{end}}
                    <button type="submit">Predict Dropout Risk</button>
                </form>
            </div>

            <div class="card">
                <h3>Prediction</h3>
                <svg width="240" height="240" viewBox="0 0 42 42">
                    <circle cx="21" cy="21" r="15.915" fill="transparent" stroke="#e6e6e6" stroke-width="6"></circle>
                    <circle id="donut-dropout" cx="21" cy="21" r="15.915" fill="transparent" stroke="#ff6b6b" stroke-width="6"
                            stroke-dasharray="0 100" stroke-dashoffset="25"></circle>
                    <text id="donut-label" x="21" y="22.5" text-anchor="middle" font-size="5">--</text>
                </svg>
                <div class="probability" id="probability">Dropout Probability: --</div>
                <div class="risk-box" id="risk-box">Risk Category: --</div>
                <div class="error" id="error"></div>
            </div>
        </div>
    </div>

    <script>
        const form = document.getElementById('student-form');
        let ws;

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onmessage = function(event) { handle(JSON.parse(event.data)); };
            ws.onclose = function() { setTimeout(connect, 3000); };
        }

        function payload() {
            const body = {};
            for (const el of form.elements) {
                if (!el.name) continue;
                body[el.name] = Number(el.value);
            }
            return body;
        }

        function handle(msg) {
            document.querySelectorAll('.field.invalid').forEach(el => el.classList.remove('invalid'));
            if (msg.type === 'status') {
                const loaded = msg.status && msg.status.model_loaded;
                document.getElementById('model-status').className = 'status-dot ' + (loaded ? 'status-active' : 'status-danger');
                document.getElementById('model-status-text').textContent = loaded ? 'Model loaded' : 'Model not loaded';
                if (msg.status && msg.status.model_version) {
                    document.getElementById('model-version').textContent = 'Model ' + msg.status.model_version;
                }
                return;
            }
            if (msg.type === 'error') {
                document.getElementById('error').textContent = msg.error;
                if (msg.field) {
                    const el = document.getElementById('field-' + msg.field);
                    if (el) el.classList.add('invalid');
                }
                return;
            }
            const p = msg.prediction;
            const pct = p.dropout_probability * 100;
            document.getElementById('error').textContent = '';
            document.getElementById('donut-dropout').setAttribute('stroke-dasharray', pct + ' ' + (100 - pct));
            document.getElementById('donut-dropout').setAttribute('stroke', p.color);
            document.getElementById('donut-label').textContent = p.percent;
            document.getElementById('probability').textContent = 'Dropout Probability: ' + p.percent;
            const box = document.getElementById('risk-box');
            box.textContent = 'Risk Category: ' + p.risk_category;
            box.style.backgroundColor = p.color;
        }

        form.addEventListener('submit', function(event) {
            event.preventDefault();
            const body = JSON.stringify(payload());
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(body);
                return;
            }
            fetch('/api/predict', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: body })
                .then(r => r.json())
                .then(handle);
        });

        connect();
    </script>
</body>
</html>
`
