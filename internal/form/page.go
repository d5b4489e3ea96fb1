package form

import "html/template"

var pageTemplate = template.Must(template.New("form").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 640px; margin: 0 auto; background: white; border-radius: 10px; padding: 24px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        h1 { margin-top: 0; color: #333; }
        .field { display: flex; justify-content: space-between; align-items: center; padding: 6px 0; border-bottom: 1px solid #eee; }
        .field label { color: #555; margin-right: 12px; }
        .field input, .field select { width: 110px; padding: 4px; }
        .field.invalid label { color: #dc3545; font-weight: bold; }
        button { margin-top: 16px; width: 100%; padding: 10px; font-size: 1em; border: none; border-radius: 6px; background: #667eea; color: white; cursor: pointer; }
        .result { margin-top: 20px; padding: 16px; border-radius: 8px; color: white; font-size: 1.2em; }
        .error { margin-top: 20px; padding: 12px; border-radius: 8px; background: #fdecea; color: #a12622; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <form method="post" action="/">
        {{$values := .Values}}{{$errorField := .ErrorField}}
        {{range .Fields}}
            <div class="field{{if eq .Name $errorField}} invalid{{end}}">
                <label for="{{.Name}}">{{.Label}}</label>
                {{if .IsFlag}}
                <select id="{{.Name}}" name="{{.Name}}">
                    <option value="yes"{{if eq (index $values .Name) "1"}} selected{{end}}>Yes</option>
                    <option value="no"{{if eq (index $values .Name) "0"}} selected{{end}}>No</option>
                </select>
                {{else}}
                <input type="number" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{index $values .Name}}" required>
                {{end}}
            </div>
        {{end}}
            <button type="submit">Predict</button>
        </form>
        {{with .Result}}
        <div class="result" id="result" style="background-color: {{.Color}}">
            <div>Dropout Probability: {{.Probability}}</div>
            <div>Risk Category: {{.RiskCategory}}</div>
        </div>
        {{end}}
        {{with .Error}}
        <div class="error" id="error">{{.}}</div>
        {{end}}
    </div>
</body>
</html>
`
