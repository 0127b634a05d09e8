package ui

const pageTemplates = `{{define "layout"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Refresh}}<meta http-equiv="refresh" content="2"/>{{end}}
  <title>SmartDoc Formatter</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    .btn.secondary{background:#444}
    input[type=text],textarea{padding:9px 10px;border:1px solid #dcdcdc;border-radius:8px;width:100%}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .grid{display:grid;grid-template-columns:1fr 1fr 1fr;gap:12px}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .status.completed{background:#e2f5e8;color:#14703a}
    .status.error{background:#fdecea;color:#b3261e}
    .bar{height:8px;background:#efefef;border-radius:4px;overflow:hidden}
    .bar span{display:block;height:100%;background:#0b63e5}
    ul.steps{list-style:none;padding:0;margin:0}
    ul.steps li{padding:6px 0}
    footer{margin-top:24px;color:#666;font-size:12px}
  </style>
</head>
<body>
  <header>
    <h1>SmartDoc Formatter</h1>
    <div class="muted">Upload a document, pick a goal, let the backend do the rest</div>
  </header>
  {{if .Error}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <strong style="color:#b3261e">Error:</strong> <span class="muted">{{.Error}}</span>
  </div>
  {{end}}
  {{template "content" .}}
  <footer><div>API base: <span class="mono">/api/v1</span></div></footer>
</body>
</html>
{{end}}

{{define "dashboard"}}{{template "layout" .}}{{end}}
{{define "upload"}}{{template "layout" .}}{{end}}
{{define "goal"}}{{template "layout" .}}{{end}}
{{define "processing"}}{{template "layout" .}}{{end}}
{{define "results"}}{{template "layout" .}}{{end}}

{{define "content"}}
{{if .Stats}}
  <div class="grid">
    <div class="card"><div class="muted">Documents formatted</div><h1>{{.Stats.Formatted}}</h1></div>
    <div class="card"><div class="muted">Failed jobs</div><h1>{{.Stats.Failed}}</h1></div>
    <div class="card"><div class="muted">Success rate</div><h1>{{printf "%.0f" .Stats.SuccessRate}}%</h1></div>
  </div>
{{end}}
{{if .Recent}}
  <div class="card">
    <strong>Recent documents</strong>
    <ul class="steps">
      {{range .Recent}}<li><span class="mono">{{.FileName}}</span> — <span class="status {{.Status}}">{{.Status}}</span> <span class="muted">{{.Goal}}</span></li>{{end}}
    </ul>
  </div>
{{end}}
{{if .Accept}}
  <div class="card">
    <strong>Upload a document</strong>
    <form method="post" action="/ui/upload" enctype="multipart/form-data">
      <p><input type="file" name="file" accept="{{.Accept}}" {{if .Multiple}}multiple{{end}} required/></p>
      <p class="muted">Accepted: {{.Accept}} — up to {{.MaxBytes}} bytes</p>
      <button class="btn" type="submit">Upload</button>
    </form>
  </div>
  {{range .Rejections}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <span class="mono">{{.Name}}</span> — <span class="muted">{{.Reason}}</span>
  </div>
  {{end}}
  {{if .Items}}
  <div class="card">
    <strong>Uploads</strong>
    <ul class="steps">
      {{range .Items}}
      <li>
        <span class="mono">{{.Name}}</span> <span class="status {{.Status}}">{{.Status}}</span>
        <div class="bar"><span style="width:{{.Progress}}%"></span></div>
        {{if .Error}}<span class="muted">{{.Error}}</span>{{end}}
      </li>
      {{end}}
    </ul>
    {{if .Uploading}}<p class="muted">Uploading... <a href="/ui/upload">refresh</a></p>{{end}}
  </div>
  {{end}}
{{end}}
{{if .Suggestions}}
  <div class="card">
    <strong>What should we improve in {{.FileName}}?</strong>
    <form method="post" action="/ui/goal">
      <p><textarea name="goal" rows="3" placeholder="Describe your formatting goal"></textarea></p>
      <button class="btn" type="submit">Start formatting</button>
    </form>
    <p class="muted">Ideas:</p>
    <ul class="steps">{{range .Suggestions}}<li class="muted">{{.}}</li>{{end}}</ul>
  </div>
{{end}}
{{if .Job}}
  <div class="card">
    <strong>Formatting in progress</strong>
    <p class="muted">Goal: {{.Goal}}</p>
    <div class="bar"><span style="width:{{.Job.Percent}}%"></span></div>
    <ul class="steps">
      {{range .Job.Steps}}<li><span class="status {{.State}}">{{.State}}</span> {{.Name}}</li>{{end}}
    </ul>
    <p class="muted">{{.Job.Reasoning}}</p>
    {{if .Job.Failed}}
    <form method="post" action="/ui/reset"><button class="btn secondary" type="submit">Back to dashboard</button></form>
    {{end}}
  </div>
{{end}}
{{if .Result}}
  <div class="card">
    <strong>Your document is ready</strong>
    <p><span class="mono">{{.Result.FileName}}</span> <span class="muted">job {{.Result.JobID}}</span></p>
    {{if .Result.Summary.Comparable}}
    <ul class="steps">
      <li class="muted">Headings: {{.Result.Summary.OriginalHeadings}} &rarr; {{.Result.Summary.FormattedHeadings}}</li>
      <li class="muted">Paragraphs: {{.Result.Summary.OriginalParagraphs}} &rarr; {{.Result.Summary.FormattedParagraphs}}</li>
    </ul>
    {{end}}
    <p>
      <a class="btn" href="/api/v1/download/formatted">Download formatted</a>
      <a class="btn secondary" href="/api/v1/preview">Preview</a>
      <a class="btn secondary" href="/api/v1/download/original">Original</a>
    </p>
    <form method="post" action="/ui/flow" style="display:inline"><button class="btn secondary" type="submit">Format another document</button></form>
    <form method="post" action="/ui/reset" style="display:inline"><button class="btn secondary" type="submit">Dashboard</button></form>
  </div>
{{else}}{{if not .Stats}}{{if not .Accept}}{{if not .Suggestions}}{{if not .Job}}
  <div class="card">
    <form method="post" action="/ui/flow"><button class="btn" type="submit">Format a document</button></form>
  </div>
{{end}}{{end}}{{end}}{{end}}{{end}}
{{if .Stats}}
  <div class="card">
    <form method="post" action="/ui/flow"><button class="btn" type="submit">Format a document</button></form>
  </div>
{{end}}
{{end}}
`
