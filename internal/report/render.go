// Package report turns batch results into the HTML document that is mailed.
package report

import (
	"bytes"
	"html/template"
	"time"

	"github.com/hamed0406/healthreport/internal/domain"
)

const (
	LabelSuccess = "SUCCESS"
	LabelFailure = "FAILURE"

	timestampLayout = "2006-01-02 15:04:05 MST"
)

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"label": Label,
	"class": statusClass,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Reporte Operativo de Sistemas</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; font-size: 14px; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
.ok { color: #1a7f37; font-weight: bold; }
.fail { color: #cf222e; font-weight: bold; }
</style>
</head>
<body>
<h2>Reporte Operativo de Sistemas</h2>
<p>Generado: {{.GeneratedAt}}</p>
<p>Sistemas verificados: {{.Total}} &middot; Sin incidencias: {{.Healthy}}</p>
<table>
<thead>
<tr><th>Sistema</th><th>Estado web</th><th>Detalle web</th><th>Estado base de datos</th><th>Detalle base de datos</th></tr>
</thead>
<tbody>
{{- range .Results}}
<tr>
<td>{{.DisplayName}}</td>
<td class="{{class .Web}}">{{label .Web}}</td>
<td>{{.Web.Message}}</td>
<td class="{{class .DB}}">{{label .DB}}</td>
<td>{{.DB.Message}}</td>
</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type view struct {
	GeneratedAt string
	Total       int
	Healthy     int
	Results     []domain.SystemCheckResult
}

// Label maps an outcome to its status label.
func Label(o domain.ProbeOutcome) string {
	if o.Success {
		return LabelSuccess
	}
	return LabelFailure
}

func statusClass(o domain.ProbeOutcome) string {
	if o.Success {
		return "ok"
	}
	return "fail"
}

// Render produces one row per result, in input order. The output depends only
// on its arguments.
func Render(results []domain.SystemCheckResult, generatedAt time.Time) (string, error) {
	v := view{
		GeneratedAt: generatedAt.Format(timestampLayout),
		Total:       len(results),
		Results:     results,
	}
	for _, r := range results {
		if r.Healthy() {
			v.Healthy++
		}
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Build renders results into a Report addressed to recipients.
func Build(subject string, recipients []string, results []domain.SystemCheckResult, generatedAt time.Time) (*domain.Report, error) {
	html, err := Render(results, generatedAt)
	if err != nil {
		return nil, err
	}
	rs := make([]domain.SystemCheckResult, len(results))
	copy(rs, results)
	to := make([]string, len(recipients))
	copy(to, recipients)
	return &domain.Report{
		Subject:     subject,
		Recipients:  to,
		GeneratedAt: generatedAt,
		HTML:        html,
		Results:     rs,
	}, nil
}
