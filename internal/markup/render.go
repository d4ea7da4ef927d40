package markup

import (
	"bytes"
	"html/template"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/order"
)

var funcs = template.FuncMap{
	"details": func(c order.Client) string {
		return strings.Join([]string{c.Name, c.Phone, c.Location}, " "+DetailsSeparator+" ")
	},
	"amount": func(d decimal.Decimal) string { return d.StringFixed(2) + " лв" },
	"date": func(t order.Timestamp) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02.01.2006")
	},
	"clock": func(t order.Timestamp) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("15:04")
	},
	"container": ContainerID,
	"counter":   CounterID,
}

const rowHTML = `{{define "row"}}<div class="order-card" data-order-id="{{.ID}}" data-status="{{.Status}}">
  <span class="order-id">#{{.ID}}</span>
  <div class="client-details">{{details .Client}}</div>
  <span class="client-company">{{.Client.Company}}</span>
  <span class="order-items">{{.ItemCount}} артикула</span>
  <span class="order-total">{{amount .TotalGross}}</span>
  <span class="order-net">{{amount .TotalNet}}</span>
  <span class="order-date">{{date .SubmittedAt}}</span> <span class="order-time">{{clock .SubmittedAt}}</span>
</div>
{{end}}`

const pageHTML = `<!DOCTYPE html>
<html lang="bg">
<head>
<meta charset="utf-8">
<meta name="_csrf" content="{{.CSRFToken}}">
<meta name="_csrf_header" content="{{.CSRFHeader}}">
<title>Табло поръчки</title>
</head>
<body>
<nav class="dashboard-tabs">
{{- range .Tabs}}
  <a href="#{{container .Bucket}}">{{.Bucket.Title}} <span id="{{counter .Bucket}}" class="tab-count">{{.Count}}</span></a>
{{- end}}
  <span id="{{counter .Completed}}" class="tab-count">{{.CompletedCount}}</span>
</nav>
{{range .Tabs}}<section id="{{container .Bucket}}" class="orders-container">
{{range .Rows}}{{template "row" .}}{{end}}</section>
{{end}}</body>
</html>
`

var (
	rowTmpl  = template.Must(template.New("row").Funcs(funcs).Parse(rowHTML))
	pageTmpl = template.Must(template.Must(template.New("page").Funcs(funcs).Parse(rowHTML)).Parse(pageHTML))
)

// RenderRow renders one order card.
func RenderRow(o order.OrderSummary) (string, error) {
	var buf bytes.Buffer
	if err := rowTmpl.ExecuteTemplate(&buf, "row", o); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type tab struct {
	Bucket order.Bucket
	Count  int
	Rows   []order.OrderSummary
}

// RenderPage writes a full dashboard page with CSRF meta tags, counter
// badges and a container per tracked bucket.
func RenderPage(w io.Writer, p Page) error {
	data := struct {
		CSRFHeader     string
		CSRFToken      string
		Tabs           []tab
		Completed      order.Bucket
		CompletedCount int
	}{
		CSRFHeader:     p.CSRFHeader,
		CSRFToken:      p.CSRFToken,
		Completed:      order.BucketCompleted,
		CompletedCount: p.Counters.Completed,
	}
	for _, b := range order.TrackedBuckets() {
		data.Tabs = append(data.Tabs, tab{Bucket: b, Count: p.Counters.Count(b), Rows: p.Rows[b]})
	}
	return pageTmpl.ExecuteTemplate(w, "page", data)
}
