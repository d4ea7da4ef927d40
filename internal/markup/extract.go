// Package markup reads the server-rendered dashboard page: CSRF meta tags,
// counter badges and the order cards inside each bucket's container. It
// also renders that page for the mock portal, so both sides of the
// contract live together.
package markup

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/order-desk/console/internal/order"
)

// Class and id contract with the rendered page.
const (
	ClassCard          = "order-card"
	ClassID            = "order-id"
	ClassClientDetails = "client-details"
	ClassCompany       = "client-company"
	ClassItems         = "order-items"
	ClassGross         = "order-total"
	ClassNet           = "order-net"
	ClassDate          = "order-date"
	ClassTime          = "order-time"

	// DetailsSeparator splits the composite client field into name, phone
	// and location.
	DetailsSeparator = "•"

	MetaCSRF       = "_csrf"
	MetaCSRFHeader = "_csrf_header"
)

// ContainerID is the element id of a bucket's order list.
func ContainerID(b order.Bucket) string { return b.Key() + "-orders" }

// CounterID is the element id of a bucket's count badge.
func CounterID(b order.Bucket) string { return b.Key() + "-tab-count" }

var (
	digitsRe = regexp.MustCompile(`\d+`)
	amountRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*лв`)
	dateRe   = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	clockRe  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// Page is everything extracted from one dashboard page.
type Page struct {
	CSRFHeader  string
	CSRFToken   string
	Counters    order.CounterSnapshot
	HasCounters bool
	Rows        map[order.Bucket][]order.OrderSummary
}

// Parse reads a whole dashboard page.
func Parse(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse dashboard page: %w", err)
	}
	p := Page{Rows: make(map[order.Bucket][]order.OrderSummary)}
	p.CSRFHeader, p.CSRFToken = csrf(doc)
	p.Counters, p.HasCounters = counters(doc)
	for _, b := range order.TrackedBuckets() {
		if c := findByID(doc, ContainerID(b)); c != nil {
			p.Rows[b] = rows(c, b)
		}
	}
	return p, nil
}

// ExtractRows returns the order rows per tracked bucket. Rows without an
// id are skipped; other unreadable fields degrade to zero values.
func ExtractRows(r io.Reader) (map[order.Bucket][]order.OrderSummary, error) {
	p, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return p.Rows, nil
}

// ExtractCSRF returns the CSRF header name and token from the page's meta
// tags. Either may be empty.
func ExtractCSRF(r io.Reader) (header, token string, err error) {
	p, err := Parse(r)
	if err != nil {
		return "", "", err
	}
	return p.CSRFHeader, p.CSRFToken, nil
}

func csrf(doc *html.Node) (header, token string) {
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return true
		}
		switch attr(n, "name") {
		case MetaCSRF:
			token = attr(n, "content")
		case MetaCSRFHeader:
			header = attr(n, "content")
		}
		return true
	})
	return header, token
}

func counters(doc *html.Node) (order.CounterSnapshot, bool) {
	var cs order.CounterSnapshot
	found := false
	for _, b := range order.Buckets {
		n := findByID(doc, CounterID(b))
		if n == nil {
			continue
		}
		v := firstInt(text(n))
		found = true
		switch b {
		case order.BucketUrgent:
			cs.Urgent = v
		case order.BucketPending:
			cs.Pending = v
		case order.BucketConfirmed:
			cs.Confirmed = v
		case order.BucketCancelled:
			cs.Cancelled = v
		case order.BucketCompleted:
			cs.Completed = v
		}
	}
	return cs.Normalize(), found
}

func rows(container *html.Node, b order.Bucket) []order.OrderSummary {
	var out []order.OrderSummary
	walk(container, func(n *html.Node) bool {
		if !hasClass(n, ClassCard) {
			return true
		}
		if o, ok := row(n, b); ok {
			out = append(out, o)
		}
		return false
	})
	return out
}

func row(card *html.Node, b order.Bucket) (order.OrderSummary, bool) {
	idText := attr(card, "data-order-id")
	if idText == "" {
		idText = classText(card, ClassID)
	}
	id, err := strconv.ParseInt(strings.Join(digitsRe.FindAllString(idText, -1), ""), 10, 64)
	if err != nil || id <= 0 {
		return order.OrderSummary{}, false
	}

	o := order.OrderSummary{ID: id, Status: statusOf(card, b)}
	name, phone, location := splitDetails(classText(card, ClassClientDetails))
	o.Client = order.Client{
		Name:     name,
		Company:  classText(card, ClassCompany),
		Phone:    phone,
		Location: location,
	}
	o.ItemCount = firstInt(classText(card, ClassItems))
	o.TotalGross = firstAmount(classText(card, ClassGross))
	o.TotalNet = firstAmount(classText(card, ClassNet))
	o.SubmittedAt = submitted(classText(card, ClassDate), classText(card, ClassTime))
	return o, true
}

// statusOf prefers the card's data-status attribute and otherwise derives
// a status from the container's bucket.
func statusOf(card *html.Node, b order.Bucket) order.Status {
	if st, err := order.ParseStatus(attr(card, "data-status")); err == nil {
		return st
	}
	switch b {
	case order.BucketUrgent:
		return order.StatusUrgent
	case order.BucketPending:
		return order.StatusPending
	case order.BucketConfirmed:
		return order.StatusConfirmed
	case order.BucketCancelled:
		return order.StatusCancelled
	case order.BucketCompleted:
		return order.StatusShipped
	}
	return ""
}

func splitDetails(s string) (name, phone, location string) {
	parts := strings.Split(s, DetailsSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
	case 1:
		name = parts[0]
	case 2:
		name, phone = parts[0], parts[1]
	default:
		name, phone, location = parts[0], parts[1], parts[2]
	}
	return name, phone, location
}

func firstInt(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func firstAmount(s string) decimal.Decimal {
	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// submitted combines a DD.MM.YYYY date and an HH:MM time in local time.
// A missing time means midnight; a missing date yields the zero value.
func submitted(date, clock string) order.Timestamp {
	dm := dateRe.FindStringSubmatch(date + " " + clock)
	if dm == nil {
		return order.Timestamp{}
	}
	day, _ := strconv.Atoi(dm[1])
	month, _ := strconv.Atoi(dm[2])
	year, _ := strconv.Atoi(dm[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return order.Timestamp{}
	}

	var hour, minute int
	if cm := clockRe.FindStringSubmatch(clock + " " + date); cm != nil {
		hour, _ = strconv.Atoi(cm[1])
		minute, _ = strconv.Atoi(cm[2])
	}
	if hour > 23 || minute > 59 {
		hour, minute = 0, 0
	}
	return order.Timestamp{Time: time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)}
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func classText(root *html.Node, class string) string {
	var out string
	done := false
	walk(root, func(n *html.Node) bool {
		if done {
			return false
		}
		if n != root && hasClass(n, class) {
			out = text(n)
			done = true
			return false
		}
		return true
	})
	return out
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
