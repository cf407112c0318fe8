package reminders

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFriendly    Tier = "friendly"
	TierApproaching Tier = "approaching"
	TierOverdue     Tier = "overdue"
	TierUrgent      Tier = "urgent"
)

// Classify picks the reminder tone. Rules are checked in order and the
// first match wins.
func Classify(daysUntilDue int, score float64) Tier {
	switch {
	case daysUntilDue > 5 && score >= 85:
		return TierFriendly
	case daysUntilDue > 0 && score >= 75:
		return TierApproaching
	case daysUntilDue > -7:
		return TierOverdue
	}
	return TierUrgent
}

type Params struct {
	RecipientName string
	SenderName    string
	Amount        decimal.Decimal
	DueDate       time.Time
	DaysUntilDue  int
}

type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type tmpl struct {
	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"money": money,
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
	"abs": func(n int) int {
		if n < 0 {
			return -n
		}
		return n
	},
	"plural": func(n int, word string) string {
		if n == 1 || n == -1 {
			return word
		}
		return word + "s"
	},
}

// money renders d with two decimals and thousands separators without
// passing through float64.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		sign, s = "-", rest
	}
	whole, frac, _ := strings.Cut(s, ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return sign + s
	}
	return sign + humanize.BigComma(n) + "." + frac
}

func mustTmpl(subject, body string) tmpl {
	return tmpl{
		subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New("body").Funcs(funcs).Parse(body)),
	}
}

var templates = map[Tier]tmpl{
	TierFriendly: mustTmpl(
		`Upcoming payment of {{money .Amount}}`,
		`Hi {{.RecipientName}},

Just a friendly note that your next installment of {{money .Amount}} is due on {{date .DueDate}}. Thank you for keeping your plan on track.

{{.SenderName}}`),
	TierApproaching: mustTmpl(
		`Payment of {{money .Amount}} due in {{.DaysUntilDue}} {{plural .DaysUntilDue "day"}}`,
		`Hi {{.RecipientName}},

Your installment of {{money .Amount}} is due on {{date .DueDate}}, {{.DaysUntilDue}} {{plural .DaysUntilDue "day"}} from now. Please make sure the payment is scheduled.

{{.SenderName}}`),
	TierOverdue: mustTmpl(
		`{{if gt .DaysUntilDue -1}}Payment of {{money .Amount}} is due today{{else}}Payment of {{money .Amount}} is overdue{{end}}`,
		`Hi {{.RecipientName}},

{{if gt .DaysUntilDue -1}}Your installment of {{money .Amount}} is due today ({{date .DueDate}}).{{else}}Your installment of {{money .Amount}} was due on {{date .DueDate}} and is {{abs .DaysUntilDue}} {{plural .DaysUntilDue "day"}} late.{{end}} Please arrange payment as soon as possible or reply to discuss your plan.

{{.SenderName}}`),
	TierUrgent: mustTmpl(
		`Urgent: payment of {{money .Amount}} requires attention`,
		`Hi {{.RecipientName}},

Your installment of {{money .Amount}} due on {{date .DueDate}} needs immediate attention. Please contact us today to settle the balance or agree on a revised payment plan.

{{.SenderName}}`),
}

// Render fills the fixed template of a tier. It has no side effects.
func Render(tier Tier, p Params) (Message, error) {
	t, ok := templates[tier]
	if !ok {
		return Message{}, fmt.Errorf("reminders: unknown tier %q", tier)
	}
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, p); err != nil {
		return Message{}, fmt.Errorf("reminders: render subject: %w", err)
	}
	if err := t.body.Execute(&body, p); err != nil {
		return Message{}, fmt.Errorf("reminders: render body: %w", err)
	}
	return Message{Subject: subject.String(), Body: body.String()}, nil
}
