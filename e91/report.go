package e91

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/alan-christopher/e91/e91/bitmap"
	"github.com/markkurossi/tabulate"
)

const reportTmpl = `Entanglement of Mismatched Choices: {{.CHSH.Value}}
Alice's Key: {{bits .Keys.Alice}}
Bob's Key: {{bits .Keys.Bob}}
Eve's Key: {{bits .Keys.Eve}}
Key Length: {{.Keys.Len}}
Number of Disagreeing Key Bits between Alice and Bob: {{.Comparison.AliceBob}}
Number of Disagreeing Key Bits between Alice and Eve: {{.Comparison.AliceEve}}
Number of Disagreeing Key Bits between Bob and Eve: {{.Comparison.BobEve}}
`

var report = template.Must(template.New("report").Funcs(template.FuncMap{
	"bits": formatBits,
}).Parse(reportTmpl))

// formatBits renders d as "[1, 0, 1]".
func formatBits(d bitmap.Dense) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, b := range d.Ints() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, b)
	}
	sb.WriteByte(']')
	return sb.String()
}

// WriteReport writes the line-oriented summary of r to w.
func WriteReport(w io.Writer, r Result) error {
	return report.Execute(w, r)
}

// WriteTable writes the numeric results of r to w as a table.
func WriteTable(w io.Writer, r Result) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Metric").SetAlign(tabulate.ML)
	tab.Header("Value").SetAlign(tabulate.MR)

	add := func(label, value string) {
		row := tab.Row()
		row.Column(label)
		row.Column(value)
	}
	add("Rounds", fmt.Sprint(r.Stats.Rounds))
	add("Eavesdropped", fmt.Sprint(r.Session.Eavesdropped()))
	add("CHSH", fmt.Sprintf("%.4f ± %.4f", r.CHSH.Value, r.CHSH.StdErr()))
	for b, p := range bucketPairs {
		add(fmt.Sprintf("├╴E(%d,%d)", p[0], p[1]),
			fmt.Sprintf("%.4f (%d)", r.CHSH.Expectations[b], r.CHSH.Observations(p[0], p[1])))
	}
	add("Key length", fmt.Sprint(r.Comparison.KeyLength))
	add("QBER", fmt.Sprintf("%.4f", r.Stats.QBER))
	add("Alice/Bob disagreements", fmt.Sprint(r.Comparison.AliceBob))
	add("Alice/Eve disagreements", fmt.Sprint(r.Comparison.AliceEve))
	add("Bob/Eve disagreements", fmt.Sprint(r.Comparison.BobEve))
	tab.Print(w)
}
