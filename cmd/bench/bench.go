// bench.go runs E91 key negotiation for each entry in the cartesian product
// of a collection of tuning parameters, e.g. pair count and source noise,
// repeating each combination over several trials, and outputs a CSV of
// statistics over those trials, e.g. the mean CHSH value and QBER.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/template"

	"github.com/alan-christopher/e91/e91"
	"github.com/alan-christopher/e91/e91/qubit"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"
)

var (
	rounds    = flag.IntSlice("rounds", []int{e91.DefaultRounds}, "The number of entangled pairs exchanged per trial.")
	noise     = flag.Float64Slice("noise", []float64{0}, "White noise mixed into the simulated pairs.")
	eavesdrop = flag.BoolSlice("eavesdrop", []bool{false, true}, "Whether an intercept-resend eavesdropper is present.")
	trials    = flag.IntSlice("trials", []int{20}, "The number of independent runs per combination.")
	workers   = flag.Int("workers", 1, "Goroutines resolving simulated measurements.")
	seed      = flag.Int64("seed", 1234, "Base seed; trial i of every combination uses seed+i.")
)

var (
	inputs = []string{"rounds", "noise", "eavesdrop", "trials"}
	// TODO: consider using reflection to pull this out of the Experiment data
	//   type.
	columns = []string{"Rounds", "Noise", "Eavesdrop", "Trials",
		"MeanS", "StdS", "Violations", "MeanKeyBits", "MeanQBER", "StdQBER",
		"MeanEveError", "StdEveError", "Failures"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Rounds    int
	Noise     float64
	Eavesdrop bool
	Trials    int

	// Fields corresponding to experiment results
	MeanS, StdS               float64
	Violations                int
	MeanKeyBits               float64
	MeanQBER, StdQBER         float64
	MeanEveError, StdEveError float64
	Failures                  int
}

func main() {
	flag.Parse()
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Rounds:    args[inpIndex("rounds")].(int),
			Noise:     args[inpIndex("noise")].(float64),
			Eavesdrop: args[inpIndex("eavesdrop")].(bool),
			Trials:    args[inpIndex("trials")].(int),
		}
		bench(context.Background(), exp)
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.Fatalf("BUG: could not fill in line template: %v", err)
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(ctx context.Context, exp *Experiment) {
	var s, qber, eveErr, keyBits []float64
	for i := 0; i < exp.Trials; i++ {
		trialSeed := *seed + int64(i)
		src, err := qubit.NewSimulated(qubit.SimulatedOpts{
			Noise:   exp.Noise,
			Rand:    rand.New(rand.NewSource(trialSeed)),
			Workers: *workers,
		})
		if err != nil {
			log.Printf("Benching %+v: %v", exp, err)
			exp.Failures++
			continue
		}
		res, err := e91.Run(ctx, e91.Opts{
			Source:    src,
			Rand:      rand.New(rand.NewSource(^trialSeed)),
			Rounds:    exp.Rounds,
			Eavesdrop: exp.Eavesdrop,
		})
		if err != nil {
			log.Printf("Benching %+v: %v", exp, err)
			exp.Failures++
			continue
		}
		s = append(s, math.Abs(res.CHSH.Value))
		qber = append(qber, res.Stats.QBER)
		keyBits = append(keyBits, float64(res.Keys.Len()))
		if res.CHSH.Violates() {
			exp.Violations++
		}
		if res.Keys.HasEve && res.Comparison.KeyLength > 0 {
			eveErr = append(eveErr, float64(res.Comparison.AliceEve)/float64(res.Comparison.KeyLength))
		}
	}
	exp.MeanS, exp.StdS = meanStdDev(s)
	exp.MeanQBER, exp.StdQBER = meanStdDev(qber)
	exp.MeanEveError, exp.StdEveError = meanStdDev(eveErr)
	exp.MeanKeyBits, _ = meanStdDev(keyBits)
}

// meanStdDev wraps stat.MeanStdDev, reporting zeros rather than NaNs for
// samples too small to describe.
func meanStdDev(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetBoolSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
