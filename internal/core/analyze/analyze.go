// Package analyze tallies object counts in appliance command text.
//
// The analyzer shares the classifier with the reorder engine but is
// independent of it: it counts the original text, order is irrelevant, and
// nothing is mutated. Reports are used to assert expected object counts before
// and after a deployment.
package analyze

import (
	"fmt"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
)

// =============================================================================
// Report
// =============================================================================

// Report holds per-category command counts. All fields default to zero.
type Report struct {
	Servers       int `json:"servers" yaml:"servers"`
	Services      int `json:"services" yaml:"services"`
	ServiceGroups int `json:"serviceGroups" yaml:"serviceGroups"`
	LBVservers    int `json:"lbVservers" yaml:"lbVservers"`
	GSLBVservers  int `json:"gslbVservers" yaml:"gslbVservers"`
	CSVservers    int `json:"csVservers" yaml:"csVservers"`
	SSLCerts      int `json:"sslCerts" yaml:"sslCerts"`
	Monitors      int `json:"monitors" yaml:"monitors"`
	Bindings      int `json:"bindings" yaml:"bindings"`
	Policies      int `json:"policies" yaml:"policies"`
}

// Field is a named count, used for ordered rendering.
type Field struct {
	Name  string
	Value int
}

// Fields returns the report's counts in a fixed order.
func (r Report) Fields() []Field {
	return []Field{
		{Name: "servers", Value: r.Servers},
		{Name: "services", Value: r.Services},
		{Name: "serviceGroups", Value: r.ServiceGroups},
		{Name: "lbVservers", Value: r.LBVservers},
		{Name: "gslbVservers", Value: r.GSLBVservers},
		{Name: "csVservers", Value: r.CSVservers},
		{Name: "sslCerts", Value: r.SSLCerts},
		{Name: "monitors", Value: r.Monitors},
		{Name: "bindings", Value: r.Bindings},
		{Name: "policies", Value: r.Policies},
	}
}

// Total returns the sum of all counts.
func (r Report) Total() int {
	total := 0
	for _, f := range r.Fields() {
		total += f.Value
	}
	return total
}

// =============================================================================
// Analyze
// =============================================================================

// Analyze counts creation commands per object category, every bind/unbind
// as a binding, and creations of rewrite, responder and content-switching
// actions and policies as policies. Modify and toggle commands are ignored.
func Analyze(text string) Report {
	var r Report
	for _, cmd := range command.Parse(text) {
		r.add(cmd)
	}
	return r
}

func (r *Report) add(cmd command.Command) {
	if cmd.IsBinding() {
		r.Bindings++
		return
	}
	if !cmd.IsCreate() {
		return
	}

	switch cmd.Object {
	case command.ObjectServer:
		r.Servers++
	case command.ObjectService:
		r.Services++
	case command.ObjectServiceGroup:
		r.ServiceGroups++
	case command.ObjectVirtualServer:
		r.LBVservers++
	case command.ObjectGSLBVirtualServer:
		r.GSLBVservers++
	case command.ObjectCSVirtualServer:
		r.CSVservers++
	case command.ObjectSSLCertKey:
		r.SSLCerts++
	case command.ObjectMonitor:
		r.Monitors++
	case command.ObjectRewriteAction, command.ObjectRewritePolicy,
		command.ObjectResponderAction, command.ObjectResponderPolicy,
		command.ObjectCSAction, command.ObjectCSPolicy:
		r.Policies++
	}
}

// =============================================================================
// Verification
// =============================================================================

// Mismatch describes a count that differs between two reports.
type Mismatch struct {
	Field    string `json:"field" yaml:"field"`
	Expected int    `json:"expected" yaml:"expected"`
	Actual   int    `json:"actual" yaml:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %d, got %d", m.Field, m.Expected, m.Actual)
}

// Compare returns every field where actual differs from r, in field order.
// An empty result means the reports match.
func (r Report) Compare(actual Report) []Mismatch {
	want := r.Fields()
	got := actual.Fields()

	var mismatches []Mismatch
	for i := range want {
		if want[i].Value != got[i].Value {
			mismatches = append(mismatches, Mismatch{
				Field:    want[i].Name,
				Expected: want[i].Value,
				Actual:   got[i].Value,
			})
		}
	}
	return mismatches
}
