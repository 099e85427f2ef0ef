// Package tier holds the dependency tier table used to order commands.
//
// The table is immutable configuration data built once at startup. Tier
// assignment is a pure function of (action, object type); argument values and
// referenced object names are never consulted. Modify and bind operations are
// coarsened into single tiers after every creation tier, because a set or bind
// clause may reference any object type.
//
// A graph keyed by referenced object names would be strictly more precise but
// needs a per-object argument grammar; the fixed table is the middle ground.
package tier

import (
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/command"
)

// =============================================================================
// Tiers
// =============================================================================

// Tier values in emission order. Lower tiers are emitted first.
const (
	FeatureToggle = iota
	CreateSSLCertKey
	CreateMonitor
	CreateServer
	CreateServiceGroup
	CreateService
	CreateGSLBVirtualServer
	CreateVirtualServer
	CreateRewriteAction
	CreateRewritePolicy
	CreateResponderAction
	CreateResponderPolicy
	CreateCSAction
	CreateCSPolicy
	CreateCSVirtualServer

	// DefaultAdd holds creations of object types the table does not know.
	DefaultAdd
	// CatchAll holds anything matching no known action/object pair.
	CatchAll

	Modify
	Binding
	Toggle
)

var tierNames = map[int]string{
	FeatureToggle:           "feature",
	CreateSSLCertKey:        "create-ssl-certkey",
	CreateMonitor:           "create-monitor",
	CreateServer:            "create-server",
	CreateServiceGroup:      "create-service-group",
	CreateService:           "create-service",
	CreateGSLBVirtualServer: "create-gslb-vserver",
	CreateVirtualServer:     "create-lb-vserver",
	CreateRewriteAction:     "create-rewrite-action",
	CreateRewritePolicy:     "create-rewrite-policy",
	CreateResponderAction:   "create-responder-action",
	CreateResponderPolicy:   "create-responder-policy",
	CreateCSAction:          "create-cs-action",
	CreateCSPolicy:          "create-cs-policy",
	CreateCSVirtualServer:   "create-cs-vserver",
	DefaultAdd:              "create-other",
	CatchAll:                "catch-all",
	Modify:                  "modify",
	Binding:                 "bind",
	Toggle:                  "toggle",
}

// Name returns a stable, human-readable name for a tier.
func Name(tier int) string {
	if name, ok := tierNames[tier]; ok {
		return name
	}
	return tierNames[CatchAll]
}

// =============================================================================
// Table
// =============================================================================

// Rule assigns a tier to an action and object type. When AnyObject is set the
// rule matches the action regardless of object type.
type Rule struct {
	Action    command.Action
	Object    command.ObjectType
	AnyObject bool
	Tier      int
}

func (r Rule) matches(action command.Action, object command.ObjectType) bool {
	if r.Action != action {
		return false
	}
	return r.AnyObject || r.Object == object
}

// Table is an ordered list of rules; the first matching rule wins.
type Table struct {
	rules []Rule
}

// NewTable creates a table from the given rules. The slice is copied.
func NewTable(rules []Rule) *Table {
	return &Table{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the table's rules in match order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Tier returns the tier for an action and object type.
// Unmatched creations fall back to DefaultAdd; everything else to CatchAll.
func (t *Table) Tier(action command.Action, object command.ObjectType) int {
	for _, r := range t.rules {
		if r.matches(action, object) {
			return r.Tier
		}
	}
	if action == command.ActionCreate {
		return DefaultAdd
	}
	return CatchAll
}

// defaultRules encodes the appliance's creation order: features first, then
// certificates, monitors, servers, service groups, services, virtual servers
// and policy objects, then every set, then every bind, then toggles.
var defaultRules = []Rule{
	{Action: command.ActionEnableFeature, Object: command.ObjectFeature, Tier: FeatureToggle},

	{Action: command.ActionCreate, Object: command.ObjectSSLCertKey, Tier: CreateSSLCertKey},
	{Action: command.ActionCreate, Object: command.ObjectMonitor, Tier: CreateMonitor},
	{Action: command.ActionCreate, Object: command.ObjectServer, Tier: CreateServer},
	{Action: command.ActionCreate, Object: command.ObjectServiceGroup, Tier: CreateServiceGroup},
	{Action: command.ActionCreate, Object: command.ObjectService, Tier: CreateService},
	{Action: command.ActionCreate, Object: command.ObjectGSLBVirtualServer, Tier: CreateGSLBVirtualServer},
	{Action: command.ActionCreate, Object: command.ObjectVirtualServer, Tier: CreateVirtualServer},
	{Action: command.ActionCreate, Object: command.ObjectRewriteAction, Tier: CreateRewriteAction},
	{Action: command.ActionCreate, Object: command.ObjectRewritePolicy, Tier: CreateRewritePolicy},
	{Action: command.ActionCreate, Object: command.ObjectResponderAction, Tier: CreateResponderAction},
	{Action: command.ActionCreate, Object: command.ObjectResponderPolicy, Tier: CreateResponderPolicy},
	{Action: command.ActionCreate, Object: command.ObjectCSAction, Tier: CreateCSAction},
	{Action: command.ActionCreate, Object: command.ObjectCSPolicy, Tier: CreateCSPolicy},
	{Action: command.ActionCreate, Object: command.ObjectCSVirtualServer, Tier: CreateCSVirtualServer},

	{Action: command.ActionModify, AnyObject: true, Tier: Modify},
	{Action: command.ActionBind, AnyObject: true, Tier: Binding},
	{Action: command.ActionUnbind, AnyObject: true, Tier: Binding},
	{Action: command.ActionEnable, AnyObject: true, Tier: Toggle},
	{Action: command.ActionDisable, AnyObject: true, Tier: Toggle},
}

var defaultTable = NewTable(defaultRules)

// Default returns the shared default table. It must not be modified.
func Default() *Table {
	return defaultTable
}
