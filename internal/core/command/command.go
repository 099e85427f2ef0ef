package command

import (
	"strings"
)

// =============================================================================
// Action
// =============================================================================

// Action is the operation kind named by a command's leading verb.
type Action int

const (
	ActionOther Action = iota
	ActionCreate
	ActionModify
	ActionBind
	ActionUnbind
	ActionEnableFeature
	ActionEnable
	ActionDisable
)

var actionNames = map[Action]string{
	ActionOther:         "other",
	ActionCreate:        "create",
	ActionModify:        "modify",
	ActionBind:          "bind",
	ActionUnbind:        "unbind",
	ActionEnableFeature: "enable-feature",
	ActionEnable:        "enable",
	ActionDisable:       "disable",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return actionNames[ActionOther]
}

// verbs maps the device's command verbs to actions. Matching is exact and
// case-sensitive.
var verbs = map[string]Action{
	"add":     ActionCreate,
	"set":     ActionModify,
	"unset":   ActionModify,
	"bind":    ActionBind,
	"unbind":  ActionUnbind,
	"enable":  ActionEnable,
	"disable": ActionDisable,
}

// =============================================================================
// Object Type
// =============================================================================

// ObjectType is the category of configuration entity a command targets.
type ObjectType int

const (
	ObjectOther ObjectType = iota
	ObjectFeature
	ObjectSSLCertKey
	ObjectMonitor
	ObjectServer
	ObjectServiceGroup
	ObjectService
	ObjectGSLBVirtualServer
	ObjectVirtualServer
	ObjectRewriteAction
	ObjectRewritePolicy
	ObjectResponderAction
	ObjectResponderPolicy
	ObjectCSAction
	ObjectCSPolicy
	ObjectCSVirtualServer
)

var objectNames = map[ObjectType]string{
	ObjectOther:             "other",
	ObjectFeature:           "feature",
	ObjectSSLCertKey:        "ssl-certkey",
	ObjectMonitor:           "monitor",
	ObjectServer:            "server",
	ObjectServiceGroup:      "service-group",
	ObjectService:           "service",
	ObjectGSLBVirtualServer: "gslb-vserver",
	ObjectVirtualServer:     "lb-vserver",
	ObjectRewriteAction:     "rewrite-action",
	ObjectRewritePolicy:     "rewrite-policy",
	ObjectResponderAction:   "responder-action",
	ObjectResponderPolicy:   "responder-policy",
	ObjectCSAction:          "cs-action",
	ObjectCSPolicy:          "cs-policy",
	ObjectCSVirtualServer:   "cs-vserver",
}

func (o ObjectType) String() string {
	if name, ok := objectNames[o]; ok {
		return name
	}
	return objectNames[ObjectOther]
}

// phrases maps the object phrases that follow a verb to object types.
var phrases = map[string]ObjectType{
	"ns feature":       ObjectFeature,
	"ssl certKey":      ObjectSSLCertKey,
	"ssl certkey":      ObjectSSLCertKey,
	"lb monitor":       ObjectMonitor,
	"server":           ObjectServer,
	"serviceGroup":     ObjectServiceGroup,
	"service":          ObjectService,
	"gslb vserver":     ObjectGSLBVirtualServer,
	"lb vserver":       ObjectVirtualServer,
	"rewrite action":   ObjectRewriteAction,
	"rewrite policy":   ObjectRewritePolicy,
	"responder action": ObjectResponderAction,
	"responder policy": ObjectResponderPolicy,
	"cs action":        ObjectCSAction,
	"cs policy":        ObjectCSPolicy,
	"cs vserver":       ObjectCSVirtualServer,
}

// maxPhraseWords bounds how many tokens after the verb are tried as a phrase.
const maxPhraseWords = 3

// =============================================================================
// Command
// =============================================================================

// Command is one surviving line of input with its classification.
//
// Tier and Index are zero until the reorder engine assigns them; Raw is never
// modified.
type Command struct {
	Raw    string
	Action Action
	Object ObjectType
	Tier   int
	Index  int
}

// Classify tags a single line with its action and object type.
// It never fails: unknown verbs yield ActionOther and unknown phrases yield
// ObjectOther.
func Classify(line string) Command {
	cmd := Command{Raw: line}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return cmd
	}

	if action, ok := verbs[fields[0]]; ok {
		cmd.Action = action
	}
	cmd.Object = matchPhrase(fields[1:])

	if cmd.Action == ActionEnable && cmd.Object == ObjectFeature {
		cmd.Action = ActionEnableFeature
	}

	return cmd
}

// matchPhrase tries the longest candidate phrase first so that, for example,
// "lb vserver" wins over a shorter registered prefix.
func matchPhrase(tokens []string) ObjectType {
	n := len(tokens)
	if n > maxPhraseWords {
		n = maxPhraseWords
	}
	for ; n > 0; n-- {
		if object, ok := phrases[strings.Join(tokens[:n], " ")]; ok {
			return object
		}
	}
	return ObjectOther
}

// IsCreate reports whether the command creates an object.
func (c Command) IsCreate() bool {
	return c.Action == ActionCreate
}

// IsBinding reports whether the command binds or unbinds objects.
func (c Command) IsBinding() bool {
	return c.Action == ActionBind || c.Action == ActionUnbind
}
