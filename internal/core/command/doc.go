// Package command classifies single lines of appliance configuration.
//
// This package is part of the functional core: every function is pure and
// total. A line that matches nothing is still returned as a Command whose
// Action and/or Object is Other, so callers never handle classification errors.
//
// # Grammar
//
// A command is a leading verb followed by an object phrase of one to three
// words and free-form arguments:
//
//	add lb vserver web_vip HTTP 10.1.1.100 80
//	^^^ ^^^^^^^^^^ ^^^^^^^^^^^^^^^^^^^^^^^^^^
//	verb  phrase             arguments
//
// Only the verb and phrase are inspected. Arguments are never parsed.
package command
