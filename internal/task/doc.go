// Package task defines the declarative task model executed by the
// scheduler, plus its validation and persistence.
//
// A Task is a named, ordered sequence of Steps. Each Step holds an ordered
// list of actions — direct device commands and delay subtrees, which nest
// recursively — plus parallel loops that repeat sub-steps alongside the
// step's delays.
//
// Actions form a closed sum type: Direct and Delay are the only variants,
// distinguished on the wire by a "type" discriminator. Unknown
// discriminators are rejected at unmarshal time, so a stored task can
// always be walked with an exhaustive type switch.
//
// Tasks are immutable once execution starts; the scheduler deep-copies the
// task it is handed.
package task
