// Package common provides helpers shared by the tool packages: chat
// user extraction from tool arguments and handler wrappers that record
// metrics and audit logs around each invocation.
package common
